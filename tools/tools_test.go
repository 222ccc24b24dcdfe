package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPasswordHash(hash, "correct horse"))
	assert.False(t, CheckPasswordHash(hash, "battery staple"))
}

func TestRandomString(t *testing.T) {
	a, err := RandomString(32)
	require.NoError(t, err)
	b, err := RandomString(32)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestEncryptTextSHA512(t *testing.T) {
	assert.Len(t, EncryptTextSHA512("x"), 128)
	assert.Equal(t, EncryptTextSHA512("x"), EncryptTextSHA512("x"))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("chef@bistro.com"))
	assert.False(t, ValidateEmail("chef@bistro"))
	assert.False(t, ValidateEmail("not an email"))
}

func TestCheckPassword(t *testing.T) {
	assert.Equal(t, "password", CheckPassword("short"))
	assert.Equal(t, "", CheckPassword("longenough"))
}
