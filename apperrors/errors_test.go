package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Unauthorized("who"), http.StatusUnauthorized},
		{PaymentRequired("broke"), http.StatusPaymentRequired},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{Conflict("busy"), http.StatusConflict},
		{TooLarge("big"), http.StatusRequestEntityTooLarge},
		{External("ai", nil), http.StatusBadGateway},
		{Internal("oops", nil), http.StatusInternalServerError},
		{&Error{Type: "weird"}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Type), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.HTTPStatus())
		})
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Internal("failed to save job", cause)

	assert.Contains(t, err.Error(), "internal")
	assert.Contains(t, err.Error(), "failed to save job")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)

	assert.NotContains(t, NotFound("job not found").Error(), "<nil>")
}

func TestAs(t *testing.T) {
	assert.Nil(t, As(nil))

	wrapped := fmt.Errorf("service: %w", Conflict("job is processing"))
	got := As(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, TypeConflict, got.Type)
	assert.Equal(t, "job is processing", got.Message)

	plain := errors.New("boom")
	got = As(plain)
	assert.Equal(t, TypeInternal, got.Type)
	assert.ErrorIs(t, got, plain)
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("wrap: %w", PaymentRequired("insufficient credits"))
	assert.True(t, IsType(err, TypePaymentRequired))
	assert.False(t, IsType(err, TypeConflict))
	assert.False(t, IsType(errors.New("x"), TypeInternal))
}
