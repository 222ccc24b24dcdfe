package db

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"platestyle/config"
	"platestyle/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	database, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, Migrate(database))
	assert.True(t, database.HasTable(&models.User{}))
	assert.True(t, database.HasTable(&models.GenerationJob{}))
	assert.True(t, database.HasTable(&models.CreditTransaction{}))
	assert.True(t, database.HasTable(&models.RefreshToken{}))
}

func TestConnectSQLiteFile(t *testing.T) {
	c := config.Configuration{Database: "sqlite3", DbPath: filepath.Join(t.TempDir(), "nested", "app.db"), AutoMigrate: true}
	SetConfigurations(c)

	database, err := Connect()
	require.NoError(t, err)
	defer database.Close()
	assert.True(t, database.HasTable(&models.User{}))
}

func TestContextInjection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	database, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer database.Close()

	r := gin.New()
	r.Use(SetDBtoContext(database))
	r.GET("/", func(c *gin.Context) {
		if DBInstance(c) == database {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
