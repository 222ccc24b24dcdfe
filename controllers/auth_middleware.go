package controllers

import (
	"net/http"
	"strings"

	dbpkg "platestyle/db"
	"platestyle/logging"
	"platestyle/models"

	"github.com/gin-gonic/gin"
)

const ctxUserKey = "auth_user"

// AuthRequired validates the Bearer token and loads the user from DB into context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		env := EnvInstance(c)
		db := dbpkg.DBInstance(c)
		if env == nil || db == nil {
			RespondError(c, "server not configured", http.StatusInternalServerError)
			c.Abort()
			return
		}

		h := c.GetHeader("Authorization")
		if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "bearer ") {
			RespondError(c, "missing bearer token", http.StatusUnauthorized)
			c.Abort()
			return
		}
		token := strings.TrimSpace(h[len("Bearer "):])
		claims, ok := parseAndVerifyJWT(token, env.Config.Security.JwtSecret)
		if !ok {
			RespondError(c, "invalid token", http.StatusUnauthorized)
			c.Abort()
			return
		}
		if claims.expired(env.Clock.Now()) {
			RespondError(c, "token expired", http.StatusUnauthorized)
			c.Abort()
			return
		}

		var user models.User
		if err := db.Where("id = ?", claims.Sub).First(&user).Error; err != nil {
			RespondError(c, "user not found", http.StatusUnauthorized)
			c.Abort()
			return
		}
		user.Password = ""

		c.Set(ctxUserKey, user)
		c.Request = c.Request.WithContext(logging.WithUserID(c.Request.Context(), user.ID))
		c.Next()
	}
}

// GetUserLogged returns the user loaded by AuthRequired.
func GetUserLogged(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
