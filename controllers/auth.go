package controllers

import (
	"net/http"
	"time"

	dbpkg "platestyle/db"
	"platestyle/models"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken        string       `json:"access_token"`
	AccessExpiresAt    int64        `json:"access_expires_at"`     // unix seconds
	AccessExpiresAtISO string       `json:"access_expires_at_iso"` // RFC3339
	RefreshToken       string       `json:"refresh_token"`
	User               *models.User `json:"user,omitempty"`
}

func Login(c *gin.Context) {
	env := EnvInstance(c)
	db := dbpkg.DBInstance(c)
	if env == nil || db == nil {
		RespondError(c, "server not configured", http.StatusInternalServerError)
		return
	}

	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondError(c, bindErrorMessage(err), http.StatusBadRequest)
		return
	}

	user, err := env.Users.Authenticate(req.Email, req.Password)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	resp, err := issueTokenPair(db, env, user, env.Clock.Now())
	if err != nil {
		RespondError(c, "failed to issue tokens", http.StatusInternalServerError)
		return
	}
	resp.User = &user
	RespondSuccess(c, resp)
}

// issueTokenPair signs an access token and persists a new refresh token for user.
func issueTokenPair(db *gorm.DB, env *Env, user models.User, now time.Time) (TokenResponse, error) {
	accessExp := now.Add(env.Config.AccessTTL())
	accessToken, err := signHS256JWT(env.Config.Security.JwtSecret, jwtClaims{
		Sub:   user.ID,
		Email: user.Email,
		Iat:   now.Unix(),
		Exp:   accessExp.Unix(),
	})
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := issueRefreshToken(db, user.ID, now, env.Config.RefreshTTL(), env.Config.Security.RefreshCodeLen)
	if err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:        accessToken,
		AccessExpiresAt:    accessExp.Unix(),
		AccessExpiresAtISO: accessExp.UTC().Format(time.RFC3339),
		RefreshToken:       refresh,
	}, nil
}
