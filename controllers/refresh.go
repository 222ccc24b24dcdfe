package controllers

import (
	"net/http"
	"time"

	dbpkg "platestyle/db"
	"platestyle/models"
	"platestyle/tools"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token" binding:"required"`
}

// Refresh exchanges a valid refresh token for a new access/refresh pair.
// Only the hash of a refresh token is stored. Using one revokes every active
// token of the user, the presented one included.
func Refresh(c *gin.Context) {
	env := EnvInstance(c)
	db := dbpkg.DBInstance(c)
	if env == nil || db == nil {
		RespondError(c, "server not configured", http.StatusInternalServerError)
		return
	}

	var req RefreshRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondError(c, bindErrorMessage(err), http.StatusBadRequest)
		return
	}

	now := env.Clock.Now()
	hash := tools.EncryptTextSHA512(req.RefreshToken)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ?", hash).First(&stored).Error; err != nil {
		RespondError(c, "invalid refresh token", http.StatusUnauthorized)
		return
	}
	if stored.IsRevoked() || stored.IsExpired(now) {
		RespondError(c, "refresh token expired", http.StatusUnauthorized)
		return
	}

	user, err := env.Users.Get(stored.UserID)
	if err != nil {
		RespondError(c, "invalid refresh token", http.StatusUnauthorized)
		return
	}
	if user.Status != models.USER_STATUS_AVAILABLE {
		RespondError(c, "account not available", http.StatusForbidden)
		return
	}

	if err := revokeAllUserRefreshTokens(db, stored.UserID, now); err != nil {
		RespondError(c, "failed to revoke previous sessions", http.StatusInternalServerError)
		return
	}

	resp, err := issueTokenPair(db, env, user, now)
	if err != nil {
		RespondError(c, "failed to issue tokens", http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, resp)
}

// issueRefreshToken creates a random token, stores its SHA-512 hash and returns the plain value.
func issueRefreshToken(db *gorm.DB, userID int64, now time.Time, ttl time.Duration, length int) (string, error) {
	token, err := tools.RandomString(length)
	if err != nil {
		return "", err
	}
	expires := now.Add(ttl)
	rt := models.RefreshToken{
		UserID:    userID,
		TokenHash: tools.EncryptTextSHA512(token),
		ExpiresAt: &expires,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

func revokeAllUserRefreshTokens(db *gorm.DB, userID int64, now time.Time) error {
	return db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		UpdateColumns(map[string]any{"revoked_at": now, "updated_at": now}).Error
}
