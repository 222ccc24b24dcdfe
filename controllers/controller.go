package controllers

import (
	"log/slog"

	"platestyle/apperrors"

	"github.com/gin-gonic/gin"
)

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(200, payload)
}

// RespondAppError writes err with the status of its apperrors type. Server-side failures are logged
// with their cause and answered with the generic message only.
func RespondAppError(c *gin.Context, err error) {
	e := apperrors.As(err)
	status := e.HTTPStatus()
	if status >= 500 {
		slog.ErrorContext(c.Request.Context(), e.Message,
			"error_type", e.Type,
			"path", c.Request.URL.Path,
			"cause", e.Cause,
		)
	}
	_ = c.Error(err)
	RespondError(c, e.Message, status)
}
