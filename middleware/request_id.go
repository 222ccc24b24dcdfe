package middleware

import (
	"strings"

	"platestyle/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HEADER_REQUEST_ID = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or creates one, echoes it back and
// stores it on the request context so every log line carries it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HEADER_REQUEST_ID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(HEADER_REQUEST_ID, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
