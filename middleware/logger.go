package middleware

import (
	"log/slog"
	"time"

	"platestyle/metrics"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request at a level chosen by status class and records HTTP metrics.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.ObserveHTTP(route, c.Request.Method, status, duration)

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", duration.Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "http request completed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "http request completed", attrs...)
		default:
			slog.InfoContext(ctx, "http request completed", attrs...)
		}
	}
}
