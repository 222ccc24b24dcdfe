package controllers

import (
	"context"
	"net/http"
	"time"

	dbpkg "platestyle/db"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Health pings the database and, when configured, redis. Any failure answers 503.
func Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if db := dbpkg.DBInstance(c); db == nil {
		checks["database"] = "not configured"
		healthy = false
	} else if err := db.DB().PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if env := EnvInstance(c); env != nil && env.Redis != nil {
		if err := env.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}
