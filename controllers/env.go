package controllers

import (
	"platestyle/config"
	"platestyle/services"
	"platestyle/storage"
	"platestyle/styles"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const envKey = "env"

// Env holds the services handlers need. It is injected per request like the db handle.
type Env struct {
	Config  config.Configuration
	Clock   clockwork.Clock
	Users   *services.UserService
	Jobs    *services.JobService
	Credits *services.CreditService
	Admin   *services.AdminService
	Store   storage.Store
	Catalog *styles.Catalog
	Redis   *redis.Client // nil when redis is not configured
}

func SetEnvToContext(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(envKey, env)
		c.Next()
	}
}

func EnvInstance(c *gin.Context) *Env {
	v, ok := c.Get(envKey)
	if !ok {
		return nil
	}
	env, _ := v.(*Env)
	return env
}
