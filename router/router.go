package router

import (
	"log/slog"

	"platestyle/controllers"
	dbpkg "platestyle/db"
	"platestyle/middleware"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Initialize wires all routes and middlewares: public routes, authenticated routes,
// "validated" routes (active user) and admin routes.
func Initialize(r *gin.Engine, db *gorm.DB, env *controllers.Env) error {
	if err := controllers.RegisterValidators(env.Catalog); err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(env.Config.RateLimit.RPS, env.Config.RateLimit.Burst, env.Clock)

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORSMiddleware(env.Config.CORSOrigins))
	r.Use(dbpkg.SetDBtoContext(db))
	r.Use(controllers.SetEnvToContext(env))

	r.GET("/health", controllers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Public (no auth)
	public := api.Group("")
	public.Use(limiter.Middleware())
	public.POST("/users", controllers.CreateUser)
	public.POST("/login", controllers.Login)
	public.POST("/refresh", controllers.Refresh)

	// Authenticated routes (token required)
	auth := api.Group("")
	auth.Use(controllers.AuthRequired())
	auth.GET("/me", controllers.Me)

	// Validated routes (token + active user)
	validated := auth.Group("")
	validated.Use(Authorizer())

	validated.PUT("/me", controllers.UpdateCurrentUser)
	validated.GET("/me/credits", controllers.MyCredits)
	validated.GET("/styles", controllers.GetStyles)

	// Jobs
	validated.POST("/jobs", limiter.Middleware(), controllers.SubmitJob)
	validated.GET("/jobs", controllers.ListJobs)
	validated.GET("/jobs/:id", controllers.GetJob)
	validated.GET("/jobs/:id/status", controllers.GetJobStatus)
	validated.POST("/jobs/:id/process", controllers.ProcessJob)
	validated.POST("/jobs/:id/retry", limiter.Middleware(), controllers.RetryJob)
	validated.DELETE("/jobs/:id", controllers.DeleteJob)

	// Image proxy
	validated.GET("/images/:id/:type", controllers.GetImage)

	// Admin routes
	admin := validated.Group("/admin")
	admin.Use(Adminizer())

	admin.GET("/users", controllers.AdminListUsers)
	admin.PUT("/users/:id/credits", controllers.AdminGrantCredits)
	admin.PUT("/users/:id/admin", controllers.AdminSetUserAdmin)
	admin.PUT("/users/:id/status", controllers.AdminSetUserStatus)
	admin.GET("/jobs", controllers.AdminListJobs)
	admin.DELETE("/jobs/:id", controllers.AdminDeleteJob)
	admin.GET("/stats", controllers.AdminStats)
	admin.GET("/credits", controllers.AdminCreditLedger)

	slog.Info("routes initialized")
	return nil
}
