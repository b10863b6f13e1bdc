// api/router.go
package api

import (
	"database/sql"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/siftmail/sift-backend/api/handlers"
	"github.com/siftmail/sift-backend/api/middleware"
	"github.com/siftmail/sift-backend/config"
	"github.com/siftmail/sift-backend/internal/auth"
	"github.com/siftmail/sift-backend/internal/gateway"
)

// SetupRouter initializes the Gin router and sets up all routes.
func SetupRouter(db *sql.DB, cfg *config.Config, authn *auth.Authenticator) *gin.Engine {
	router := gin.Default() // Includes Logger and Recovery

	// Credentialed CORS: the browser only sends the session cookie when the
	// origin is explicitly allowed.
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.ErrorHandler())

	gw := gateway.NewGateway(db, cfg.QueryTimeout)

	authHandler := handlers.NewAuthHandler(db, cfg, authn)
	queryHandler := handlers.NewQueryHandler(gw)

	// --- Public Routes ---
	router.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	ratelimiter := middleware.NewRateLimiter(cfg.AuthRateLimit, time.Minute)
	authRoutes := router.Group("/auth")
	authRoutes.Use(middleware.RateLimitMiddleware(ratelimiter))
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/signin", authHandler.Signin)
		authRoutes.POST("/signout", authHandler.Signout)
		authRoutes.GET("/session", authHandler.Session)
		authRoutes.POST("/reset-password", authHandler.ResetPassword)
		authRoutes.POST("/update-user", middleware.SessionAuth(authn), authHandler.UpdateUser)
	}

	// --- Protected Routes ---
	router.POST("/query", middleware.SessionAuth(authn), queryHandler.Query)

	return router
}
