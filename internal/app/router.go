package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waveline.io/courier/internal/api/handlers"
	"waveline.io/courier/internal/api/middleware"
	"waveline.io/courier/internal/config"
)

// Public routes that do NOT require JWT authentication.
var publicPrefixes = []string{
	"/health",
	"/metrics",
}

func newRouter(cfg *config.Config, server *handlers.Server, health *handlers.HealthHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(jwtSkipPublic([]byte(cfg.Security.JWTSecret)))

	router.GET("/healthz", health.Liveness)
	router.GET("/health/live", health.Liveness)
	router.GET("/health/ready", health.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	server.RegisterRoutes(api)

	return router
}

// jwtSkipPublic applies JWT auth only on non-public routes.
func jwtSkipPublic(signingKey []byte) gin.HandlerFunc {
	jwtMw := middleware.JWTAuth(signingKey)
	return func(c *gin.Context) {
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		jwtMw(c)
	}
}
