package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"careercatalyst-backend/internal/metrics"
	"careercatalyst-backend/internal/server/middleware"
)

func registerRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.Profile())
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/session/analyses" {
				return "ANALYSIS"
			}
			return "DEFAULT"
		},
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT":  {Rate: 10, Burst: 30},
			"ANALYSIS": {Rate: 0.2, Burst: 3},
		},
	}))
	handler.RegisterRoutes(api)
}
