package server

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"careercatalyst-backend/internal/config"
	"careercatalyst-backend/internal/server/middleware"
)

// NewEngine builds the gin engine with middleware and routes registered.
func NewEngine(cfg config.Config, handler *Handler) *gin.Engine {
	if cfg.Env == "production" || cfg.Env == "staging" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	registerRoutes(engine, handler)
	return engine
}

// Addr returns a normalized listen address for the given port.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
