package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/esimdex/api/handler"
	"github.com/use-agent/esimdex/api/middleware"
	"github.com/use-agent/esimdex/catalog"
	"github.com/use-agent/esimdex/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(svc *catalog.Service, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(svc, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/esims", handler.ListAll(svc))
	protected.GET("/esims/:country", handler.ByCountry(svc))
	protected.POST("/refresh", handler.Refresh(svc))

	return r
}
