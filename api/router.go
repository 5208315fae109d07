package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/feedgrab/api/handler"
	"github.com/use-agent/feedgrab/api/middleware"
	"github.com/use-agent/feedgrab/cache"
	"github.com/use-agent/feedgrab/config"
	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
// base is the request every incoming request is defaulted from.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(sc *scraper.Scraper, cfg *config.Config, cc *cache.Cache, base *models.FeedRequest, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(sc, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Feed
	protected.POST("/feed", handler.Feed(sc, base, cc))

	// Batch
	protected.POST("/batch/feed", handler.PostBatch(sc, base, cfg.Batch.Concurrency))
	protected.GET("/batch/:id", handler.GetBatch())

	return r
}
