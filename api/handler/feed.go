package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/feedgrab/cache"
	"github.com/use-agent/feedgrab/feed"
	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
)

// Feed returns a handler for POST /api/v1/feed.
//
// Orchestration flow:
//  1. Parse request (an empty body means "all defaults"), apply base.
//  2. Cache lookup when max_age is set.
//  3. feed.Run: load → scroll-collect → assemble.
//  4. Cache store on success, respond.
//
// Failed runs still return the records assembled before the failure.
func Feed(sc *scraper.Scraper, base *models.FeedRequest, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.FeedRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), emptyResponse())
			return
		}
		req.Defaults(base)
		if err := req.Validate(); err != nil {
			respondError(c, err, emptyResponse())
			return
		}

		// ── 2. Cache lookup ─────────────────────────────────────────
		var cacheKey string
		if cc != nil && req.MaxAge > 0 {
			cacheKey = cache.Key(&req)
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				cached.CacheStatus = "hit"
				cached.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		// ── 3. Run ──────────────────────────────────────────────────
		result, err := feed.Run(c.Request.Context(), sc, &req)
		resp := result.Response(err)
		if err != nil {
			respondError(c, err, resp)
			return
		}

		// ── 4. Cache store ──────────────────────────────────────────
		if cacheKey != "" {
			cc.Set(cacheKey, resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

func emptyResponse() *models.FeedResponse {
	return &models.FeedResponse{Records: []models.Record{}}
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// resp with the error attached.
func respondError(c *gin.Context, err error, resp *models.FeedResponse) {
	scrapeErr := models.AsScrapeError(err)
	if scrapeErr == nil {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	resp.Success = false
	resp.Error = scrapeErr.ToDetail()
	c.JSON(mapErrorToStatus(scrapeErr), resp)
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodePageNotReady, models.ErrCodeNoItemsFound:
		return http.StatusUnprocessableEntity // 422
	default:
		return http.StatusInternalServerError // 500
	}
}
