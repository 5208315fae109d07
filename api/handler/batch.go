package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/feedgrab/feed"
	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
	"github.com/use-agent/feedgrab/webhook"
	"golang.org/x/sync/errgroup"
)

// maxBatchRuns caps channels plus URLs per batch.
const maxBatchRuns = 100

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Background goroutine to expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			expireBatches(time.Now().Add(-1 * time.Hour))
		}
	}()
}

func expireBatches(cutoff time.Time) {
	batchStore.Range(func(key, value any) bool {
		job := value.(*models.BatchJob)
		if job.CreatedAt < cutoff.Unix() {
			batchStore.Delete(key)
		}
		return true
	})
}

// PostBatch returns a handler for POST /api/v1/batch/feed.
// It validates every run up front, creates a batch job, and collects the
// feeds in the background with at most concurrency runs in flight.
func PostBatch(sc *scraper.Scraper, base *models.FeedRequest, concurrency int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBatchError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}

		runs := req.Runs()
		switch {
		case len(runs) == 0:
			respondBatchError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "at least one channel or URL is required", nil))
			return
		case len(runs) > maxBatchRuns:
			respondBatchError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "maximum 100 feeds per batch", nil))
			return
		}
		for i := range runs {
			runs[i].Defaults(base)
			if err := runs[i].Validate(); err != nil {
				respondBatchError(c, err)
				return
			}
		}

		jobID := "batch-" + uuid.NewString()
		job := &models.BatchJob{
			ID:        jobID,
			Status:    models.BatchProcessing,
			Total:     len(runs),
			Results:   make([]*models.FeedResponse, len(runs)),
			CreatedAt: time.Now().Unix(),
		}
		batchStore.Store(jobID, job)

		// Launch collection in background.
		go runBatch(sc, job, runs, concurrency, req.WebhookURL, req.WebhookSecret)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     jobID,
			Status: models.BatchProcessing,
			Total:  len(runs),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := batchStore.Load(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		c.JSON(http.StatusOK, val.(*models.BatchJob).Snapshot())
	}
}

// runBatch collects every run, at most concurrency at a time. Each run
// holds its own browser session; records within a run stay sequential.
func runBatch(sc *scraper.Scraper, job *models.BatchJob, runs []models.FeedRequest, concurrency int, webhookURL, webhookSecret string) {
	if concurrency <= 0 {
		concurrency = 1
	}
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range runs {
		g.Go(func() error {
			result, err := feed.Run(context.Background(), sc, &runs[i])
			job.SetResult(i, result.Response(err))
			return nil
		})
	}
	_ = g.Wait()

	status := job.Finish()
	snapshot := job.Snapshot()
	slog.Info("batch job finished",
		"id", job.ID,
		"status", status,
		"completed", snapshot.Completed,
		"total", snapshot.Total,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if webhookURL != "" {
		webhook.DeliverAsync(webhookURL, webhookSecret, &webhook.Event{
			Type:      "batch.completed",
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      snapshot,
		})
	}
}

func respondBatchError(c *gin.Context, err error) {
	scrapeErr := models.AsScrapeError(err)
	if scrapeErr == nil {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(scrapeErr), gin.H{"error": scrapeErr.ToDetail()})
}
