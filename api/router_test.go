package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/feedgrab/cache"
	"github.com/use-agent/feedgrab/config"
	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
)

const testKey = "test-key"

func feedPage(n int) string {
	var b strings.Builder
	b.WriteString("<html><head><title>News</title></head><body><main>")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<div class="flow_item_wrapper" data-id="n%d">
  <div class="title">Story %d</div>
  <div class="image"><img src="https://img.example.com/%d.jpg"></div>
  <div class="summary">Summary of story %d.</div>
  <span class="source-name">Example Wire</span>
  <span class="published-time">%dh ago</span>
</div>`, i, i, i, i, i)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

// feedServer serves /news with three entries and /empty with none.
func feedServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		fmt.Fprint(w, feedPage(3))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>Nothing here yet.</p></body></html>")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{testKey}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		Batch:     config.BatchConfig{Concurrency: 2},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	sc := scraper.Wrap(scraper.NewStaticOpener(config.BrowserConfig{}, config.ScraperConfig{}), 4)
	base := &models.FeedRequest{PauseMs: 1, ReadyTimeout: 1, SettleMs: 50}
	return NewRouter(sc, cfg, cache.New(10, time.Hour), base, time.Now())
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeFeed(t *testing.T, rec *httptest.ResponseRecorder) models.FeedResponse {
	t.Helper()
	var resp models.FeedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "static", health.Driver)
	assert.Equal(t, 4, health.Sessions.MaxSessions)
	assert.Zero(t, health.Sessions.ActiveSessions)
}

func TestFeed_unauthorized(t *testing.T) {
	h := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/feed", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, models.ErrCodeUnauthorized, decodeFeed(t, rec).Error.Code)
}

// TestFeed_collects verifies records come back in page order, truncated to
// the target.
func TestFeed_collects(t *testing.T) {
	srv := feedServer(t, nil)
	h := newTestRouter(t, testConfig())

	rec := do(t, h, http.MethodPost, "/api/v1/feed", map[string]any{
		"url":    srv.URL + "/news",
		"target": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeFeed(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, srv.URL+"/news", resp.URL)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, models.Record{
		ID:            "n1",
		Title:         "Story 1",
		Image:         "https://img.example.com/1.jpg",
		Summary:       "Summary of story 1.",
		Source:        "Example Wire",
		PublishedTime: "1h ago",
		Audio:         "",
	}, resp.Records[0])
	assert.Equal(t, "Story 2", resp.Records[1].Title)
	assert.Equal(t, "satisfied", resp.Scroll.Phase)
	assert.Zero(t, resp.Scroll.Attempts)
}

// TestFeed_exhausted verifies a short feed returns what exists once the
// scroll budget is spent.
func TestFeed_exhausted(t *testing.T) {
	srv := feedServer(t, nil)
	h := newTestRouter(t, testConfig())

	rec := do(t, h, http.MethodPost, "/api/v1/feed", map[string]any{
		"url":          srv.URL + "/news",
		"target":       10,
		"max_attempts": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeFeed(t, rec)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, "exhausted", resp.Scroll.Phase)
	assert.Equal(t, 2, resp.Scroll.Attempts)
}

func TestFeed_pageNotReady(t *testing.T) {
	srv := feedServer(t, nil)
	h := newTestRouter(t, testConfig())

	rec := do(t, h, http.MethodPost, "/api/v1/feed", map[string]any{"url": srv.URL + "/empty"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeFeed(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrCodePageNotReady, resp.Error.Code)
	assert.Empty(t, resp.Records)
}

func TestFeed_invalidInput(t *testing.T) {
	h := newTestRouter(t, testConfig())

	rec := do(t, h, http.MethodPost, "/api/v1/feed", map[string]any{"target": 1000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.ErrCodeInvalidInput, decodeFeed(t, rec).Error.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/feed", map[string]any{
		"selectors": map[string]any{"wrapper": "div[[["},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeed_cache(t *testing.T) {
	var hits atomic.Int32
	srv := feedServer(t, &hits)
	h := newTestRouter(t, testConfig())
	body := map[string]any{"url": srv.URL + "/news", "target": 3, "max_age": 60_000}

	first := decodeFeed(t, do(t, h, http.MethodPost, "/api/v1/feed", body))
	second := decodeFeed(t, do(t, h, http.MethodPost, "/api/v1/feed", body))

	assert.Equal(t, "miss", first.CacheStatus)
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFeed_cacheSeparatesRecordOptions(t *testing.T) {
	var hits atomic.Int32
	srv := feedServer(t, &hits)
	h := newTestRouter(t, testConfig())
	body := map[string]any{"url": srv.URL + "/news", "target": 3, "max_age": 60_000, "skip_audio": true}

	first := decodeFeed(t, do(t, h, http.MethodPost, "/api/v1/feed", body))
	body["skip_audio"] = false
	second := decodeFeed(t, do(t, h, http.MethodPost, "/api/v1/feed", body))
	body["max_attempts"] = 1
	third := decodeFeed(t, do(t, h, http.MethodPost, "/api/v1/feed", body))

	assert.Equal(t, "miss", first.CacheStatus)
	assert.Equal(t, "miss", second.CacheStatus)
	assert.Equal(t, "miss", third.CacheStatus)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	h := newTestRouter(t, cfg)

	// The first request spends the only token even though it is invalid.
	do(t, h, http.MethodPost, "/api/v1/feed", map[string]any{"target": 1000})
	rec := do(t, h, http.MethodPost, "/api/v1/feed", map[string]any{"target": 1000})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

// TestBatch verifies a batch runs every feed and reports a partial status
// when one of them fails.
func TestBatch(t *testing.T) {
	srv := feedServer(t, nil)
	h := newTestRouter(t, testConfig())

	rec := do(t, h, http.MethodPost, "/api/v1/batch/feed", map[string]any{
		"urls":    []string{srv.URL + "/news", srv.URL + "/empty"},
		"options": map[string]any{"target": 2},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created models.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 2, created.Total)
	assert.True(t, strings.HasPrefix(created.ID, "batch-"))

	var status models.BatchStatusResponse
	require.Eventually(t, func() bool {
		rec := do(t, h, http.MethodGet, "/api/v1/batch/"+created.ID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		status = models.BatchStatusResponse{}
		_ = json.Unmarshal(rec.Body.Bytes(), &status)
		return status.Status != models.BatchProcessing
	}, 10*time.Second, 50*time.Millisecond)

	assert.Equal(t, models.BatchPartial, status.Status)
	assert.Equal(t, 2, status.Completed)
	require.Len(t, status.Results, 2)
	assert.True(t, status.Results[0].Success)
	assert.Equal(t, 2, status.Results[0].Count)
	assert.Equal(t, models.ErrCodePageNotReady, status.Results[1].Error.Code)
}

func TestBatch_rejectsEmpty(t *testing.T) {
	h := newTestRouter(t, testConfig())

	rec := do(t, h, http.MethodPost, "/api/v1/batch/feed", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/batch/batch-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
