package models

// FeedResponse is the response for POST /api/v1/feed.
type FeedResponse struct {
	// Success indicates whether the run completed without a fatal error.
	Success bool `json:"success"`

	// URL is the resolved feed URL, channel included.
	URL string `json:"url"`

	// Count is len(Records).
	Count int `json:"count"`

	// Records are in feed order. On failure they hold whatever was
	// assembled before the run stopped, possibly nothing.
	Records []Record `json:"records"`

	// Scroll reports how the scroll-poll loop ended.
	Scroll ScrollInfo `json:"scroll"`

	// Timing provides duration breakdowns for the run.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// ScrollInfo is the final state of the scroll-poll loop.
type ScrollInfo struct {
	ItemsSeen   int    `json:"items_seen"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Target      int    `json:"target"`
	Phase       string `json:"phase"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// LoadMs covers navigation and the readiness wait.
	LoadMs int64 `json:"load_ms"`

	// CollectMs covers the scroll-poll loop.
	CollectMs int64 `json:"collect_ms"`

	// AssembleMs covers field extraction and audio resolution.
	AssembleMs int64 `json:"assemble_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string       `json:"status"` // "healthy" or "degraded"
	Uptime   string       `json:"uptime"`
	Driver   string       `json:"driver"`
	Sessions SessionStats `json:"sessions"`
	Version  string       `json:"version"`
}

// SessionStats reports how many browser sessions are open.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
}
