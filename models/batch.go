package models

import "sync"

// BatchRequest is the payload for POST /api/v1/batch/feed.
// Each channel and each URL becomes one independent run.
type BatchRequest struct {
	// Channels are collected from Options.URL (or the default feed).
	Channels []string `json:"channels,omitempty" binding:"omitempty,max=50"`

	// URLs are collected as given; Options.Channel is not applied to them.
	URLs []string `json:"urls,omitempty" binding:"omitempty,max=50,dive,url"`

	// Options contains shared settings applied to every run.
	Options FeedRequest `json:"options"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Runs expands the batch into one FeedRequest per channel and URL,
// channels first, in request order.
func (b *BatchRequest) Runs() []FeedRequest {
	runs := make([]FeedRequest, 0, len(b.Channels)+len(b.URLs))
	for _, ch := range b.Channels {
		r := b.Options
		r.Channel = ch
		runs = append(runs, r)
	}
	for _, u := range b.URLs {
		r := b.Options
		r.URL = u
		r.Channel = ""
		runs = append(runs, r)
	}
	return runs
}

// BatchResponse is the immediate response for POST /api/v1/batch/feed.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Results   []*FeedResponse `json:"results,omitempty"`
}

// Batch job states.
const (
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchPartial    = "partial"
	BatchFailed     = "failed"
)

// BatchJob tracks an in-progress batch operation. Workers report through
// SetResult; readers take a Snapshot.
type BatchJob struct {
	ID        string
	Status    string // "processing", "completed", "failed", "partial"
	Total     int
	Completed int
	Results   []*FeedResponse
	CreatedAt int64 // unix timestamp

	mu     sync.Mutex
	failed int
}

// SetResult stores the response of run idx.
func (j *BatchJob) SetResult(idx int, resp *FeedResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results[idx] = resp
	j.Completed++
	if !resp.Success {
		j.failed++
	}
}

// Finish derives the final status from the stored results and returns it.
func (j *BatchJob) Finish() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.Total > 0 && j.failed == j.Total:
		j.Status = BatchFailed
	case j.failed > 0:
		j.Status = BatchPartial
	default:
		j.Status = BatchCompleted
	}
	return j.Status
}

// Snapshot returns a consistent copy of the job's public state.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*FeedResponse, len(j.Results))
	copy(results, j.Results)
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.Status,
		Completed: j.Completed,
		Total:     j.Total,
		Results:   results,
	}
}
