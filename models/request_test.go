package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFeedRequest_Defaults verifies built-in defaults for an empty request.
func TestFeedRequest_Defaults(t *testing.T) {
	var r FeedRequest
	r.Defaults(nil)

	assert.Equal(t, DefaultFeedURL, r.URL)
	assert.Equal(t, DefaultChannel, r.Channel)
	assert.Equal(t, 20, r.Target)
	assert.Equal(t, 15, r.MaxAttempts)
	assert.Equal(t, 2000, r.ScrollDelta)
	assert.Equal(t, 1000, r.PauseMs)
	assert.Equal(t, 20, r.ReadyTimeout)
	assert.Equal(t, 1500, r.SettleMs)
	assert.Equal(t, 120, r.Timeout)
	require.NotNil(t, r.Selectors)
	assert.Equal(t, DefaultSelectors(), *r.Selectors)
	require.NoError(t, r.Validate())

	u, err := r.FeedURL()
	require.NoError(t, err)
	assert.Equal(t, "https://www.genspark.ai/news?channel=entertainment", u)
}

// TestFeedRequest_DefaultsFromBase verifies base values win over constants
// and request values win over base.
func TestFeedRequest_DefaultsFromBase(t *testing.T) {
	base := &FeedRequest{
		URL:       "https://feed.example.com/news",
		Channel:   "sports",
		Target:    30,
		PauseMs:   250,
		SkipAudio: true,
		Selectors: &Selectors{Wrapper: ".card"},
	}

	r := FeedRequest{Target: 5, Selectors: &Selectors{Fields: FieldSet{Title: FieldSpec{Selector: "h2"}}}}
	r.Defaults(base)

	assert.Equal(t, "https://feed.example.com/news", r.URL)
	assert.Equal(t, "sports", r.Channel)
	assert.Equal(t, 5, r.Target)
	assert.Equal(t, 250, r.PauseMs)
	assert.True(t, r.SkipAudio)
	assert.Equal(t, ".card", r.Selectors.Wrapper)
	assert.Equal(t, "h2", r.Selectors.Fields.Title.Selector)
}

// TestFeedRequest_ownURLKeepsChannel verifies the base channel is not
// applied to a URL the caller chose.
func TestFeedRequest_ownURLKeepsChannel(t *testing.T) {
	base := &FeedRequest{URL: "https://feed.example.com/news", Channel: "sports"}

	r := FeedRequest{URL: "https://other.example.com/latest"}
	r.Defaults(base)

	assert.Empty(t, r.Channel)
	u, err := r.FeedURL()
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/latest", u)
}

func TestFeedRequest_DefaultsClamps(t *testing.T) {
	r := FeedRequest{ReadyTimeout: 500, Timeout: 5000, SettleMs: 60_000, PollMs: 1}
	r.Defaults(nil)

	assert.Equal(t, MaxReadyTimeout, r.ReadyTimeout)
	assert.Equal(t, MaxTimeout, r.Timeout)
	assert.Equal(t, 10_000, r.SettleMs)
	assert.Equal(t, 50, r.PollMs)
}

func TestFeedRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		edit func(r *FeedRequest)
	}{
		{"target too large", func(r *FeedRequest) { r.Target = MaxTarget + 1 }},
		{"negative attempts", func(r *FeedRequest) { r.MaxAttempts = -1 }},
		{"negative pause", func(r *FeedRequest) { r.PauseMs = -5 }},
		{"no wrapper", func(r *FeedRequest) { r.Selectors.Wrapper = "" }},
		{"bad scheme", func(r *FeedRequest) { r.URL = "javascript:alert(1)" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r FeedRequest
			r.Defaults(nil)
			tt.edit(&r)

			err := r.Validate()
			require.Error(t, err)
			assert.Equal(t, ErrCodeInvalidInput, CodeOf(err))
		})
	}
}

func TestFeedURL(t *testing.T) {
	u, err := FeedURL("https://www.genspark.ai/news?lang=en", "tech")
	require.NoError(t, err)
	assert.Equal(t, "https://www.genspark.ai/news?channel=tech&lang=en", u)

	u, err = FeedURL("file:///tmp/snapshot.html", "")
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/snapshot.html", u)

	_, err = FeedURL("ftp://example.com", "")
	assert.Error(t, err)
}

func TestSelectors_Merge(t *testing.T) {
	merged := DefaultSelectors().Merge(Selectors{
		Wrapper: "article.story",
		Fields: FieldSet{
			Image:   FieldSpec{Selector: "picture source", Attr: "srcset"},
			IDAttrs: []string{"data-story"},
		},
		Media: MediaSpec{Attr: "data-src"},
	})

	assert.Equal(t, "article.story", merged.Wrapper)
	assert.Equal(t, FieldSpec{Selector: "picture source", Attr: "srcset"}, merged.Fields.Image)
	assert.Equal(t, FieldSpec{Selector: ".title"}, merged.Fields.Title)
	assert.Equal(t, []string{"data-story"}, merged.Fields.IDAttrs)
	assert.Equal(t, ".podcast-player audio", merged.Media.Element)
	assert.Equal(t, "data-src", merged.Media.Attr)
}

func TestBatchRequest_Runs(t *testing.T) {
	b := BatchRequest{
		Channels: []string{"sports", "tech"},
		URLs:     []string{"https://feed.example.com/a"},
		Options:  FeedRequest{Channel: "ignored", Target: 5},
	}

	runs := b.Runs()
	require.Len(t, runs, 3)
	assert.Equal(t, "sports", runs[0].Channel)
	assert.Equal(t, "tech", runs[1].Channel)
	assert.Equal(t, "https://feed.example.com/a", runs[2].URL)
	assert.Empty(t, runs[2].Channel)
	for _, r := range runs {
		assert.Equal(t, 5, r.Target)
	}
}

func TestBatchJob(t *testing.T) {
	job := &BatchJob{ID: "b", Total: 2, Results: make([]*FeedResponse, 2)}
	job.SetResult(1, &FeedResponse{Success: true})
	assert.Equal(t, 1, job.Snapshot().Completed)

	job.SetResult(0, &FeedResponse{Success: false})
	assert.Equal(t, BatchPartial, job.Finish())

	all := &BatchJob{Total: 1, Results: make([]*FeedResponse, 1)}
	all.SetResult(0, &FeedResponse{Success: false})
	assert.Equal(t, BatchFailed, all.Finish())
}
