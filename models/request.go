package models

import (
	"fmt"
	"net/url"
)

// Built-in collection defaults, used when neither the request nor the
// configured base request sets a value.
const (
	DefaultFeedURL       = "https://www.genspark.ai/news"
	DefaultChannel       = "entertainment"
	DefaultTarget        = 20
	DefaultMaxAttempts   = 15
	DefaultScrollDelta   = 2000
	DefaultPauseMs       = 1000
	DefaultReadyTimeout  = 20
	DefaultSettleMs      = 1500
	DefaultTimeout       = 120
	MaxTarget            = 500
	MaxReadyTimeout      = 120
	MaxTimeout           = 600
	defaultPollInterval  = 250
	minimumPollInterval  = 50
	maximumSettleTimeout = 10_000
)

// FeedRequest is the payload for POST /api/v1/feed and the input of one
// collection run.
type FeedRequest struct {
	// URL is the feed endpoint. Default: the Genspark news feed.
	URL string `json:"url,omitempty" binding:"omitempty,url"`

	// Channel is set as the "channel" query parameter when non-empty.
	Channel string `json:"channel,omitempty"`

	// Target is the number of records to collect. Default: 20. Max: 500.
	Target int `json:"target,omitempty" binding:"omitempty,min=1,max=500"`

	// MaxAttempts bounds the number of scroll iterations. Default: 15.
	MaxAttempts int `json:"max_attempts,omitempty" binding:"omitempty,min=1,max=200"`

	// ScrollDelta is the viewport advance per scroll, in pixels. Default: 2000.
	ScrollDelta int `json:"scroll_delta,omitempty" binding:"omitempty,min=1"`

	// PauseMs is the wait after each scroll for lazy content. Default: 1000.
	PauseMs int `json:"pause_ms,omitempty" binding:"omitempty,min=1,max=30000"`

	// ReadyTimeout is the readiness wait in seconds. Default: 20. Max: 120.
	ReadyTimeout int `json:"ready_timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// SettleMs bounds the wait for the audio element after clicking play.
	// Default: 1500.
	SettleMs int `json:"settle_ms,omitempty" binding:"omitempty,min=1,max=10000"`

	// PollMs is the audio poll interval. Default: 250.
	PollMs int `json:"poll_ms,omitempty" binding:"omitempty,min=50,max=5000"`

	// Timeout is the hard deadline in seconds for the whole run. Default: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=600"`

	// SkipAudio disables the play-to-load audio interaction.
	SkipAudio bool `json:"skip_audio,omitempty"`

	// Stealth enables anti-bot-detection evasions on browser drivers.
	Stealth bool `json:"stealth,omitempty"`

	// Selectors overrides parts of the configured selector set. Empty
	// selectors keep the configured value.
	Selectors *Selectors `json:"selectors,omitempty"`

	// MaxAge enables the response cache: a cached response younger than
	// MaxAge milliseconds is returned instead of running the feed.
	MaxAge int `json:"max_age,omitempty"`
}

// Defaults fills unset fields from base (when non-nil), then from the
// built-in constants. A request naming its own URL keeps its own channel,
// possibly none.
func (r *FeedRequest) Defaults(base *FeedRequest) {
	if base != nil {
		// The base channel belongs to the base URL.
		if r.URL == "" {
			r.URL = base.URL
			if r.Channel == "" {
				r.Channel = base.Channel
			}
		}
		r.Target = orInt(r.Target, base.Target)
		r.MaxAttempts = orInt(r.MaxAttempts, base.MaxAttempts)
		r.ScrollDelta = orInt(r.ScrollDelta, base.ScrollDelta)
		r.PauseMs = orInt(r.PauseMs, base.PauseMs)
		r.ReadyTimeout = orInt(r.ReadyTimeout, base.ReadyTimeout)
		r.SettleMs = orInt(r.SettleMs, base.SettleMs)
		r.PollMs = orInt(r.PollMs, base.PollMs)
		r.Timeout = orInt(r.Timeout, base.Timeout)
		r.SkipAudio = r.SkipAudio || base.SkipAudio
		r.Stealth = r.Stealth || base.Stealth
	}

	if r.URL == "" {
		r.URL = DefaultFeedURL
		if r.Channel == "" {
			r.Channel = DefaultChannel
		}
	}
	r.Target = orInt(r.Target, DefaultTarget)
	r.MaxAttempts = orInt(r.MaxAttempts, DefaultMaxAttempts)
	r.ScrollDelta = orInt(r.ScrollDelta, DefaultScrollDelta)
	r.PauseMs = orInt(r.PauseMs, DefaultPauseMs)
	r.ReadyTimeout = orInt(r.ReadyTimeout, DefaultReadyTimeout)
	r.SettleMs = orInt(r.SettleMs, DefaultSettleMs)
	r.PollMs = orInt(r.PollMs, defaultPollInterval)
	r.Timeout = orInt(r.Timeout, DefaultTimeout)
	sel := DefaultSelectors()
	if base != nil && base.Selectors != nil {
		sel = *base.Selectors
	}
	if r.Selectors != nil {
		sel = sel.Merge(*r.Selectors)
	}
	r.Selectors = &sel

	r.ReadyTimeout = min(r.ReadyTimeout, MaxReadyTimeout)
	r.Timeout = min(r.Timeout, MaxTimeout)
	r.SettleMs = min(r.SettleMs, maximumSettleTimeout)
	r.PollMs = max(r.PollMs, minimumPollInterval)
}

// Validate checks a defaulted request. It returns an INVALID_INPUT
// ScrapeError describing the first problem found.
func (r *FeedRequest) Validate() error {
	switch {
	case r.Target < 1 || r.Target > MaxTarget:
		return invalid("target must be between 1 and %d, got %d", MaxTarget, r.Target)
	case r.MaxAttempts < 0:
		return invalid("max_attempts must not be negative, got %d", r.MaxAttempts)
	case r.ScrollDelta < 1:
		return invalid("scroll_delta must be positive, got %d", r.ScrollDelta)
	case r.PauseMs < 0:
		return invalid("pause_ms must not be negative, got %d", r.PauseMs)
	case r.Selectors == nil || r.Selectors.Wrapper == "":
		return invalid("a wrapper selector is required")
	}
	if _, err := r.FeedURL(); err != nil {
		return err
	}
	return nil
}

// FeedURL returns URL with the channel query parameter applied.
func (r *FeedRequest) FeedURL() (string, error) {
	return FeedURL(r.URL, r.Channel)
}

// FeedURL sets the "channel" query parameter on base. An empty channel
// leaves base untouched. Only http, https and file URLs are accepted.
func FeedURL(base, channel string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", NewScrapeError(ErrCodeInvalidInput, "invalid feed URL", err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return "", invalid("unsupported feed URL scheme %q", u.Scheme)
	}
	if channel != "" {
		q := u.Query()
		q.Set("channel", channel)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func orInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func invalid(format string, args ...any) *ScrapeError {
	return NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf(format, args...), nil)
}
