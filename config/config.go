package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/feedgrab/models"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Feed      FeedConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Batch     BatchConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the browser driver.
type BrowserConfig struct {
	// Driver selects the session implementation: "rod", "chromedp" or "static".
	Driver string // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxSessions caps concurrently open sessions (tabs).
	MaxSessions int // default: 4

	// DefaultProxy is the proxy URL passed to the browser.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// CDPURL connects to an already running browser instead of launching one.
	CDPURL string

	// UserAgent overrides the browser user agent.
	UserAgent string
}

// ScraperConfig controls page-level behavior shared by all drivers.
type ScraperConfig struct {
	// NavigationTimeout is the max time for the navigation call alone.
	NavigationTimeout time.Duration // default: 30s

	// ActionTimeout bounds a single element operation (query, read, click).
	ActionTimeout time.Duration // default: 10s

	// BlockedResourceTypes lists resource types to block.
	// Media is never blocked: audio sources must load.
	// default: ["Image", "Stylesheet", "Font"]
	BlockedResourceTypes []string

	// BlockAds drops requests to known ad and tracking domains.
	BlockAds bool // default: true

	// RemoveOverlays strips fixed-position banners that intercept clicks.
	RemoveOverlays bool // default: true

	// Stealth enables anti-bot-detection evasions for every session.
	Stealth bool // default: false
}

// FeedConfig holds the collection defaults applied to every request.
type FeedConfig struct {
	URL           string        // default: models.DefaultFeedURL
	Channel       string        // default: "entertainment"
	Target        int           // default: 20
	MaxAttempts   int           // default: 15
	ScrollDelta   int           // default: 2000
	ScrollPause   time.Duration // default: 1s
	ReadyTimeout  time.Duration // default: 20s
	SettleTimeout time.Duration // default: 1.5s
	PollInterval  time.Duration // default: 250ms
	RunTimeout    time.Duration // default: 120s
	SkipAudio     bool          // default: false

	// SelectorsFile is an optional YAML file overlaying the default selectors.
	SelectorsFile string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// CacheConfig controls the feed response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 200

	// TTL bounds how long an entry is kept regardless of max_age.
	TTL time.Duration // default: 1h
}

// BatchConfig controls the batch endpoint.
type BatchConfig struct {
	// Concurrency caps the feeds collected in parallel per batch.
	Concurrency int // default: 2
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("FEEDGRAB_HOST", "0.0.0.0"),
			Port: envIntOr("FEEDGRAB_PORT", 8080),
			Mode: envOr("FEEDGRAB_MODE", "release"),
		},
		Browser: BrowserConfig{
			Driver:       envOr("FEEDGRAB_DRIVER", "rod"),
			Headless:     envBoolOr("FEEDGRAB_HEADLESS", true),
			MaxSessions:  envIntOr("FEEDGRAB_MAX_SESSIONS", 4),
			DefaultProxy: os.Getenv("FEEDGRAB_PROXY"),
			NoSandbox:    envBoolOr("FEEDGRAB_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("FEEDGRAB_BROWSER_BIN"),
			CDPURL:       os.Getenv("FEEDGRAB_CDP_URL"),
			UserAgent:    os.Getenv("FEEDGRAB_USER_AGENT"),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("FEEDGRAB_NAV_TIMEOUT", 30*time.Second),
			ActionTimeout:     envDurationOr("FEEDGRAB_ACTION_TIMEOUT", 10*time.Second),
			BlockedResourceTypes: envSliceOr("FEEDGRAB_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font",
			}),
			BlockAds:       envBoolOr("FEEDGRAB_BLOCK_ADS", true),
			RemoveOverlays: envBoolOr("FEEDGRAB_REMOVE_OVERLAYS", true),
			Stealth:        envBoolOr("FEEDGRAB_STEALTH", false),
		},
		Feed: FeedConfig{
			URL:           envOr("FEEDGRAB_FEED_URL", models.DefaultFeedURL),
			Channel:       envOr("FEEDGRAB_CHANNEL", models.DefaultChannel),
			Target:        envIntOr("FEEDGRAB_TARGET", models.DefaultTarget),
			MaxAttempts:   envIntOr("FEEDGRAB_MAX_ATTEMPTS", models.DefaultMaxAttempts),
			ScrollDelta:   envIntOr("FEEDGRAB_SCROLL_DELTA", models.DefaultScrollDelta),
			ScrollPause:   envDurationOr("FEEDGRAB_SCROLL_PAUSE", time.Second),
			ReadyTimeout:  envDurationOr("FEEDGRAB_READY_TIMEOUT", 20*time.Second),
			SettleTimeout: envDurationOr("FEEDGRAB_SETTLE_TIMEOUT", 1500*time.Millisecond),
			PollInterval:  envDurationOr("FEEDGRAB_POLL_INTERVAL", 250*time.Millisecond),
			RunTimeout:    envDurationOr("FEEDGRAB_RUN_TIMEOUT", 120*time.Second),
			SkipAudio:     envBoolOr("FEEDGRAB_SKIP_AUDIO", false),
			SelectorsFile: os.Getenv("FEEDGRAB_SELECTORS_FILE"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("FEEDGRAB_AUTH_ENABLED", true),
			APIKeys: envSliceOr("FEEDGRAB_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("FEEDGRAB_RATE_RPS", 1.0),
			Burst:             envIntOr("FEEDGRAB_RATE_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("FEEDGRAB_CACHE_MAX_ENTRIES", 200),
			TTL:        envDurationOr("FEEDGRAB_CACHE_TTL", time.Hour),
		},
		Batch: BatchConfig{
			Concurrency: envIntOr("FEEDGRAB_BATCH_CONCURRENCY", 2),
		},
		Log: LogConfig{
			Level:  envOr("FEEDGRAB_LOG_LEVEL", "info"),
			Format: envOr("FEEDGRAB_LOG_FORMAT", "json"),
		},
	}
}

// BaseRequest converts the feed defaults into the request every incoming
// request is defaulted from. Durations are rounded up to the request's
// units (seconds or milliseconds).
func (c *Config) BaseRequest(sel *models.Selectors) *models.FeedRequest {
	return &models.FeedRequest{
		URL:          c.Feed.URL,
		Channel:      c.Feed.Channel,
		Target:       c.Feed.Target,
		MaxAttempts:  c.Feed.MaxAttempts,
		ScrollDelta:  c.Feed.ScrollDelta,
		PauseMs:      Millis(c.Feed.ScrollPause),
		ReadyTimeout: Seconds(c.Feed.ReadyTimeout),
		SettleMs:     Millis(c.Feed.SettleTimeout),
		PollMs:       Millis(c.Feed.PollInterval),
		Timeout:      Seconds(c.Feed.RunTimeout),
		SkipAudio:    c.Feed.SkipAudio,
		Stealth:      c.Scraper.Stealth,
		Selectors:    sel,
	}
}

// Seconds converts d to whole seconds, rounding up so that a positive
// duration never becomes 0 ("unset").
func Seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// Millis converts d to whole milliseconds, rounding up.
func Millis(d time.Duration) int {
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
