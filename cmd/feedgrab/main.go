// Command feedgrab collects one feed and writes its records as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/feedgrab/config"
	"github.com/use-agent/feedgrab/feed"
	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
)

var (
	feedURL      = flag.String("url", "", "Feed URL (default: FEEDGRAB_FEED_URL or the built-in feed)")
	channel      = flag.String("channel", "", "Channel query parameter (default: FEEDGRAB_CHANNEL)")
	target       = flag.Int("target", 0, "Number of records to collect")
	maxAttempts  = flag.Int("max-attempts", 0, "Maximum scroll iterations")
	scrollDelta  = flag.Int("scroll-delta", 0, "Pixels advanced per scroll")
	pause        = flag.Duration("pause", 0, "Wait after each scroll")
	readyTimeout = flag.Duration("ready-timeout", 0, "Wait for the first entry")
	driver       = flag.String("driver", "", "Session driver: rod, chromedp or static")
	selectors    = flag.String("selectors", "", "YAML file overlaying the default selectors")
	output       = flag.String("out", "news.json", "Output file, - for stdout")
	partial      = flag.Bool("partial", false, "Write the records collected so far when the run fails")
	skipAudio    = flag.Bool("skip-audio", false, "Do not click media controls")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always happens.
func run() int {
	// ── 1. Load configuration, flags win over env ───────────────────
	cfg := config.Load()
	if *driver != "" {
		cfg.Browser.Driver = *driver
	}
	if *selectors != "" {
		cfg.Feed.SelectorsFile = *selectors
	}
	cfg.Browser.MaxSessions = 1

	initLogger(cfg.Log, os.Stderr)

	sel, err := config.LoadSelectors(cfg.Feed.SelectorsFile)
	if err != nil {
		slog.Error("failed to load selectors", "file", cfg.Feed.SelectorsFile, "error", err)
		return 1
	}

	req := models.FeedRequest{
		URL:          *feedURL,
		Channel:      *channel,
		Target:       *target,
		MaxAttempts:  *maxAttempts,
		ScrollDelta:  *scrollDelta,
		PauseMs:      config.Millis(*pause),
		ReadyTimeout: config.Seconds(*readyTimeout),
		SkipAudio:    *skipAudio,
	}
	req.Defaults(cfg.BaseRequest(sel))
	if err := req.Validate(); err != nil {
		slog.Error("invalid options", "error", err)
		return 1
	}

	// ── 2. Start the browser ────────────────────────────────────────
	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		return 1
	}
	defer sc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Collect ──────────────────────────────────────────────────
	res, runErr := feed.Run(ctx, sc, &req)
	if runErr != nil {
		slog.Error("collection failed",
			"url", res.URL,
			"code", models.CodeOf(runErr),
			"records", len(res.Records),
			"error", runErr,
		)
		if !*partial {
			return 1
		}
	}

	// ── 4. Write output ─────────────────────────────────────────────
	if err := writeRecords(*output, res.Records); err != nil {
		slog.Error("failed to write output", "out", *output, "error", err)
		return 1
	}
	slog.Info(fmt.Sprintf("saved %d records", len(res.Records)),
		"out", *output,
		"phase", res.Scroll.Phase,
		"total", time.Duration(res.Timing.TotalMs)*time.Millisecond,
	)
	if runErr != nil {
		return 1
	}
	return 0
}

// writeRecords writes records as an indented JSON array to path, or to
// stdout when path is "-".
func writeRecords(path string, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// initLogger configures slog based on the LogConfig. Logs go to w so
// stdout stays free for records.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
