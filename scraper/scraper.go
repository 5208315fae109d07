package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/use-agent/feedgrab/config"
	"github.com/use-agent/feedgrab/models"
)

// Scraper wraps a driver Opener with a session cap and usage accounting.
// It is safe for concurrent use; the sessions it returns are not.
type Scraper struct {
	opener      Opener
	sem         chan struct{}
	maxSessions int
	activePages atomic.Int32
}

// NewScraper builds the driver selected by browserCfg.Driver.
// For the browser drivers this launches (or connects to) Chromium.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Scraper, error) {
	var (
		opener Opener
		err    error
	)
	switch browserCfg.Driver {
	case "", "rod":
		opener, err = NewRodOpener(browserCfg, scraperCfg)
	case "chromedp":
		opener, err = NewChromedpOpener(browserCfg, scraperCfg)
	case "static":
		opener = NewStaticOpener(browserCfg, scraperCfg)
	default:
		return nil, models.NewScrapeError(
			models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown driver %q", browserCfg.Driver),
			nil,
		)
	}
	if err != nil {
		return nil, err
	}
	return Wrap(opener, browserCfg.MaxSessions), nil
}

// Wrap caps opener at maxSessions concurrently open sessions.
// maxSessions <= 0 means one.
func Wrap(opener Opener, maxSessions int) *Scraper {
	if maxSessions <= 0 {
		maxSessions = 1
	}
	slog.Info("session pool created", "driver", opener.Name(), "maxSessions", maxSessions)
	return &Scraper{
		opener:      opener,
		sem:         make(chan struct{}, maxSessions),
		maxSessions: maxSessions,
	}
}

// Name returns the driver name.
func (s *Scraper) Name() string { return s.opener.Name() }

// Open blocks until a session slot is free, then opens a session. The slot
// is released when the session is closed.
func (s *Scraper) Open(ctx context.Context, opts SessionOptions) (Session, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, categorizeError(ctx.Err(), "waiting for a free browser session")
	}

	sess, err := s.opener.Open(ctx, opts)
	if err != nil {
		<-s.sem
		return nil, err
	}
	s.activePages.Add(1)
	return &trackedSession{Session: sess, release: func() {
		s.activePages.Add(-1)
		<-s.sem
	}}, nil
}

// Stats returns a snapshot of session usage.
func (s *Scraper) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    s.maxSessions,
		ActiveSessions: int(s.activePages.Load()),
	}
}

// Close shuts the driver down. Call this on exit to prevent zombie
// Chrome processes.
func (s *Scraper) Close() error {
	slog.Info("scraper shutting down", "driver", s.opener.Name())
	err := s.opener.Close()
	slog.Info("scraper shutdown complete")
	return err
}

// trackedSession releases its pool slot exactly once.
type trackedSession struct {
	Session
	once    sync.Once
	release func()
	err     error
}

func (t *trackedSession) Close() error {
	t.once.Do(func() {
		t.err = t.Session.Close()
		t.release()
	})
	return t.err
}
