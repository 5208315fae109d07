package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/feedgrab/config"
	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
)

// SessionOpener hands out browser sessions. *scraper.Scraper implements it.
type SessionOpener interface {
	Open(ctx context.Context, opts scraper.SessionOptions) (scraper.Session, error)
}

// Result is the outcome of one run. On failure it still carries the
// records assembled before the failure.
type Result struct {
	URL     string
	Records []models.Record
	Scroll  models.ScrollInfo
	Timing  models.TimingInfo
}

// Response converts r and the run error into the API response shape.
func (r *Result) Response(err error) *models.FeedResponse {
	resp := &models.FeedResponse{
		Success: err == nil,
		URL:     r.URL,
		Count:   len(r.Records),
		Records: r.Records,
		Scroll:  r.Scroll,
		Timing:  r.Timing,
	}
	if err != nil {
		resp.Error = toDetail(err)
	}
	return resp
}

func toDetail(err error) *models.ErrorDetail {
	if se := models.AsScrapeError(err); se != nil {
		return se.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

// Run performs one complete collection: open a session, load the feed,
// scroll until enough entries exist, then assemble records in document
// order. The session is closed on every exit path. req is not modified;
// unset fields take the built-in defaults, except a non-nil req.Selectors,
// which is used as given.
func Run(ctx context.Context, opener SessionOpener, req *models.FeedRequest) (*Result, error) {
	start := time.Now()
	result := &Result{Records: []models.Record{}}

	r := *req
	if r.Selectors != nil {
		// Already resolved upstream; cleared optional selectors stay cleared.
		r.Defaults(&models.FeedRequest{Selectors: r.Selectors})
	} else {
		r.Defaults(nil)
	}
	if err := r.Validate(); err != nil {
		return result, err
	}
	if err := config.ValidateSelectors(r.Selectors); err != nil {
		return result, err
	}
	feedURL, err := r.FeedURL()
	if err != nil {
		return result, err
	}
	result.URL = feedURL
	result.Scroll = models.ScrollInfo{Target: r.Target, MaxAttempts: r.MaxAttempts, Phase: string(PhaseCollecting)}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.Timeout)*time.Second)
	defer cancel()

	finish := func(err error) (*Result, error) {
		result.Timing.TotalMs = time.Since(start).Milliseconds()
		attrs := []any{
			"url", feedURL,
			"records", len(result.Records),
			"attempts", result.Scroll.Attempts,
			"phase", result.Scroll.Phase,
			"duration_ms", result.Timing.TotalMs,
		}
		if err != nil {
			slog.Warn("feed run failed", append(attrs, "code", models.CodeOf(err), "error", err)...)
		} else {
			slog.Info("feed run finished", attrs...)
		}
		return result, err
	}

	sess, err := opener.Open(ctx, scraper.SessionOptions{Stealth: r.Stealth})
	if err != nil {
		return finish(fatal(ctx, err, models.ErrCodeBrowserCrash, "failed to open browser session"))
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			slog.Warn("closing session failed", "error", cerr)
		}
	}()

	sel := r.Selectors

	// ── Load ────────────────────────────────────────────────────────
	phaseStart := time.Now()
	err = Load(ctx, sess, feedURL, sel.Wrapper, time.Duration(r.ReadyTimeout)*time.Second)
	result.Timing.LoadMs = time.Since(phaseStart).Milliseconds()
	if err != nil {
		return finish(fatal(ctx, err, models.ErrCodeNavigation, "loading the feed failed"))
	}

	// ── Collect ─────────────────────────────────────────────────────
	phaseStart = time.Now()
	handles, st, err := Collect(ctx, sess, CollectOptions{
		Wrapper:     sel.Wrapper,
		Fallback:    sel.FallbackWrapper,
		Target:      r.Target,
		MaxAttempts: r.MaxAttempts,
		ScrollDelta: r.ScrollDelta,
		Pause:       time.Duration(r.PauseMs) * time.Millisecond,
	})
	result.Timing.CollectMs = time.Since(phaseStart).Milliseconds()
	result.Scroll = st.Info()
	if err != nil {
		return finish(fatal(ctx, err, models.ErrCodeInternal, "collecting feed entries failed"))
	}

	// ── Assemble ────────────────────────────────────────────────────
	phaseStart = time.Now()
	result.Records = Assemble(ctx, sess, handles, AssembleOptions{
		Fields: sel.Fields,
		Target: r.Target,
		Media: MediaOptions{
			Spec:     sel.Media,
			Settle:   time.Duration(r.SettleMs) * time.Millisecond,
			Poll:     time.Duration(r.PollMs) * time.Millisecond,
			Disabled: r.SkipAudio,
		},
	})
	result.Timing.AssembleMs = time.Since(phaseStart).Milliseconds()
	if ctx.Err() != nil {
		return finish(models.NewScrapeError(models.ErrCodeTimeout, "run deadline reached during assembly", ctx.Err()))
	}

	return finish(nil)
}

// fatal normalises err into a ScrapeError. A done ctx always maps to
// SCRAPE_TIMEOUT; other untyped errors get code.
func fatal(ctx context.Context, err error, code, message string) error {
	se := models.AsScrapeError(err)
	if ctx.Err() != nil {
		if se != nil && se.Code == models.ErrCodeTimeout {
			return se
		}
		return models.NewScrapeError(models.ErrCodeTimeout, "run deadline reached", err)
	}
	if se != nil {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeTimeout, message, err)
	}
	return models.NewScrapeError(code, message, err)
}
