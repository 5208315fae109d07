package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
)

// Phase is the state of the scroll-poll loop.
type Phase string

const (
	PhaseCollecting   Phase = "collecting"
	PhaseSatisfied    Phase = "satisfied"
	PhaseExhausted    Phase = "exhausted"
	PhaseNoItemsFound Phase = "no_items_found"
)

// ScrollState is the transient state of one Collect call.
//
// Transitions: Collecting -> Collecting | Satisfied | Exhausted, and after
// the loop Exhausted/Satisfied -> NoItemsFound when nothing was seen.
// Attempts never exceeds MaxAttempts.
type ScrollState struct {
	ItemsSeen   int
	Attempts    int
	MaxAttempts int
	Target      int
	Phase       Phase
}

func newScrollState(target, maxAttempts int) *ScrollState {
	return &ScrollState{
		Target:      target,
		MaxAttempts: max(maxAttempts, 0),
		Phase:       PhaseCollecting,
	}
}

// observe records a wrapper count and reports whether it grew.
func (st *ScrollState) observe(n int) bool {
	if n <= st.ItemsSeen {
		return false
	}
	st.ItemsSeen = n
	return true
}

// advance moves out of Collecting once the target is met or the scroll
// budget is spent.
func (st *ScrollState) advance() Phase {
	switch {
	case st.ItemsSeen >= st.Target:
		st.Phase = PhaseSatisfied
	case st.Attempts >= st.MaxAttempts:
		st.Phase = PhaseExhausted
	}
	return st.Phase
}

// Info converts the state for API responses.
func (st *ScrollState) Info() models.ScrollInfo {
	return models.ScrollInfo{
		ItemsSeen:   st.ItemsSeen,
		Attempts:    st.Attempts,
		MaxAttempts: st.MaxAttempts,
		Target:      st.Target,
		Phase:       string(st.Phase),
	}
}

// CollectOptions parameterise Collect.
type CollectOptions struct {
	Wrapper     string
	Fallback    string
	Target      int
	MaxAttempts int
	ScrollDelta int
	Pause       time.Duration
}

// scrollScript advances the viewport by delta pixels.
func scrollScript(delta int) string {
	return fmt.Sprintf("window.scrollBy(0, %d)", delta)
}

// Collect scrolls until at least opts.Target wrappers are present or
// opts.MaxAttempts scrolls were issued, then returns the first
// min(Target, ItemsSeen) wrapper handles in document order.
//
// Query and scroll failures inside the loop are transient: the iteration
// still counts, so the loop always terminates. With zero wrappers at the
// end, opts.Fallback is tried once before failing with NO_ITEMS_FOUND.
func Collect(ctx context.Context, s scraper.Session, opts CollectOptions) ([]scraper.Element, *ScrollState, error) {
	st := newScrollState(opts.Target, opts.MaxAttempts)
	var handles []scraper.Element

	for st.Phase == PhaseCollecting {
		if err := ctx.Err(); err != nil {
			return nil, st, models.NewScrapeError(models.ErrCodeTimeout, "run deadline reached while scrolling", err)
		}

		found, err := s.FindAll(ctx, opts.Wrapper)
		if err != nil {
			slog.Debug("wrapper query failed", "attempt", st.Attempts, "error", err)
		} else if st.observe(len(found)) {
			handles = found
			slog.Debug("feed grew", "items", st.ItemsSeen, "attempt", st.Attempts)
		}

		if st.advance() != PhaseCollecting {
			break
		}

		if err := s.ExecuteScript(ctx, scrollScript(opts.ScrollDelta)); err != nil {
			slog.Debug("scroll failed", "attempt", st.Attempts, "error", err)
		}
		if err := s.Sleep(ctx, opts.Pause); err != nil {
			return nil, st, models.NewScrapeError(models.ErrCodeTimeout, "run deadline reached while scrolling", err)
		}
		st.Attempts++
	}

	if len(handles) == 0 && opts.Fallback != "" {
		found, err := s.FindAll(ctx, opts.Fallback)
		if err != nil {
			slog.Debug("fallback query failed", "error", err)
		}
		if len(found) > 0 {
			slog.Warn("wrapper selector matched nothing, using fallback",
				"wrapper", opts.Wrapper,
				"fallback", opts.Fallback,
				"items", len(found),
			)
			handles = found
			st.observe(len(found))
			st.advance()
		}
	}

	if len(handles) == 0 {
		st.Phase = PhaseNoItemsFound
		return nil, st, models.NewScrapeError(
			models.ErrCodeNoItemsFound,
			fmt.Sprintf("no feed entries found after %d scrolls", st.Attempts),
			nil,
		)
	}

	return handles[:min(st.Target, len(handles))], st, nil
}
