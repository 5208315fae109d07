package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
)

// controlBudget bounds locating and clicking the play control, on top of
// the settle wait.
const controlBudget = 2 * time.Second

// MediaOptions parameterise ResolveAudio.
type MediaOptions struct {
	Spec     models.MediaSpec
	Settle   time.Duration
	Poll     time.Duration
	Disabled bool
}

// ResolveAudio clicks the entry's play control and polls until the media
// element inside el carries a non-empty source attribute. It returns ""
// when the entry has no control, the click fails, or the source does not
// appear within opts.Settle.
func ResolveAudio(ctx context.Context, s scraper.Session, el scraper.Element, opts MediaOptions) string {
	if opts.Disabled || opts.Spec.Control == "" || opts.Spec.Element == "" {
		return ""
	}

	stepCtx, cancel := context.WithTimeout(ctx, opts.Settle+controlBudget)
	defer cancel()

	control, err := s.FindWithin(stepCtx, el, opts.Spec.Control)
	if err != nil {
		slog.Debug("entry has no play control", "element", describe(el), "error", err)
		return ""
	}
	if err := click(stepCtx, s, control); err != nil {
		slog.Debug("play control click failed", "element", describe(el), "error", err)
		return ""
	}

	attr := opts.Spec.Attr
	if attr == "" {
		attr = "src"
	}
	media := models.FieldSpec{Selector: opts.Spec.Element, Attr: attr}

	var src string
	loaded := func(ctx context.Context) (bool, error) {
		v, err := lookup(ctx, s, el, media)
		if err != nil {
			return false, err
		}
		src = v
		return v != "", nil
	}
	if err := scraper.PollUntil(stepCtx, loaded, opts.Settle, opts.Poll); err != nil {
		slog.Debug("audio source did not appear", "element", describe(el), "settle", opts.Settle, "error", err)
		return ""
	}
	return src
}

func click(ctx context.Context, s scraper.Session, el scraper.Element) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errDriverPanic(r)
		}
	}()
	return s.Click(ctx, el)
}
