package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
)

// Load navigates s to url and blocks until at least one element matches
// readySelector. It fails with PAGE_NOT_READY when timeout elapses first.
// Neither step is retried.
func Load(ctx context.Context, s scraper.Session, url, readySelector string, timeout time.Duration) error {
	if err := s.Navigate(ctx, url); err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return se
		}
		return models.NewScrapeError(models.ErrCodeNavigation, "navigation to feed URL failed", err)
	}

	ready := func(ctx context.Context) (bool, error) {
		els, err := s.FindAll(ctx, readySelector)
		if err != nil {
			return false, err
		}
		return len(els) > 0, nil
	}
	if err := s.WaitUntil(ctx, ready, timeout); err != nil {
		if ctx.Err() != nil {
			return models.NewScrapeError(models.ErrCodeTimeout, "run deadline reached while waiting for the feed", ctx.Err())
		}
		return models.NewScrapeError(
			models.ErrCodePageNotReady,
			fmt.Sprintf("no element matched %q within %s", readySelector, timeout),
			err,
		)
	}
	return nil
}
