package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/feedgrab/models"
	"github.com/ysmood/gson"
)

// setExtraHeaders sends headers with every request of the page. Failures
// are logged and otherwise ignored.
func setExtraHeaders(page *rod.Page, headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	err := proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(headers),
	}.Call(page)
	if err != nil {
		slog.Debug("failed to set extra headers", "error", err)
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// removeOverlays strips fixed-position consent banners and modal overlays
// that would otherwise swallow clicks on the feed. Feed entries are never
// fixed-position, so they survive.
func removeOverlays(p *rod.Page) {
	const js = `() => {
		const selectors = [
			'[class*="cookie"]', '[class*="consent"]', '[class*="overlay"]',
			'[id*="cookie"]', '[id*="consent"]', '[id*="overlay"]',
			'[class*="popup"]', '[id*="popup"]', '[class*="modal"]',
			'[class*="gdpr"]', '[id*="gdpr"]',
		];
		let removed = 0;
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const pos = window.getComputedStyle(el).position;
				if (pos === 'fixed' || pos === 'sticky') {
					el.remove();
					removed++;
				}
			});
		}
		// Remove any overflow:hidden on body/html (often set by modals).
		document.documentElement.style.overflow = '';
		if (document.body) document.body.style.overflow = '';
		return String(removed);
	}`
	if n := evalStringOrEmpty(p, js); n != "" && n != "0" {
		slog.Debug("removed overlays", "count", n)
	}
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
