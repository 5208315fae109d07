package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/feedgrab/config"
	"github.com/use-agent/feedgrab/models"
)

// RodOpener owns one Chromium process driven through go-rod. Every
// session is a fresh tab.
type RodOpener struct {
	browser    *rod.Browser
	scraperCfg config.ScraperConfig
	userAgent  string
	remote     bool
}

// NewRodOpener launches a browser, or connects to browserCfg.CDPURL when
// set.
func NewRodOpener(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*RodOpener, error) {
	controlURL := browserCfg.CDPURL
	remote := controlURL != ""

	if !remote {
		l := launcher.New().
			Headless(browserCfg.Headless).
			NoSandbox(browserCfg.NoSandbox)

		if browserCfg.BrowserBin != "" {
			l = l.Bin(browserCfg.BrowserBin)
		}
		if browserCfg.DefaultProxy != "" {
			l = l.Proxy(browserCfg.DefaultProxy)
		}

		// ── Stealth flags ────────────────────────────────────────────
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-features"), "TranslateUI")
		// The podcast player only mounts its <audio> after a user gesture.
		l.Set(flags.Flag("autoplay-policy"), "no-user-gesture-required")
		l.Set(flags.Flag("mute-audio"))
		l.Set(flags.Flag("disable-popup-blocking"))
		l.Set(flags.Flag("disable-renderer-backgrounding"))
		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
		l.Set(flags.Flag("disable-component-update"))
		l.Set(flags.Flag("disable-default-apps"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("no-first-run"))

		var err error
		controlURL, err = l.Launch()
		if err != nil {
			return nil, models.NewScrapeError(
				models.ErrCodeBrowserCrash,
				"failed to launch browser",
				err,
			)
		}
		slog.Info("browser launched", "controlURL", controlURL)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &RodOpener{
		browser:    browser,
		scraperCfg: scraperCfg,
		userAgent:  browserCfg.UserAgent,
		remote:     remote,
	}, nil
}

// Name implements Opener.
func (o *RodOpener) Name() string { return "rod" }

// Open creates a tab. Stealth JS and the request filter are installed
// before the first navigation so they apply to it.
func (o *RodOpener) Open(ctx context.Context, opts SessionOptions) (Session, error) {
	var (
		page *rod.Page
		err  error
	)
	if opts.Stealth || o.scraperCfg.Stealth {
		page, err = stealth.Page(o.browser)
	} else {
		page, err = o.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to create page",
			err,
		)
	}

	if o.userAgent != "" {
		if uaErr := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: o.userAgent}); uaErr != nil {
			slog.Warn("failed to override user agent", "error", uaErr)
		}
	}

	filter := newRequestFilter(o.scraperCfg.BlockedResourceTypes, o.scraperCfg.BlockAds)
	filter.attach(page)

	return &rodSession{
		page:   page,
		filter: filter,
		cfg:    o.scraperCfg,
	}, nil
}

// Close kills the browser process. A browser reached through a CDP URL is
// left running.
func (o *RodOpener) Close() error {
	if o.remote {
		slog.Info("leaving remote browser running")
		return nil
	}
	return o.browser.Close()
}

// rodSession drives one tab.
type rodSession struct {
	page   *rod.Page
	filter *requestFilter
	cfg    config.ScraperConfig

	mu     sync.Mutex
	closed bool
}

func (s *rodSession) alive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// withTimeout bounds a single operation by the configured action timeout.
func (s *rodSession) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.cfg.ActionTimeout
	if d <= 0 {
		d = actionTimeout
	}
	return context.WithTimeout(ctx, d)
}

func (s *rodSession) Navigate(ctx context.Context, target string) error {
	if err := s.alive(); err != nil {
		return err
	}
	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		setExtraHeaders(s.page, map[string]string{
			"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
		})
	}

	p := s.page.Context(navCtx)
	if err := p.Navigate(target); err != nil {
		return categorizeError(err, "navigation to feed URL failed")
	}
	if err := p.WaitLoad(); err != nil {
		slog.Debug("load event not observed, proceeding with current DOM", "error", err)
	}
	if s.cfg.RemoveOverlays {
		removeOverlays(p)
	}
	return nil
}

func (s *rodSession) ExecuteScript(ctx context.Context, js string) error {
	if err := s.alive(); err != nil {
		return err
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return execJS(s.page.Context(opCtx), js)
}

func (s *rodSession) WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) error {
	if err := s.alive(); err != nil {
		return err
	}
	return PollUntil(ctx, cond, timeout, pollInterval)
}

func (s *rodSession) FindAll(ctx context.Context, selector string) ([]Element, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Elements does not wait: an empty page yields an empty slice.
	els, err := s.page.Context(opCtx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (s *rodSession) FindWithin(ctx context.Context, el Element, selector string) (Element, error) {
	root, err := s.element(el)
	if err != nil {
		return nil, err
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return findWithin(root.Context(opCtx), selector)
}

func (s *rodSession) Text(ctx context.Context, el Element) (string, error) {
	e, err := s.element(el)
	if err != nil {
		return "", err
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return e.Context(opCtx).Text()
}

func (s *rodSession) Attribute(ctx context.Context, el Element, name string) (string, error) {
	e, err := s.element(el)
	if err != nil {
		return "", err
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return readAttribute(e.Context(opCtx), name)
}

func (s *rodSession) Click(ctx context.Context, el Element) error {
	e, err := s.element(el)
	if err != nil {
		return err
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return execClick(e.Context(opCtx))
}

func (s *rodSession) Sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}

// Close stops the request filter and closes the tab. Only the first call
// has any effect.
func (s *rodSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.filter.stop()
	return s.page.Close()
}

func (s *rodSession) element(el Element) (*rod.Element, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}
	e, ok := el.(*rod.Element)
	if !ok || e == nil {
		return nil, ErrNotFound
	}
	return e, nil
}
