package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/use-agent/feedgrab/config"
	"github.com/use-agent/feedgrab/models"
)

// ChromedpOpener drives Chromium through chromedp. Sessions are tabs of a
// single browser context.
type ChromedpOpener struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	scraperCfg    config.ScraperConfig
}

// NewChromedpOpener starts the browser eagerly so launch failures surface
// here rather than on the first Open.
func NewChromedpOpener(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*ChromedpOpener, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if browserCfg.CDPURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), browserCfg.CDPURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", browserCfg.Headless),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
			chromedp.Flag("mute-audio", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("no-sandbox", browserCfg.NoSandbox),
		)
		if browserCfg.BrowserBin != "" {
			opts = append(opts, chromedp.ExecPath(browserCfg.BrowserBin))
		}
		if browserCfg.DefaultProxy != "" {
			opts = append(opts, chromedp.ProxyServer(browserCfg.DefaultProxy))
		}
		if browserCfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(browserCfg.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "driver", "chromedp")

	return &ChromedpOpener{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		scraperCfg:    scraperCfg,
	}, nil
}

// Name implements Opener.
func (o *ChromedpOpener) Name() string { return "chromedp" }

// Open creates a new tab in the shared browser.
func (o *ChromedpOpener) Open(ctx context.Context, _ SessionOptions) (Session, error) {
	tabCtx, cancel := chromedp.NewContext(o.browserCtx)
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		cancel()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to create tab",
			err,
		)
	}
	return &chromedpSession{tabCtx: tabCtx, cancel: cancel, cfg: o.scraperCfg}, nil
}

// Close shuts the browser down.
func (o *ChromedpOpener) Close() error {
	o.browserCancel()
	o.allocCancel()
	return nil
}

// cdpElement is the chromedp Element handle.
type cdpElement struct {
	node *cdp.Node
}

func (e cdpElement) String() string {
	return e.node.FullXPath()
}

type chromedpSession struct {
	tabCtx context.Context
	cancel context.CancelFunc
	cfg    config.ScraperConfig

	mu     sync.Mutex
	closed bool
}

// run executes actions on the tab, bounded by timeout and by the caller's
// ctx. chromedp needs its own context tree, so ctx is only used for
// cancellation.
func (s *chromedpSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if timeout <= 0 {
		timeout = actionTimeout
	}
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return categorizeError(err, "navigation to feed URL failed")
	}
	return nil
}

func (s *chromedpSession) ExecuteScript(ctx context.Context, js string) error {
	return s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(js, nil))
}

func (s *chromedpSession) WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) error {
	return PollUntil(ctx, cond, timeout, pollInterval)
}

func (s *chromedpSession) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}
	return wrapNodes(nodes), nil
}

func (s *chromedpSession) FindWithin(ctx context.Context, el Element, selector string) (Element, error) {
	parent, err := nodeOf(el)
	if err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	err = s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.FromNode(parent), chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return cdpElement{node: nodes[0]}, nil
}

func (s *chromedpSession) Text(ctx context.Context, el Element) (string, error) {
	n, err := nodeOf(el)
	if err != nil {
		return "", err
	}
	var text string
	err = s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Text([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID))
	return text, err
}

func (s *chromedpSession) Attribute(ctx context.Context, el Element, name string) (string, error) {
	n, err := nodeOf(el)
	if err != nil {
		return "", err
	}
	var (
		value string
		ok    bool
	)
	err = s.run(ctx, s.cfg.ActionTimeout,
		chromedp.AttributeValue([]cdp.NodeID{n.NodeID}, name, &value, &ok, chromedp.ByNodeID))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoAttribute, name)
	}
	return value, nil
}

func (s *chromedpSession) Click(ctx context.Context, el Element) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	return s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Click([]cdp.NodeID{n.NodeID}, chromedp.ByNodeID))
}

func (s *chromedpSession) Sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}

// Close cancels the tab context, which closes the tab.
func (s *chromedpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.cancel()
	}
	return nil
}

func nodeOf(el Element) (*cdp.Node, error) {
	e, ok := el.(cdpElement)
	if !ok || e.node == nil {
		return nil, ErrNotFound
	}
	return e.node, nil
}

func wrapNodes(nodes []*cdp.Node) []Element {
	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = cdpElement{node: n}
	}
	return out
}
