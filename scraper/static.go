package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/feedgrab/config"
	"github.com/use-agent/feedgrab/models"
	"golang.org/x/net/html"
)

// StaticOpener serves sessions over a single fetched HTML document with no
// JavaScript. Scrolling does nothing and clicking is unsupported, so it
// only sees server-rendered entries and never resolves audio. It is meant
// for replaying saved snapshots (file:// URLs) and for feeds that render
// on the server.
type StaticOpener struct {
	fetcher *httpFetcher
}

// NewStaticOpener creates a StaticOpener. Only the proxy setting of
// browserCfg is used.
func NewStaticOpener(browserCfg config.BrowserConfig, _ config.ScraperConfig) *StaticOpener {
	return &StaticOpener{fetcher: newHTTPFetcher(browserCfg.DefaultProxy)}
}

// Name implements Opener.
func (o *StaticOpener) Name() string { return "static" }

// Open implements Opener.
func (o *StaticOpener) Open(_ context.Context, _ SessionOptions) (Session, error) {
	return &staticSession{fetcher: o.fetcher}, nil
}

// Close implements Opener. There is no process to stop.
func (o *StaticOpener) Close() error { return nil }

// staticElement wraps a single-node goquery selection.
type staticElement struct {
	sel *goquery.Selection
}

func (e staticElement) String() string {
	name := goquery.NodeName(e.sel)
	if class, ok := e.sel.Attr("class"); ok && class != "" {
		return name + "." + strings.Join(strings.Fields(class), ".")
	}
	return name
}

type staticSession struct {
	fetcher *httpFetcher

	mu     sync.Mutex
	doc    *goquery.Document
	closed bool
}

// NewStaticSession returns a session already loaded with body. Navigate
// replaces the document.
func NewStaticSession(body []byte) (Session, error) {
	s := &staticSession{fetcher: newHTTPFetcher("")}
	if err := s.load(body); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *staticSession) document() (*goquery.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	return s.doc, nil
}

func (s *staticSession) load(body []byte) error {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	s.mu.Lock()
	s.doc = goquery.NewDocumentFromNode(root)
	s.mu.Unlock()
	return nil
}

func (s *staticSession) Navigate(ctx context.Context, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "invalid feed URL", err)
	}

	var body []byte
	if u.Scheme == "file" {
		body, err = os.ReadFile(u.Path)
	} else {
		body, err = s.fetcher.fetch(ctx, target, "")
	}
	if err != nil {
		return categorizeError(err, "fetching feed document failed")
	}

	if needsBrowser(body) {
		slog.Warn("document looks client-rendered, a browser driver may see more entries",
			"url", target,
			"title", extractTitle(body),
		)
	}
	return s.load(body)
}

// ExecuteScript is a no-op: a snapshot cannot scroll or run code.
func (s *staticSession) ExecuteScript(_ context.Context, _ string) error {
	_, err := s.document()
	return err
}

func (s *staticSession) WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) error {
	return PollUntil(ctx, cond, timeout, pollInterval)
}

func (s *staticSession) FindAll(_ context.Context, selector string) ([]Element, error) {
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	var out []Element
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, staticElement{sel: sel})
	})
	return out, nil
}

func (s *staticSession) FindWithin(_ context.Context, el Element, selector string) (Element, error) {
	e, err := s.element(el)
	if err != nil {
		return nil, err
	}
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return staticElement{sel: found}, nil
}

func (s *staticSession) Text(_ context.Context, el Element) (string, error) {
	e, err := s.element(el)
	if err != nil {
		return "", err
	}
	return e.sel.Text(), nil
}

func (s *staticSession) Attribute(_ context.Context, el Element, name string) (string, error) {
	e, err := s.element(el)
	if err != nil {
		return "", err
	}
	v, ok := e.sel.Attr(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoAttribute, name)
	}
	return v, nil
}

func (s *staticSession) Click(_ context.Context, _ Element) error {
	return ErrNotSupported
}

func (s *staticSession) Sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}

func (s *staticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.doc = nil
	return nil
}

func (s *staticSession) element(el Element) (staticElement, error) {
	if _, err := s.document(); err != nil {
		return staticElement{}, err
	}
	e, ok := el.(staticElement)
	if !ok || e.sel == nil {
		return staticElement{}, ErrNotFound
	}
	return e, nil
}
