package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/use-agent/feedgrab/scraper"
)

// fakeNode is a DOM node of the in-memory test page. Children are keyed by
// the exact selector the production code queries with.
type fakeNode struct {
	name     string
	text     string
	attrs    map[string]string
	children map[string]*fakeNode
	onClick  func()
	clickErr error
	panicky  bool
}

func (n *fakeNode) String() string { return n.name }

// fakeSession is a scripted scraper.Session. Wrappers matching wrapper are
// revealed perScroll at a time by each ExecuteScript call.
type fakeSession struct {
	mu sync.Mutex

	wrapper   string
	feed      []*fakeNode
	visible   int
	perScroll int
	other     map[string][]*fakeNode

	onAttribute func(n *fakeNode, name string)

	navErr      error
	findErr     error
	scriptErr   error
	readyNever  bool
	navigations []string
	scripts     []string
	clicks      int
	sleeps      []time.Duration
	closes      int
}

var _ scraper.Session = (*fakeSession)(nil)

func newFakeSession(feed []*fakeNode, initial, perScroll int) *fakeSession {
	return &fakeSession{
		wrapper:   ".flow_item_wrapper",
		feed:      feed,
		visible:   min(initial, len(feed)),
		perScroll: perScroll,
		other:     map[string][]*fakeNode{},
	}
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations = append(s.navigations, url)
	return s.navErr
}

func (s *fakeSession) ExecuteScript(_ context.Context, js string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, js)
	if s.scriptErr != nil {
		return s.scriptErr
	}
	s.visible = min(len(s.feed), s.visible+s.perScroll)
	return nil
}

func (s *fakeSession) WaitUntil(ctx context.Context, cond scraper.Condition, timeout time.Duration) error {
	return scraper.PollUntil(ctx, cond, timeout, 5*time.Millisecond)
}

func (s *fakeSession) FindAll(_ context.Context, selector string) ([]scraper.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	var nodes []*fakeNode
	if selector == s.wrapper {
		if s.readyNever {
			return nil, nil
		}
		nodes = s.feed[:s.visible]
	} else {
		nodes = s.other[selector]
	}
	out := make([]scraper.Element, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (s *fakeSession) FindWithin(_ context.Context, el scraper.Element, selector string) (scraper.Element, error) {
	n := el.(*fakeNode)
	if n.panicky {
		panic("detached node")
	}
	child, ok := n.children[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", scraper.ErrNotFound, selector)
	}
	return child, nil
}

func (s *fakeSession) Text(_ context.Context, el scraper.Element) (string, error) {
	return el.(*fakeNode).text, nil
}

func (s *fakeSession) Attribute(_ context.Context, el scraper.Element, name string) (string, error) {
	if s.onAttribute != nil {
		s.onAttribute(el.(*fakeNode), name)
	}
	attrMu.Lock()
	defer attrMu.Unlock()
	v, ok := el.(*fakeNode).attrs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", scraper.ErrNoAttribute, name)
	}
	return v, nil
}

func (s *fakeSession) Click(_ context.Context, el scraper.Element) error {
	n := el.(*fakeNode)
	s.mu.Lock()
	s.clicks++
	s.mu.Unlock()
	if n.clickErr != nil {
		return n.clickErr
	}
	if n.onClick != nil {
		n.onClick()
	}
	return nil
}

func (s *fakeSession) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// fakeOpener hands out a single prepared session.
type fakeOpener struct {
	sess    *fakeSession
	openErr error
	opened  int
}

func (o *fakeOpener) Open(_ context.Context, _ scraper.SessionOptions) (scraper.Session, error) {
	o.opened++
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.sess, nil
}

// entryOpts tweak a generated feed entry.
type entryOpts struct {
	noTitle    bool
	noImage    bool
	noSummary  bool
	withAudio  bool
	audioDelay bool
	id         string
}

// newEntry builds a wrapper node with all five fields for entry i.
func newEntry(i int, o entryOpts) *fakeNode {
	n := &fakeNode{
		name:     fmt.Sprintf("div.flow_item_wrapper[%d]", i),
		attrs:    map[string]string{},
		children: map[string]*fakeNode{},
	}
	if o.id != "" {
		n.attrs["data-id"] = o.id
	}
	if !o.noTitle {
		n.children[".title"] = &fakeNode{name: "title", text: fmt.Sprintf("Title %d", i)}
	}
	if !o.noImage {
		n.children[".image img"] = &fakeNode{name: "img", attrs: map[string]string{
			"src": fmt.Sprintf("https://img.example.com/%d.jpg", i),
		}}
	}
	if !o.noSummary {
		n.children[".summary"] = &fakeNode{name: "summary", text: fmt.Sprintf("Summary %d", i)}
	}
	n.children[".source-name"] = &fakeNode{name: "source", text: "Example Wire"}
	n.children[".published-time"] = &fakeNode{name: "time", text: fmt.Sprintf("%dh ago", i)}

	if o.withAudio {
		audio := &fakeNode{name: "audio", attrs: map[string]string{}}
		src := fmt.Sprintf("https://cdn.example.com/%d.mp3", i)
		control := &fakeNode{name: "play"}
		control.onClick = func() {
			if o.audioDelay {
				go func() {
					time.Sleep(20 * time.Millisecond)
					setAttr(audio, "src", src)
				}()
				return
			}
			setAttr(audio, "src", src)
		}
		n.children[".podcast-player .play-pause-btn"] = control
		n.children[".podcast-player audio"] = audio
	}
	return n
}

var attrMu sync.Mutex

func setAttr(n *fakeNode, k, v string) {
	attrMu.Lock()
	defer attrMu.Unlock()
	n.attrs[k] = v
}

func newFeed(n int, o entryOpts) []*fakeNode {
	out := make([]*fakeNode, n)
	for i := range out {
		out[i] = newEntry(i+1, o)
	}
	return out
}

var errBoom = errors.New("boom")
