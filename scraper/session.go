package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by FindWithin when nothing matches.
	ErrNotFound = errors.New("element not found")

	// ErrNoAttribute is returned by Attribute when the attribute is absent.
	ErrNoAttribute = errors.New("attribute not present")

	// ErrWaitTimeout is returned by WaitUntil when the condition did not
	// hold before the timeout.
	ErrWaitTimeout = errors.New("wait timed out")

	// ErrNotSupported is returned by drivers that cannot perform an
	// operation (e.g. clicking on a static snapshot).
	ErrNotSupported = errors.New("operation not supported by driver")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session closed")
)

// Element is an opaque handle to a DOM node. It is only meaningful to the
// Session that returned it.
type Element interface {
	String() string
}

// Condition is polled by WaitUntil. Errors count as "not yet".
type Condition func(ctx context.Context) (bool, error)

// Session is the capability set the feed collector needs from a browser.
// A Session is owned by exactly one run and is not safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string) error
	ExecuteScript(ctx context.Context, js string) error
	WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) error
	FindAll(ctx context.Context, selector string) ([]Element, error)
	FindWithin(ctx context.Context, el Element, selector string) (Element, error)
	Text(ctx context.Context, el Element) (string, error)
	Attribute(ctx context.Context, el Element, name string) (string, error)
	Click(ctx context.Context, el Element) error
	Sleep(ctx context.Context, d time.Duration) error
	Close() error
}

// SessionOptions tune a single session.
type SessionOptions struct {
	Stealth bool
}

// Opener hands out sessions. Implementations own the browser process.
type Opener interface {
	Name() string
	Open(ctx context.Context, opts SessionOptions) (Session, error)
	Close() error
}

// pollInterval is how often WaitUntil re-checks its condition.
const pollInterval = 200 * time.Millisecond

// PollUntil evaluates cond immediately and then every interval until it
// holds, timeout elapses (ErrWaitTimeout) or ctx is done (ctx.Err()).
func PollUntil(ctx context.Context, cond Condition, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = pollInterval
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(waitCtx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lastErr != nil {
				return fmt.Errorf("%w after %s: %v", ErrWaitTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
