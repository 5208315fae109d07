package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/feedgrab/config"
	"github.com/use-agent/feedgrab/models"
)

// countingOpener hands out static sessions and counts closes.
type countingOpener struct {
	closes int
}

func (o *countingOpener) Name() string { return "counting" }

func (o *countingOpener) Open(context.Context, SessionOptions) (Session, error) {
	return NewStaticSession([]byte(snapshot))
}

func (o *countingOpener) Close() error {
	o.closes++
	return nil
}

// TestScraper_slots verifies sessions hold a slot until closed, and that a
// double close releases only once.
func TestScraper_slots(t *testing.T) {
	sc := Wrap(&countingOpener{}, 1)

	sess, err := sc.Open(context.Background(), SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStats{MaxSessions: 1, ActiveSessions: 1}, sc.Stats())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sc.Open(ctx, SessionOptions{})
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Zero(t, sc.Stats().ActiveSessions)

	again, err := sc.Open(context.Background(), SessionOptions{})
	require.NoError(t, err)
	require.NoError(t, again.Close())
	assert.Zero(t, sc.Stats().ActiveSessions)
}

func TestScraper_close(t *testing.T) {
	opener := &countingOpener{}
	sc := Wrap(opener, 0)

	assert.Equal(t, "counting", sc.Name())
	assert.Equal(t, 1, sc.Stats().MaxSessions)
	require.NoError(t, sc.Close())
	assert.Equal(t, 1, opener.closes)
}

func TestNewScraper_drivers(t *testing.T) {
	sc, err := NewScraper(config.BrowserConfig{Driver: "static", MaxSessions: 2}, config.ScraperConfig{})
	require.NoError(t, err)
	assert.Equal(t, "static", sc.Name())

	_, err = NewScraper(config.BrowserConfig{Driver: "lynx"}, config.ScraperConfig{})
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}

func TestCategorizeError(t *testing.T) {
	assert.Equal(t, models.ErrCodeTimeout, categorizeError(context.DeadlineExceeded, "x").Code)
	assert.Equal(t, models.ErrCodeTimeout, categorizeError(context.Canceled, "x").Code)
	assert.Equal(t, models.ErrCodeNavigation, categorizeError(assert.AnError, "x").Code)
}

func TestIsAdDomain(t *testing.T) {
	assert.True(t, isAdDomain("pagead2.googlesyndication.com"))
	assert.True(t, isAdDomain("DoubleClick.net"))
	assert.False(t, isAdDomain("www.genspark.ai"))
}
