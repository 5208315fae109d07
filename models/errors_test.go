package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	inner := NewScrapeError(ErrCodePageNotReady, "not ready", nil)
	wrapped := fmtWrap(inner)

	assert.Equal(t, ErrCodePageNotReady, CodeOf(wrapped))
	assert.Same(t, inner, AsScrapeError(wrapped))
	assert.True(t, IsFatal(wrapped))
	assert.False(t, IsFatal(NewScrapeError(ErrCodeInvalidInput, "bad", nil)))
	assert.Equal(t, ErrCodeInternal, CodeOf(assert.AnError))
	assert.Nil(t, AsScrapeError(assert.AnError))
}

func fmtWrap(err error) error {
	return fmt.Errorf("outer: %w", err)
}
