package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/feedgrab/models"
)

// TestExtractFields_missingSummary verifies a missing node only blanks its
// own field.
func TestExtractFields_missingSummary(t *testing.T) {
	sess := newFakeSession(nil, 0, 0)
	el := newEntry(7, entryOpts{noSummary: true})

	f := ExtractFields(context.Background(), sess, el, models.DefaultSelectors().Fields)

	assert.Equal(t, Fields{
		Title:         "Title 7",
		Image:         "https://img.example.com/7.jpg",
		Summary:       "",
		Source:        "Example Wire",
		PublishedTime: "7h ago",
	}, f)
}

// TestExtractFields_deterministicFailure verifies that repeated extraction
// against an always-failing handle keeps yielding empty fields.
func TestExtractFields_deterministicFailure(t *testing.T) {
	sess := newFakeSession(nil, 0, 0)
	el := &fakeNode{name: "detached", panicky: true}

	for range 3 {
		f := ExtractFields(context.Background(), sess, el, models.DefaultSelectors().Fields)
		assert.Equal(t, Fields{}, f)
	}
}

func TestExtractFields_emptySelector(t *testing.T) {
	sess := newFakeSession(nil, 0, 0)
	fs := models.DefaultSelectors().Fields
	fs.Image = models.FieldSpec{}

	f := ExtractFields(context.Background(), sess, newEntry(1, entryOpts{}), fs)

	assert.Empty(t, f.Image)
	assert.Equal(t, "Title 1", f.Title)
}

func TestRecordID(t *testing.T) {
	sess := newFakeSession(nil, 0, 0)
	attrs := []string{"data-id", "id"}

	assert.Equal(t, "abc", RecordID(context.Background(), sess, newEntry(1, entryOpts{id: "abc"}), attrs, 1))
	assert.Equal(t, "item-4", RecordID(context.Background(), sess, newEntry(4, entryOpts{}), attrs, 4))
	assert.Equal(t, "item-2", RecordID(context.Background(), sess, newEntry(2, entryOpts{id: "x"}), nil, 2))
}
