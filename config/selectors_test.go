package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/feedgrab/models"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSelectors_defaults(t *testing.T) {
	sel, err := LoadSelectors("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSelectors(), *sel)

	sel, err = LoadSelectors(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSelectors(), *sel)
}

// TestLoadSelectors_overlay verifies keys in the file replace defaults and
// absent keys keep them.
func TestLoadSelectors_overlay(t *testing.T) {
	path := writeFile(t, `
wrapper: "article.card"
fields:
  title: {selector: "h3"}
  image: {selector: "figure img", attr: "data-src"}
media:
  attr: "data-audio"
`)

	sel, err := LoadSelectors(path)
	require.NoError(t, err)

	assert.Equal(t, "article.card", sel.Wrapper)
	assert.Equal(t, models.FieldSpec{Selector: "h3"}, sel.Fields.Title)
	assert.Equal(t, models.FieldSpec{Selector: "figure img", Attr: "data-src"}, sel.Fields.Image)
	assert.Equal(t, models.FieldSpec{Selector: ".summary"}, sel.Fields.Summary)
	assert.Equal(t, "data-audio", sel.Media.Attr)
	assert.Equal(t, ".podcast-player .play-pause-btn", sel.Media.Control)
}

func TestLoadSelectors_invalid(t *testing.T) {
	_, err := LoadSelectors(writeFile(t, "wrapper: [unterminated"))
	assert.ErrorContains(t, err, "parse selectors file")

	_, err = LoadSelectors(writeFile(t, `wrapper: "div[["`))
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}

func TestValidateSelectors(t *testing.T) {
	sel := models.DefaultSelectors()
	require.NoError(t, ValidateSelectors(&sel))

	sel.Fields.Summary.Selector = ""
	err := ValidateSelectors(&sel)
	assert.ErrorContains(t, err, "fields.summary")

	assert.Error(t, ValidateSelectors(nil))

	// Optional selectors may be empty.
	sel = models.DefaultSelectors()
	sel.FallbackWrapper = ""
	sel.Media = models.MediaSpec{}
	assert.NoError(t, ValidateSelectors(&sel))
}
