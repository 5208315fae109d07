package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/feedgrab/config"
	"github.com/use-agent/feedgrab/models"
)

// TestFlagUsage_envNames checks that every env var named in flag help is
// one config.Load reads.
func TestFlagUsage_envNames(t *testing.T) {
	t.Setenv("FEEDGRAB_CHANNEL", "sports")
	t.Setenv("FEEDGRAB_FEED_URL", "https://feed.example.com/news")
	cfg := config.Load()
	assert.Equal(t, "sports", cfg.Feed.Channel)
	assert.Equal(t, "https://feed.example.com/news", cfg.Feed.URL)

	envName := regexp.MustCompile(`FEEDGRAB_[A-Z_]+`)
	read := map[string]bool{"FEEDGRAB_CHANNEL": true, "FEEDGRAB_FEED_URL": true}
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range envName.FindAllString(f.Usage, -1) {
			assert.True(t, read[name], "flag -%s names unknown variable %s", f.Name, name)
		}
	})
	assert.Contains(t, flag.Lookup("channel").Usage, "FEEDGRAB_CHANNEL")
}

func TestWriteRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.json")
	recs := []models.Record{{Title: "A", Audio: "https://cdn.example.com/a.mp3"}}
	require.NoError(t, writeRecords(path, recs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []models.Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, recs, got)

	require.NoError(t, writeRecords(path, nil))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}
