package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/use-agent/feedgrab/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.FeedResponse
	createdAt time.Time
}

// Cache is a simple in-memory cache for feed responses.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict entries older than
// ttl (one hour when ttl <= 0).
func New(maxEntries int, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: max(maxEntries, 1),
		ttl:        ttl,
	}

	go c.cleanupLoop()
	return c
}

// Key generates a cache key from a defaulted request: the resolved feed
// URL, the target count, the scroll budget, the audio settings and the
// selector set. Pause, poll interval and the timeouts are left out; they
// only change how long a run takes.
func Key(req *models.FeedRequest) string {
	feedURL, err := req.FeedURL()
	if err != nil {
		feedURL = req.URL + "#" + req.Channel
	}

	h := sha256.New()
	for _, part := range []string{
		feedURL,
		strconv.Itoa(req.Target),
		strconv.Itoa(req.MaxAttempts),
		strconv.Itoa(req.ScrollDelta),
		strconv.FormatBool(req.SkipAudio),
		strconv.Itoa(req.SettleMs),
	} {
		h.Write([]byte(part))
		h.Write([]byte("|"))
	}
	if req.Selectors != nil {
		b, _ := json.Marshal(req.Selectors)
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached response if it exists and is younger than maxAge.
// maxAge is in milliseconds. If maxAge <= 0, no cache lookup is performed.
// The returned response is a copy the caller may modify.
func (c *Cache) Get(key string, maxAgeMs int) (*models.FeedResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	resp := *e.response
	return &resp, true
}

// Set stores a copy of a successful response. Failed runs are not cached.
// If the cache is at capacity, a random entry is evicted to make room.
func (c *Cache) Set(key string, resp *models.FeedResponse) {
	if resp == nil || !resp.Success {
		return
	}
	stored := *resp

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		response:  &stored,
		createdAt: time.Now(),
	}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// cleanupLoop evicts expired entries every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.evictOlderThan(time.Now().Add(-c.ttl))
	}
}

func (c *Cache) evictOlderThan(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
