// Package cache provides a bounded, time-expiring in-memory cache for
// formatted extraction results, keyed by content fingerprint plus tone.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long an entry may be served after it was written.
	DefaultTTL = 5 * time.Minute

	// DefaultCapacity bounds the cache; on overflow only the most recently
	// written entries are retained.
	DefaultCapacity = 50

	// fingerprintSample is how many leading content bytes feed the key hash.
	fingerprintSample = 4096
)

// Value is a cached formatted result. Entries are replace-only and never
// partially updated. Confidence and Method carry the originating request's
// outcome so hits report it unchanged.
type Value struct {
	Text       string
	Title      string
	Confidence float64
	Method     string
}

type entry struct {
	value   Value
	written time.Time
}

// Stats reports cache behaviour for diagnostics.
type Stats struct {
	Entries  int   `json:"entries"`
	Capacity int   `json:"capacity"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]entry
	ttl      time.Duration
	capacity int
	hits     int64
	misses   int64
}

// New creates a cache. Zero ttl or capacity select the defaults.
func New(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[string]entry),
		ttl:      ttl,
		capacity: capacity,
	}
}

// Key derives the cache key from a sample of every page's content and the
// requested tone. All pages feed the hash so documents that merely share a
// leading page never collide.
func Key(contents [][]byte, tone string) string {
	h := sha256.New()
	for _, content := range contents {
		sample := content
		if len(sample) > fingerprintSample {
			sample = sample[:fingerprintSample]
		}
		h.Write(sample)
		h.Write([]byte{0})
	}
	h.Write([]byte(tone))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached value for key. Entries older than the TTL are never
// returned.
func (c *Cache) Get(key string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.written) > c.ttl {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return Value{}, false
	}

	c.hits++
	return e.value, true
}

// Set stores value under key, evicting the oldest-written entries when the
// capacity is exceeded.
func (c *Cache) Set(key string, value Value) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, written: time.Now()}

	for len(c.entries) > c.capacity {
		oldestKey := ""
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.written.Before(oldest) {
				oldestKey = k
				oldest = e.written
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:  len(c.entries),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}
