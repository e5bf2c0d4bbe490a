package rest

import (
	"encoding/json"
	"sync"
	"time"
)

// cacheEntry pairs a stored response body with its expiry instant.
type cacheEntry struct {
	body    json.RawMessage
	expires time.Time
}

// responseCache is a TTL-bound store for GET response bodies, keyed by
// the normalized request URL. Expiry is fixed at construction and does
// not consult HTTP cache-control headers. Entries past their TTL are
// treated as absent and evicted on lookup.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *responseCache) get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.body, true
}

func (c *responseCache) put(key string, body json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		body:    body,
		expires: c.now().Add(c.ttl),
	}
}
