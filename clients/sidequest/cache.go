package sidequest

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is the freshness window for cached GET responses.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	resp      Response
	expiresAt time.Time
}

// responseCache holds GET responses keyed by method + URL + serialized
// headers. Losing an entry only costs an extra network call.
type responseCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration

	now func() time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *responseCache) get(key string) (Response, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Response{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return Response{}, false
	}
	return entry.resp, true
}

func (c *responseCache) put(key string, resp Response, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{resp: resp, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// invalidate drops every entry whose key contains one of the fragments.
func (c *responseCache) invalidate(fragments []string) {
	if len(fragments) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		for _, f := range fragments {
			if strings.Contains(key, f) {
				delete(c.entries, key)
				break
			}
		}
	}
}

// clear removes all entries, or only those matching pattern when non-nil.
func (c *responseCache) clear(pattern *regexp.Regexp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pattern == nil {
		c.entries = make(map[string]cacheEntry)
		return
	}
	for key := range c.entries {
		if pattern.MatchString(key) {
			delete(c.entries, key)
		}
	}
}

func (c *responseCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
