package cache

import (
	"path"
	"sync"
	"time"
)

// localEntry holds a cached value with its freshness bounds.
type localEntry struct {
	value      []byte
	tags       []string
	expiresAt  time.Time // fresh until here
	staleUntil time.Time // servable-while-stale until here
}

// LocalCache is the thread-safe in-process tier. Entries are fresh until
// their TTL, stale-servable for a further window, and logically absent past
// that. The owning process is the only mutator.
type LocalCache struct {
	mu      sync.RWMutex
	entries map[string]localEntry
}

// NewLocalCache creates an empty local cache.
func NewLocalCache() *LocalCache {
	return &LocalCache{entries: make(map[string]localEntry)}
}

// Get retrieves a fresh value. Stale entries are reported as misses.
func (c *LocalCache) Get(key string) ([]byte, bool) {
	value, fresh, ok := c.GetStale(key)
	if !ok || !fresh {
		return nil, false
	}
	return value, true
}

// GetStale retrieves a value if it is fresh or still within its stale
// window. fresh reports which of the two it was. Entries past the stale
// window are removed and reported as misses.
func (c *LocalCache) GetStale(key string) (value []byte, fresh, ok bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false, false
	}

	now := time.Now()
	if now.Before(entry.expiresAt) {
		return entry.value, true, true
	}
	if now.Before(entry.staleUntil) {
		return entry.value, false, true
	}

	// Expired beyond the stale window - clean it up
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil, false, false
}

// Set stores a value. A non-positive ttl makes the entry immediately stale
// but still servable for staleWindow; both non-positive stores nothing.
func (c *LocalCache) Set(key string, value []byte, tags []string, ttl, staleWindow time.Duration) {
	if ttl <= 0 && staleWindow <= 0 {
		return
	}

	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = localEntry{
		value:      value,
		tags:       append([]string(nil), tags...),
		expiresAt:  now.Add(ttl),
		staleUntil: now.Add(ttl + staleWindow),
	}
}

// Delete removes entries by key.
func (c *LocalCache) Delete(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// DeleteByTags removes every entry carrying at least one of the tags.
// Returns the number of entries removed.
func (c *LocalCache) DeleteByTags(tags []string) int {
	wanted := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		wanted[tag] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		for _, tag := range entry.tags {
			if _, ok := wanted[tag]; ok {
				delete(c.entries, key)
				removed++
				break
			}
		}
	}
	return removed
}

// DeleteByPattern removes entries whose key matches a glob pattern.
// Returns the number of entries removed.
func (c *LocalCache) DeleteByPattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries in the cache (including stale ones).
func (c *LocalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries from the cache.
func (c *LocalCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]localEntry)
}
