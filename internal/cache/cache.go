// Package cache provides a process-wide in-memory key/value store with
// per-entry expiry. Entries are evicted lazily when read past their expiry;
// there is no background reaper, so entries that expire and are never read
// again stay resident until Clear. Acceptable for the small, short-lived
// working set this service caches.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is applied when Set is called with a non-positive ttl.
const DefaultTTL = 5 * time.Minute

type entry struct {
	value  any
	expiry time.Time
}

// Cache is safe for concurrent use. The zero value is not usable; construct
// with New and inject where needed.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewWithClock constructs a cache with an injected clock for tests.
func NewWithClock(now func() time.Time) *Cache {
	c := New()
	if now != nil {
		c.now = now
	}
	return c
}

// Set stores value under key with an absolute expiry of now+ttl,
// overwriting any existing entry.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiry: c.now().Add(ttl)}
}

// Get returns the stored value, or false on a miss. Reading an expired
// entry evicts it.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiry) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Delete removes a single entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear empties the store.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Size reports the number of entries, including any not yet lazily evicted.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
