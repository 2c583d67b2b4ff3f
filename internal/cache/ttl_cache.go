// Package cache provides thread-safe caching utilities with time-based expiration.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache is a thread-safe cache with per-entry expiration and an optional
// size bound. When full, Set evicts the oldest entry.
type TTLCache[K comparable, V any] struct {
	mu         sync.RWMutex
	data       map[K]entry[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New creates a new TTLCache. maxEntries <= 0 means unbounded.
func New[K comparable, V any](ttl time.Duration, maxEntries int) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data:       make(map[K]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get retrieves a value from the cache.
// Returns zero value and ok=false if the key doesn't exist or has expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || c.expiredLocked(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value and stamps it with the current time.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.pruneLocked()
		if len(c.data) >= c.maxEntries {
			c.evictOldestLocked()
		}
	}
	c.data[key] = entry[V]{value: value, storedAt: c.now()}
}

// Prune drops every expired entry and returns how many were removed.
func (c *TTLCache[K, V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked()
}

// Len returns the number of items currently in the cache.
// This does not check expiration.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// expiredLocked MUST be called with at least a read lock held.
func (c *TTLCache[K, V]) expiredLocked(e entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl
}

func (c *TTLCache[K, V]) pruneLocked() int {
	removed := 0
	for k, e := range c.data {
		if c.expiredLocked(e) {
			delete(c.data, k)
			removed++
		}
	}
	return removed
}

func (c *TTLCache[K, V]) evictOldestLocked() {
	var (
		oldestKey K
		oldest    time.Time
		found     bool
	)
	for k, e := range c.data {
		if !found || e.storedAt.Before(oldest) {
			oldestKey, oldest, found = k, e.storedAt, true
		}
	}
	if found {
		delete(c.data, oldestKey)
	}
}
