package cache

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(ttl time.Duration, max int) (*TTLCache[string, int], *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string, int](ttl, max)
	c.now = clock.Now
	return c, clock
}

func TestNew(t *testing.T) {
	c := New[string, int](5*time.Minute, 10)
	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.ttl != 5*time.Minute || c.maxEntries != 10 {
		t.Errorf("unexpected config: ttl=%v max=%d", c.ttl, c.maxEntries)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(time.Minute, 0)

	c.Set("key1", 42)
	value, ok := c.Get("key1")
	if !ok || value != 42 {
		t.Fatalf("Get(key1) = %d, %v; want 42, true", value, ok)
	}

	if _, ok := c.Get("nonexistent"); ok {
		t.Error("Get returned ok=true for non-existent key")
	}
}

func TestPerEntryExpiry(t *testing.T) {
	c, clock := newTestCache(time.Minute, 0)

	c.Set("old", 1)
	clock.Advance(40 * time.Second)
	c.Set("new", 2)
	clock.Advance(30 * time.Second)

	if _, ok := c.Get("old"); ok {
		t.Error("old entry should have expired")
	}
	if v, ok := c.Get("new"); !ok || v != 2 {
		t.Error("new entry should still be cached")
	}

	if removed := c.Prune(); removed != 1 {
		t.Errorf("Prune() = %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d after prune, want 1", c.Len())
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c, clock := newTestCache(0, 0)
	c.Set("k", 7)
	clock.Advance(24 * time.Hour)
	if v, ok := c.Get("k"); !ok || v != 7 {
		t.Error("entry with zero TTL should not expire")
	}
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	c, clock := newTestCache(time.Hour, 2)

	c.Set("a", 1)
	clock.Advance(time.Second)
	c.Set("b", 2)
	clock.Advance(time.Second)
	c.Set("c", 3)

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry missing")
	}

	// Overwriting an existing key does not evict.
	c.Set("b", 20)
	if v, _ := c.Get("b"); v != 20 || c.Len() != 2 {
		t.Errorf("overwrite: b=%d len=%d", v, c.Len())
	}
}

func TestMaxEntriesPrefersExpired(t *testing.T) {
	c, clock := newTestCache(time.Minute, 2)

	c.Set("stale", 1)
	clock.Advance(2 * time.Minute)
	c.Set("fresh", 2)
	c.Set("newer", 3)

	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive when an expired one can be pruned")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, int](time.Minute, 50)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(n*100+j, j)
				c.Get(n*100 + j)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("Len() = %d exceeds bound", c.Len())
	}
}
