package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ttlEntry represents an entry in the TTL cache.
type ttlEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func (e *ttlEntry[V]) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// ttlCache is a thread-safe time-to-live cache. Entries expire after a
// fixed TTL; a background goroutine sweeps them periodically, and
// EvictExpired allows callers to sweep on demand.
type ttlCache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	items   map[string]*ttlEntry[V]
	rec     *recorder
	evictFn EvictCallback[V]

	shutdown chan struct{}
	done     chan struct{}
}

func newTTLCache[V any](
	ctx context.Context, ttl, cleanupInterval time.Duration, opts *cacheOptions[V],
) (*ttlCache[V], error) {
	rec, err := newRecorder(opts, "newTTLCache")
	if err != nil {
		return nil, err
	}

	c := &ttlCache[V]{
		ttl:      ttl,
		items:    make(map[string]*ttlEntry[V]),
		rec:      rec,
		evictFn:  opts.evictCallback,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go c.cleanupLoop(ctx, cleanupInterval)

	return c, nil
}

// Get retrieves a value by key, treating expired entries as misses.
// Expired entries found on the read path are removed eagerly.
func (c *ttlCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		var zero V
		c.rec.miss()
		return zero, false
	}

	if entry.isExpired() {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if current, still := c.items[key]; still && current.isExpired() {
			delete(c.items, key)
			size := len(c.items)
			c.mu.Unlock()

			c.rec.evictions(1)
			c.rec.size(size)
			if c.evictFn != nil {
				c.evictFn(key, current.value)
			}
		} else {
			c.mu.Unlock()
		}

		var zero V
		c.rec.miss()
		return zero, false
	}

	c.rec.hit()
	return entry.value, true
}

// Set stores a value with the given key, stamping its expiry.
func (c *ttlCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	expiresAt := time.Now().Add(c.ttl)

	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = &ttlEntry[V]{key: key, value: value, expiresAt: expiresAt}
	size := len(c.items)
	c.mu.Unlock()

	c.rec.set()
	c.rec.size(size)
	return !exists, nil
}

// Delete removes an entry by key.
func (c *ttlCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	entry, exists := c.items[key]
	if exists {
		delete(c.items, key)
	}
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.rec.delete()
		c.rec.size(size)
		if c.evictFn != nil {
			c.evictFn(key, entry.value)
		}
	}
	return exists, nil
}

// Clear removes all entries from the cache.
func (c *ttlCache[V]) Clear() error {
	c.mu.Lock()
	evicted := c.items
	c.items = make(map[string]*ttlEntry[V])
	c.mu.Unlock()

	c.rec.size(0)

	if c.evictFn != nil {
		for _, entry := range evicted {
			c.evictFn(entry.key, entry.value)
		}
	}
	return nil
}

// Size returns the current number of entries, including entries that
// have expired but not yet been swept.
func (c *ttlCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns all unexpired keys.
func (c *ttlCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	now := time.Now()
	for key, entry := range c.items {
		if now.Before(entry.expiresAt) {
			keys = append(keys, key)
		}
	}
	return keys
}

// EvictExpired removes all expired entries and returns the count.
func (c *ttlCache[V]) EvictExpired() int {
	now := time.Now()
	var expired []*ttlEntry[V]

	c.mu.Lock()
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			expired = append(expired, entry)
			delete(c.items, key)
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	if len(expired) > 0 {
		c.rec.evictions(len(expired))
		c.rec.size(size)
		if c.evictFn != nil {
			for _, entry := range expired {
				c.evictFn(entry.key, entry.value)
			}
		}
	}
	return len(expired)
}

// Stats returns cache statistics.
func (c *ttlCache[V]) Stats() *Statistics { return c.rec.stats }

// Close shuts down the cache and stops the background cleanup goroutine.
func (c *ttlCache[V]) Close() error {
	select {
	case <-c.shutdown:
		// Already shutting down.
	default:
		close(c.shutdown)
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for cleanup goroutine to finish")
	}
}

// cleanupLoop periodically sweeps expired entries until the cache is
// closed or the construction context is cancelled.
func (c *ttlCache[V]) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.EvictExpired()
		}
	}
}
