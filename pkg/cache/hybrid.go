package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// hybridEntry represents an entry in the hybrid cache.
type hybridEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func (e *hybridEntry[V]) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// hybridCache combines LRU and TTL eviction. Items are evicted when the
// cache reaches maximum size (LRU) or when they expire (TTL), whichever
// comes first.
type hybridCache[V any] struct {
	mu      sync.RWMutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List // most recently used at front
	rec     *recorder
	evictFn EvictCallback[V]

	shutdown chan struct{}
	done     chan struct{}
}

func newHybridCache[V any](
	ctx context.Context, maxSize int, ttl, cleanupInterval time.Duration, opts *cacheOptions[V],
) (*hybridCache[V], error) {
	rec, err := newRecorder(opts, "newHybridCache")
	if err != nil {
		return nil, err
	}

	c := &hybridCache[V]{
		maxSize:  maxSize,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		rec:      rec,
		evictFn:  opts.evictCallback,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go c.cleanupLoop(ctx, cleanupInterval)

	return c, nil
}

// Get retrieves a value by key, checking expiry and refreshing LRU order.
func (c *hybridCache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		c.rec.miss()
		return zero, false
	}

	entry := element.Value.(*hybridEntry[V])
	if entry.isExpired() {
		delete(c.items, entry.key)
		c.order.Remove(element)
		size := len(c.items)
		c.mu.Unlock()

		c.rec.evictions(1)
		c.rec.miss()
		c.rec.size(size)
		if c.evictFn != nil {
			c.evictFn(entry.key, entry.value)
		}
		return zero, false
	}

	c.order.MoveToFront(element)
	c.mu.Unlock()

	c.rec.hit()
	return entry.value, true
}

// Set stores a value with the given key, stamping TTL and updating LRU
// order. The least recently used entry is evicted when the cache is full.
func (c *hybridCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	expiresAt := time.Now().Add(c.ttl)

	var evictKey string
	var evictValue V
	var evicted bool

	c.mu.Lock()
	if element, exists := c.items[key]; exists {
		entry := element.Value.(*hybridEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(element)
		c.mu.Unlock()

		c.rec.set()
		return false, nil
	}

	element := c.order.PushFront(&hybridEntry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = element

	if len(c.items) > c.maxSize {
		if tail := c.order.Back(); tail != nil {
			entry := tail.Value.(*hybridEntry[V])
			evictKey, evictValue, evicted = entry.key, entry.value, true
			delete(c.items, entry.key)
			c.order.Remove(tail)
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	c.rec.set()
	c.rec.size(size)
	if evicted {
		c.rec.evictions(1)
		if c.evictFn != nil {
			c.evictFn(evictKey, evictValue)
		}
	}
	return true, nil
}

// Delete removes an entry by key.
func (c *hybridCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return false, nil
	}

	entry := element.Value.(*hybridEntry[V])
	delete(c.items, entry.key)
	c.order.Remove(element)
	size := len(c.items)
	c.mu.Unlock()

	c.rec.delete()
	c.rec.size(size)
	if c.evictFn != nil {
		c.evictFn(entry.key, entry.value)
	}
	return true, nil
}

// Clear removes all entries from the cache.
func (c *hybridCache[V]) Clear() error {
	var evicted []hybridEntry[V]

	c.mu.Lock()
	if c.evictFn != nil {
		evicted = make([]hybridEntry[V], 0, len(c.items))
		for element := c.order.Back(); element != nil; element = element.Prev() {
			evicted = append(evicted, *element.Value.(*hybridEntry[V]))
		}
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	c.rec.size(0)
	for _, entry := range evicted {
		c.evictFn(entry.key, entry.value)
	}
	return nil
}

// Size returns the current number of entries in the cache.
func (c *hybridCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns all unexpired keys in LRU order (most recently used first).
func (c *hybridCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	now := time.Now()
	for element := c.order.Front(); element != nil; element = element.Next() {
		entry := element.Value.(*hybridEntry[V])
		if now.Before(entry.expiresAt) {
			keys = append(keys, entry.key)
		}
	}
	return keys
}

// EvictExpired removes all expired entries and returns the count.
func (c *hybridCache[V]) EvictExpired() int {
	now := time.Now()
	var expired []*hybridEntry[V]

	c.mu.Lock()
	for element := c.order.Front(); element != nil; {
		next := element.Next()
		entry := element.Value.(*hybridEntry[V])
		if now.After(entry.expiresAt) {
			expired = append(expired, entry)
			delete(c.items, entry.key)
			c.order.Remove(element)
		}
		element = next
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
func (c *hybridCache[V]) Stats() *Statistics { return c.rec.stats }

// Close shuts down the cache and stops the background cleanup goroutine.
func (c *hybridCache[V]) Close() error {
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

func (c *hybridCache[V]) cleanupLoop(ctx context.Context, interval time.Duration) {
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
