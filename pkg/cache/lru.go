package cache

import (
	"container/list"
	"sync"
)

// lruEntry represents an entry in the LRU cache.
type lruEntry[V any] struct {
	key   string
	value V
}

// lruCache is a thread-safe least-recently-used cache. It evicts the
// least recently used item when the maximum size is exceeded.
type lruCache[V any] struct {
	mu      sync.RWMutex
	maxSize int
	items   map[string]*list.Element // key -> list element
	order   *list.List               // most recently used at front
	rec     *recorder
	evictFn EvictCallback[V]
}

func newLRUCache[V any](maxSize int, opts *cacheOptions[V]) (*lruCache[V], error) {
	rec, err := newRecorder(opts, "newLRUCache")
	if err != nil {
		return nil, err
	}

	return &lruCache[V]{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		rec:     rec,
		evictFn: opts.evictCallback,
	}, nil
}

// Get retrieves a value by key and marks it as recently used.
func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	element, exists := c.items[key]
	if exists {
		c.order.MoveToFront(element)
	}
	c.mu.Unlock()

	if !exists {
		var zero V
		c.rec.miss()
		return zero, false
	}

	c.rec.hit()
	return element.Value.(*lruEntry[V]).value, true
}

// Set stores a value with the given key and marks it as recently used.
// The least recently used entry is evicted when the cache is full.
func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var evictKey string
	var evictValue V
	var evicted bool

	c.mu.Lock()
	if element, exists := c.items[key]; exists {
		element.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(element)
		c.mu.Unlock()

		c.rec.set()
		return false, nil
	}

	element := c.order.PushFront(&lruEntry[V]{key: key, value: value})
	c.items[key] = element

	if len(c.items) > c.maxSize {
		if tail := c.order.Back(); tail != nil {
			entry := tail.Value.(*lruEntry[V])
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
func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return false, nil
	}

	entry := element.Value.(*lruEntry[V])
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
func (c *lruCache[V]) Clear() error {
	var evicted []lruEntry[V]

	c.mu.Lock()
	if c.evictFn != nil {
		evicted = make([]lruEntry[V], 0, len(c.items))
		for element := c.order.Back(); element != nil; element = element.Prev() {
			evicted = append(evicted, *element.Value.(*lruEntry[V]))
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
func (c *lruCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns all keys in LRU order (most recently used first).
func (c *lruCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*lruEntry[V]).key)
	}
	return keys
}

// EvictExpired is a no-op for the LRU cache; it has no TTL semantics.
func (c *lruCache[V]) EvictExpired() int { return 0 }

// Stats returns cache statistics.
func (c *lruCache[V]) Stats() *Statistics { return c.rec.stats }

// Close is a no-op; the LRU cache has no background goroutines.
func (c *lruCache[V]) Close() error { return nil }
