// Package cache provides generic, thread-safe cache implementations with
// pluggable eviction policies.
//
// Available strategies:
//   - Simple: no eviction (stores items until deleted)
//   - LRU: least-recently-used eviction bounded by size
//   - TTL: time-to-live eviction with background cleanup
//   - Hybrid: combined LRU and TTL eviction
//
// All implementations are safe for concurrent use, collect statistics
// unconditionally, and optionally export Prometheus metrics via
// functional options.
package cache

import (
	"time"

	"github.com/c360/marketsearch/errors"
)

// Cache is the generic cache interface satisfied by all implementations.
// The cache is parameterized by value type V for type safety.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found,
	// zero value and false otherwise.
	Get(key string) (V, bool)

	// Set stores a value with the given key. Returns true if a new entry
	// was created, false if an existing entry was updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries in the cache.
	Size() int

	// Keys returns a slice of all live keys currently in the cache.
	Keys() []string

	// EvictExpired removes entries past their TTL and returns the number
	// evicted. Implementations without expiry semantics return 0.
	EvictExpired() int

	// Stats returns the cache statistics tracker.
	Stats() *Statistics

	// Close shuts down the cache and releases any resources, such as
	// background cleanup goroutines.
	Close() error
}

// EvictCallback is called when an entry is evicted from the cache.
// Callbacks always fire outside the cache lock.
type EvictCallback[V any] func(key string, value V)

// Entry represents a cache entry with metadata, exposed for callers
// that persist or inspect entries.
type Entry[V any] struct {
	Key        string
	Value      V
	CreatedAt  time.Time
	ExpiresAt  *time.Time // nil means no expiration
	AccessedAt time.Time
	HitCount   int64
}

// IsExpired checks if the entry has expired at the current time.
func (e *Entry[V]) IsExpired() bool {
	if e.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*e.ExpiresAt)
}

// recorder bundles statistics and optional Prometheus metrics so
// implementations record each event exactly once.
type recorder struct {
	stats   *Statistics
	metrics *cacheMetrics
}

func (r *recorder) hit() {
	r.stats.Hit()
	if r.metrics != nil {
		r.metrics.hits.Inc()
	}
}

func (r *recorder) miss() {
	r.stats.Miss()
	if r.metrics != nil {
		r.metrics.misses.Inc()
	}
}

func (r *recorder) set() {
	r.stats.Set()
	if r.metrics != nil {
		r.metrics.sets.Inc()
	}
}

func (r *recorder) delete() {
	r.stats.Delete()
	if r.metrics != nil {
		r.metrics.deletes.Inc()
	}
}

func (r *recorder) evictions(n int) {
	for i := 0; i < n; i++ {
		r.stats.Eviction()
	}
	if r.metrics != nil {
		r.metrics.evictions.Add(float64(n))
	}
}

func (r *recorder) size(n int) {
	r.stats.UpdateSize(int64(n))
	if r.metrics != nil {
		r.metrics.size.Set(float64(n))
	}
}

// newRecorder builds the recorder for a cache, registering Prometheus
// metrics when the options request them.
func newRecorder[V any](opts *cacheOptions[V], constructor string) (*recorder, error) {
	rec := &recorder{stats: NewStatistics()}

	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		metrics, err := newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", constructor, "metrics registration")
		}
		rec.metrics = metrics
	}

	return rec, nil
}

// validateKey rejects keys the cache cannot store.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
