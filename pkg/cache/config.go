package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/c360/marketsearch/errors"
)

// Strategy defines the eviction strategy for the cache.
type Strategy string

const (
	// StrategySimple uses no eviction policy.
	StrategySimple Strategy = "simple"

	// StrategyLRU uses least-recently-used eviction bounded by size.
	StrategyLRU Strategy = "lru"

	// StrategyTTL uses time-to-live eviction based on expiry.
	StrategyTTL Strategy = "ttl"

	// StrategyHybrid uses combined LRU and TTL eviction.
	StrategyHybrid Strategy = "hybrid"
)

// Config contains configuration for cache creation.
type Config struct {
	// Enabled determines if caching is enabled. A disabled cache
	// behaves as an always-miss noop.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Strategy determines the eviction strategy.
	Strategy Strategy `yaml:"strategy" json:"strategy"`

	// MaxSize is the maximum number of entries (LRU and Hybrid).
	MaxSize int `yaml:"max_size" json:"max_size"`

	// TTL is the time-to-live for entries (TTL and Hybrid).
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// CleanupInterval is how often the background sweep runs
	// (TTL and Hybrid).
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Strategy:        StrategyHybrid,
		MaxSize:         1000,
		TTL:             5 * time.Minute,
		CleanupInterval: 1 * time.Minute,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	invalid := func(msg string) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate", msg)
	}

	switch c.Strategy {
	case StrategySimple:
	case StrategyLRU:
		if c.MaxSize <= 0 {
			return invalid(fmt.Sprintf("max_size must be positive for LRU cache, got %d", c.MaxSize))
		}
	case StrategyTTL:
		if c.TTL <= 0 {
			return invalid(fmt.Sprintf("ttl must be positive for TTL cache, got %v", c.TTL))
		}
		if c.CleanupInterval <= 0 {
			return invalid(fmt.Sprintf("cleanup_interval must be positive for TTL cache, got %v", c.CleanupInterval))
		}
	case StrategyHybrid:
		if c.MaxSize <= 0 {
			return invalid(fmt.Sprintf("max_size must be positive for hybrid cache, got %d", c.MaxSize))
		}
		if c.TTL <= 0 {
			return invalid(fmt.Sprintf("ttl must be positive for hybrid cache, got %v", c.TTL))
		}
		if c.CleanupInterval <= 0 {
			return invalid(fmt.Sprintf("cleanup_interval must be positive for hybrid cache, got %v", c.CleanupInterval))
		}
	default:
		return invalid(fmt.Sprintf("unknown cache strategy: %s", c.Strategy))
	}

	return nil
}

// NewFromConfig creates a cache based on the provided configuration.
// Returns a noop cache if config.Enabled is false. The context bounds
// the lifetime of background cleanup goroutines.
func NewFromConfig[V any](ctx context.Context, config Config, options ...Option[V]) (Cache[V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if !config.Enabled {
		return NewNoop[V](), nil
	}

	switch config.Strategy {
	case StrategySimple:
		return NewSimple[V](options...)
	case StrategyLRU:
		return NewLRU[V](config.MaxSize, options...)
	case StrategyTTL:
		return NewTTL[V](ctx, config.TTL, config.CleanupInterval, options...)
	case StrategyHybrid:
		return NewHybrid[V](ctx, config.MaxSize, config.TTL, config.CleanupInterval, options...)
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewFromConfig",
			fmt.Sprintf("unsupported cache strategy: %s", config.Strategy))
	}
}

// NewSimple creates a new cache with no eviction policy.
func NewSimple[V any](options ...Option[V]) (Cache[V], error) {
	return newSimpleCache[V](applyOptions(options...))
}

// NewLRU creates a new LRU cache with the specified maximum size.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	return newLRUCache[V](maxSize, applyOptions(options...))
}

// NewTTL creates a new TTL cache with the specified TTL and cleanup interval.
func NewTTL[V any](ctx context.Context, ttl, cleanupInterval time.Duration, options ...Option[V]) (Cache[V], error) {
	return newTTLCache[V](ctx, ttl, cleanupInterval, applyOptions(options...))
}

// NewHybrid creates a cache combining LRU and TTL eviction.
func NewHybrid[V any](
	ctx context.Context, maxSize int, ttl, cleanupInterval time.Duration, options ...Option[V],
) (Cache[V], error) {
	return newHybridCache[V](ctx, maxSize, ttl, cleanupInterval, applyOptions(options...))
}

// NewNoop creates a cache that does nothing (always misses). Useful
// when caching is disabled via configuration.
func NewNoop[V any]() Cache[V] {
	return &noopCache[V]{stats: NewStatistics()}
}

// noopCache is a cache implementation that stores nothing.
type noopCache[V any] struct {
	stats *Statistics
}

func (c *noopCache[V]) Get(_ string) (V, bool) {
	var zero V
	return zero, false
}

func (c *noopCache[V]) Set(_ string, _ V) (bool, error) { return false, nil }
func (c *noopCache[V]) Delete(_ string) (bool, error)   { return false, nil }
func (c *noopCache[V]) Clear() error                    { return nil }
func (c *noopCache[V]) Size() int                       { return 0 }
func (c *noopCache[V]) Keys() []string                  { return nil }
func (c *noopCache[V]) EvictExpired() int               { return 0 }
func (c *noopCache[V]) Stats() *Statistics              { return c.stats }
func (c *noopCache[V]) Close() error                    { return nil }
