package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/marketsearch/content"
	"github.com/c360/marketsearch/errors"
	"github.com/c360/marketsearch/pkg/cache"
)

// cachedVector is an embedding cache entry. The normalized text length
// is kept alongside the vector as a cheap collision check: two texts
// that hash to the same fingerprint but differ in length expose a
// corrupted cache rather than silently serving the wrong vector.
type cachedVector struct {
	Vector  []float32 `json:"vector"`
	TextLen int       `json:"text_len"`
}

// Cache maps content fingerprints to embedding vectors. The in-process
// tier (pkg/cache) is authoritative; an optional KV tier survives
// restarts and is consulted on local misses.
type Cache struct {
	model  string
	local  cache.Cache[cachedVector]
	kv     *KVStore
	logger *slog.Logger
}

// CacheOption configures optional Cache behavior.
type CacheOption func(*Cache)

// WithKVStore attaches a persistence tier consulted on local misses
// and written through on Put.
func WithKVStore(kv *KVStore) CacheOption {
	return func(c *Cache) { c.kv = kv }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

// NewCache creates an embedding cache namespaced by model identifier.
// The context bounds background cleanup in the underlying cache.
func NewCache(ctx context.Context, model string, cfg cache.Config, opts ...CacheOption) (*Cache, error) {
	local, err := cache.NewFromConfig[cachedVector](ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "embedding", "NewCache", "cache construction")
	}

	c := &Cache{
		model:  model,
		local:  local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key returns the cache key for a fingerprint:
// "embedding:{model}:{fingerprint[:16]}".
func (c *Cache) Key(fingerprint string) string {
	if len(fingerprint) > 16 {
		fingerprint = fingerprint[:16]
	}
	return fmt.Sprintf("embedding:%s:%s", c.model, fingerprint)
}

// Get returns the cached vector for a text, if present. A stored entry
// whose recorded text length disagrees with the lookup text fails with
// a fatal fingerprint collision error.
func (c *Cache) Get(ctx context.Context, text string) ([]float32, bool, error) {
	normalized := content.NormalizeText(text)
	key := c.Key(content.Fingerprint(text))

	entry, found := c.local.Get(key)
	if !found && c.kv != nil {
		kvEntry, ok, err := c.kv.Get(ctx, key)
		if err != nil {
			// The KV tier is best-effort; a local miss stands.
			c.logger.Warn("embedding kv get failed", "key", key, "error", err)
			return nil, false, nil
		}
		if !ok {
			return nil, false, nil
		}
		entry = kvEntry
		found = true
		if _, err := c.local.Set(key, entry); err != nil {
			c.logger.Warn("embedding cache backfill failed", "key", key, "error", err)
		}
	}
	if !found {
		return nil, false, nil
	}

	if entry.TextLen != len(normalized) {
		return nil, false, errors.WrapFatal(errors.ErrFingerprintCollision, "embedding", "Get",
			fmt.Sprintf("key %s: stored text length %d, lookup text length %d", key, entry.TextLen, len(normalized)))
	}

	vector := make([]float32, len(entry.Vector))
	copy(vector, entry.Vector)
	return vector, true, nil
}

// Put stores a vector for a text. Put is idempotent for identical
// vectors; a differing vector for the same fingerprint overwrites
// (last writer wins).
func (c *Cache) Put(ctx context.Context, text string, vector []float32) error {
	normalized := content.NormalizeText(text)
	key := c.Key(content.Fingerprint(text))

	if existing, found := c.local.Get(key); found && vectorsEqual(existing.Vector, vector) {
		return nil
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)
	entry := cachedVector{Vector: stored, TextLen: len(normalized)}

	if _, err := c.local.Set(key, entry); err != nil {
		return errors.Wrap(err, "embedding", "Put", "cache set")
	}

	if c.kv != nil {
		if err := c.kv.Put(ctx, key, entry); err != nil {
			c.logger.Warn("embedding kv put failed", "key", key, "error", err)
		}
	}
	return nil
}

// EvictExpired sweeps expired entries from the local tier.
func (c *Cache) EvictExpired() int { return c.local.EvictExpired() }

// Stats returns local tier statistics.
func (c *Cache) Stats() *cache.Statistics { return c.local.Stats() }

// Size returns the number of locally cached vectors.
func (c *Cache) Size() int { return c.local.Size() }

// Clear drops all locally cached vectors. The KV tier is untouched.
func (c *Cache) Clear() error { return c.local.Clear() }

// Close shuts down the local tier.
func (c *Cache) Close() error { return c.local.Close() }

func vectorsEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
