package search

import (
	"context"
	"strings"
	"sync"

	"github.com/c360/marketsearch/content"
	"github.com/c360/marketsearch/errors"
	"github.com/c360/marketsearch/pkg/cache"
)

// wildcard indexes cache entries for queries with no symbol filter.
// Any symbol invalidation also clears wildcard entries, since an
// unfiltered query may reference content for any symbol.
const wildcard = "*"

// ResultCache caches scored result sets keyed by canonical query key
// and maintains a symbol index so ingestion can invalidate affected
// entries without scanning the whole cache.
type ResultCache struct {
	cache cache.Cache[[]Result]

	mu       sync.Mutex
	bySymbol map[string]map[string]struct{} // symbol -> set of keys
	byKey    map[string][]string            // key -> indexed symbols
}

// NewResultCache creates a result cache from configuration. The
// context bounds background cleanup of the underlying cache.
func NewResultCache(ctx context.Context, cfg cache.Config, options ...cache.Option[[]Result]) (*ResultCache, error) {
	rc := &ResultCache{
		bySymbol: make(map[string]map[string]struct{}),
		byKey:    make(map[string][]string),
	}

	// Entries evicted by TTL or LRU must leave the symbol index too.
	options = append(options, cache.WithEvictionCallback[[]Result](func(key string, _ []Result) {
		rc.unindex(key)
	}))

	inner, err := cache.NewFromConfig[[]Result](ctx, cfg, options...)
	if err != nil {
		return nil, errors.Wrap(err, "search", "NewResultCache", "cache construction")
	}
	rc.cache = inner
	return rc, nil
}

// Get returns the cached results for a key. The returned slice is a
// copy; callers may mutate it freely.
func (rc *ResultCache) Get(key string) ([]Result, bool) {
	results, found := rc.cache.Get(key)
	if !found {
		return nil, false
	}
	return cloneResults(results), true
}

// Put caches results for a key, indexing it under the query's symbols
// (or the wildcard for unfiltered queries).
func (rc *ResultCache) Put(key string, symbols []string, results []Result) error {
	if _, err := rc.cache.Set(key, cloneResults(results)); err != nil {
		return err
	}

	indexed := make([]string, 0, len(symbols)+1)
	if len(symbols) == 0 {
		indexed = append(indexed, wildcard)
	}
	for _, sym := range symbols {
		indexed = append(indexed, strings.ToUpper(sym))
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.byKey[key] = indexed
	for _, sym := range indexed {
		set, ok := rc.bySymbol[sym]
		if !ok {
			set = make(map[string]struct{})
			rc.bySymbol[sym] = set
		}
		set[key] = struct{}{}
	}
	return nil
}

// InvalidateSymbol drops all cached entries whose queries reference
// the symbol, plus all unfiltered (wildcard) entries. Returns the
// number of entries dropped.
func (rc *ResultCache) InvalidateSymbol(symbol string) int {
	symbol = strings.ToUpper(symbol)

	rc.mu.Lock()
	keys := make([]string, 0, len(rc.bySymbol[symbol])+len(rc.bySymbol[wildcard]))
	for key := range rc.bySymbol[symbol] {
		keys = append(keys, key)
	}
	for key := range rc.bySymbol[wildcard] {
		keys = append(keys, key)
	}
	rc.mu.Unlock()

	dropped := 0
	for _, key := range keys {
		if deleted, _ := rc.cache.Delete(key); deleted {
			dropped++
		}
		rc.unindex(key)
	}
	return dropped
}

// InvalidateWildcard drops all unfiltered (wildcard) entries, leaving
// symbol-filtered entries in place. Returns the number dropped.
func (rc *ResultCache) InvalidateWildcard() int {
	rc.mu.Lock()
	keys := make([]string, 0, len(rc.bySymbol[wildcard]))
	for key := range rc.bySymbol[wildcard] {
		keys = append(keys, key)
	}
	rc.mu.Unlock()

	dropped := 0
	for _, key := range keys {
		if deleted, _ := rc.cache.Delete(key); deleted {
			dropped++
		}
		rc.unindex(key)
	}
	return dropped
}

// InvalidateAll drops every cached entry.
func (rc *ResultCache) InvalidateAll() error {
	if err := rc.cache.Clear(); err != nil {
		return err
	}
	rc.mu.Lock()
	rc.bySymbol = make(map[string]map[string]struct{})
	rc.byKey = make(map[string][]string)
	rc.mu.Unlock()
	return nil
}

// EvictExpired sweeps expired entries, returning the count.
func (rc *ResultCache) EvictExpired() int { return rc.cache.EvictExpired() }

// Stats returns cache statistics.
func (rc *ResultCache) Stats() *cache.Statistics { return rc.cache.Stats() }

// Size returns the number of cached result sets.
func (rc *ResultCache) Size() int { return rc.cache.Size() }

// Close shuts down the underlying cache.
func (rc *ResultCache) Close() error { return rc.cache.Close() }

func (rc *ResultCache) unindex(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	for _, sym := range rc.byKey[key] {
		if set, ok := rc.bySymbol[sym]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(rc.bySymbol, sym)
			}
		}
	}
	delete(rc.byKey, key)
}

func cloneResults(results []Result) []Result {
	out := make([]Result, len(results))
	copy(out, results)
	for i := range out {
		if out[i].Metadata == nil {
			continue
		}
		meta := make(content.Metadata, len(out[i].Metadata))
		for k, v := range out[i].Metadata {
			meta[k] = v
		}
		out[i].Metadata = meta
	}
	return out
}
