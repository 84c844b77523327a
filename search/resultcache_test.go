package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/marketsearch/content"
	"github.com/c360/marketsearch/pkg/cache"
)

func newTestResultCache(t *testing.T) *ResultCache {
	t.Helper()
	rc, err := NewResultCache(context.Background(), cache.Config{
		Enabled:         true,
		Strategy:        cache.StrategyHybrid,
		MaxSize:         100,
		TTL:             time.Minute,
		CleanupInterval: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc
}

func sampleResults() []Result {
	return []Result{
		{ContentID: "1", Type: content.TypeNews, Symbol: "AAPL", Score: 0.9, Snippet: "a"},
		{ContentID: "2", Type: content.TypeNews, Symbol: "AAPL", Score: 0.8, Snippet: "b"},
	}
}

func TestResultCachePutGet(t *testing.T) {
	rc := newTestResultCache(t)

	require.NoError(t, rc.Put("search:abc", []string{"AAPL"}, sampleResults()))

	got, found := rc.Get("search:abc")
	require.True(t, found)
	assert.Len(t, got, 2)

	_, found = rc.Get("search:missing")
	assert.False(t, found)
}

func TestResultCacheInvalidateSymbol(t *testing.T) {
	rc := newTestResultCache(t)

	require.NoError(t, rc.Put("search:aapl", []string{"AAPL"}, sampleResults()))
	require.NoError(t, rc.Put("search:tsla", []string{"TSLA"}, sampleResults()))
	require.NoError(t, rc.Put("search:both", []string{"AAPL", "TSLA"}, sampleResults()))

	dropped := rc.InvalidateSymbol("aapl")
	assert.Equal(t, 2, dropped)

	_, found := rc.Get("search:aapl")
	assert.False(t, found)
	_, found = rc.Get("search:both")
	assert.False(t, found)
	_, found = rc.Get("search:tsla")
	assert.True(t, found)
}

func TestResultCacheWildcardInvalidation(t *testing.T) {
	rc := newTestResultCache(t)

	// An unfiltered query may surface content for any symbol, so any
	// symbol invalidation must drop it.
	require.NoError(t, rc.Put("search:all", nil, sampleResults()))

	dropped := rc.InvalidateSymbol("MSFT")
	assert.Equal(t, 1, dropped)
	_, found := rc.Get("search:all")
	assert.False(t, found)
}

func TestResultCacheInvalidateWildcard(t *testing.T) {
	rc := newTestResultCache(t)

	require.NoError(t, rc.Put("search:all", nil, sampleResults()))
	require.NoError(t, rc.Put("search:aapl", []string{"AAPL"}, sampleResults()))

	dropped := rc.InvalidateWildcard()
	assert.Equal(t, 1, dropped)

	_, found := rc.Get("search:all")
	assert.False(t, found)
	_, found = rc.Get("search:aapl")
	assert.True(t, found, "symbol-filtered entries survive wildcard invalidation")
}

func TestResultCacheInvalidateAll(t *testing.T) {
	rc := newTestResultCache(t)

	require.NoError(t, rc.Put("search:a", []string{"AAPL"}, sampleResults()))
	require.NoError(t, rc.Put("search:b", nil, sampleResults()))

	require.NoError(t, rc.InvalidateAll())
	assert.Equal(t, 0, rc.Size())

	// Index is empty too; invalidation after clear drops nothing.
	assert.Equal(t, 0, rc.InvalidateSymbol("AAPL"))
}

func TestResultCacheReturnsCopies(t *testing.T) {
	rc := newTestResultCache(t)

	original := []Result{{
		ContentID: "1",
		Metadata:  content.Metadata{"source": content.String("reuters")},
	}}
	require.NoError(t, rc.Put("search:key", nil, original))

	got, found := rc.Get("search:key")
	require.True(t, found)
	got[0].Metadata["source"] = content.String("mutated")
	got[0].ContentID = "changed"

	fresh, found := rc.Get("search:key")
	require.True(t, found)
	assert.Equal(t, "1", fresh[0].ContentID)
	assert.Equal(t, "reuters", fresh[0].Metadata["source"].StringValue())
}

func TestResultCacheTTLExpiryCleansIndex(t *testing.T) {
	rc, err := NewResultCache(context.Background(), cache.Config{
		Enabled:         true,
		Strategy:        cache.StrategyTTL,
		TTL:             20 * time.Millisecond,
		CleanupInterval: time.Hour,
	})
	require.NoError(t, err)
	defer rc.Close()

	require.NoError(t, rc.Put("search:exp", []string{"AAPL"}, sampleResults()))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, rc.EvictExpired())

	// The evicted entry left the symbol index through the callback.
	rc.mu.Lock()
	assert.Empty(t, rc.byKey)
	assert.Empty(t, rc.bySymbol)
	rc.mu.Unlock()
}
