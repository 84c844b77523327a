package search

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/marketsearch/content"
	"github.com/c360/marketsearch/embedding"
	"github.com/c360/marketsearch/errors"
	"github.com/c360/marketsearch/pkg/cache"
)

// fixedEmbedder maps exact texts to predetermined vectors so tests
// control similarity scores precisely. Unknown texts embed to zero.
type fixedEmbedder struct {
	vectors map[string][]float32
	fail    error
}

func (f *fixedEmbedder) Generate(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = make([]float32, 2)
		}
	}
	return out, nil
}

func (f *fixedEmbedder) Dimensions() int { return 2 }
func (f *fixedEmbedder) Model() string   { return "fixed" }
func (f *fixedEmbedder) Close() error    { return nil }

// staticStore serves a fixed record set with symbol filtering, letting
// tests pin record timestamps.
type staticStore struct {
	records []content.Record
}

func (s *staticStore) Query(_ context.Context, filter content.Filter) ([]content.Record, error) {
	symbols := make(map[string]struct{}, len(filter.Symbols))
	for _, sym := range filter.Symbols {
		symbols[strings.ToUpper(sym)] = struct{}{}
	}
	var out []content.Record
	for _, r := range s.records {
		if len(symbols) > 0 {
			if _, ok := symbols[strings.ToUpper(r.Symbol)]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *staticStore) Get(_ context.Context, id string) (content.Record, bool, error) {
	for _, r := range s.records {
		if r.ID == id {
			return r, true, nil
		}
	}
	return content.Record{}, false, nil
}

func (s *staticStore) Upsert(_ context.Context, r content.Record) (content.Record, error) {
	return r, nil
}
func (s *staticStore) Delete(_ context.Context, _ string) error { return nil }
func (s *staticStore) GetByFingerprint(_ context.Context, _, _ string) (content.Record, bool, error) {
	return content.Record{}, false, nil
}

func newFixedEngine(t *testing.T, embedder embedding.Embedder, store content.Store, withCache bool) (*Engine, *ResultCache) {
	t.Helper()

	provider, err := embedding.NewProvider(embedder, nil, embedding.ProviderConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })

	var rc *ResultCache
	if withCache {
		rc, err = NewResultCache(context.Background(), cache.Config{
			Enabled:         true,
			Strategy:        cache.StrategyHybrid,
			MaxSize:         100,
			TTL:             time.Minute,
			CleanupInterval: time.Minute,
		})
		require.NoError(t, err)
		t.Cleanup(func() { rc.Close() })
	}

	engine, err := NewEngine(store, provider, rc)
	require.NoError(t, err)
	return engine, rc
}

func TestEngineRankingAndFiltering(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"tesla deliveries":     {1, 0},
		"tesla beats estimate": {1, 0},      // score 1.0
		"tesla expands plant":  {1, 1},      // score ~0.707
		"tesla minor note":     {0.2, 1},    // score ~0.196, below threshold
		"microsoft news":       {1, 0},      // filtered out by symbol
	}}
	store := &staticStore{records: []content.Record{
		{ID: "t1", Symbol: "TSLA", Type: content.TypeNews, Text: "tesla beats estimate", CreatedAt: now},
		{ID: "t2", Symbol: "TSLA", Type: content.TypeNews, Text: "tesla expands plant", CreatedAt: now},
		{ID: "t3", Symbol: "TSLA", Type: content.TypeNews, Text: "tesla minor note", CreatedAt: now},
		{ID: "m1", Symbol: "MSFT", Type: content.TypeNews, Text: "microsoft news", CreatedAt: now},
	}}

	engine, _ := newFixedEngine(t, embedder, store, false)

	results, err := engine.Search(ctx, Query{Text: "tesla deliveries", Symbols: []string{"tsla"}})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "t1", results[0].ContentID)
	assert.Equal(t, "t2", results[1].ContentID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Greater(t, results[0].Score, results[1].Score)
	for _, r := range results {
		assert.Equal(t, "TSLA", r.Symbol)
	}
}

func TestEngineThresholdInclusive(t *testing.T) {
	ctx := context.Background()

	// Identical vectors score exactly 1.0; threshold 1.0 must include them.
	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"query text":  {3, 4},
		"exact match": {3, 4},
		"near match":  {4, 3},
	}}
	store := &staticStore{records: []content.Record{
		{ID: "a", Symbol: "AAPL", Type: content.TypeNews, Text: "exact match", CreatedAt: time.Now()},
		{ID: "b", Symbol: "AAPL", Type: content.TypeNews, Text: "near match", CreatedAt: time.Now()},
	}}

	engine, _ := newFixedEngine(t, embedder, store, false)

	results, err := engine.Search(ctx, Query{Text: "query text", Threshold: 1.0})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ContentID)
}

func TestEngineTieBreakByTimestamp(t *testing.T) {
	ctx := context.Background()
	older := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"q":          {1, 0},
		"old record": {1, 0},
		"new record": {1, 0},
	}}
	store := &staticStore{records: []content.Record{
		{ID: "old", Symbol: "AAPL", Type: content.TypeNews, Text: "old record", CreatedAt: older},
		{ID: "new", Symbol: "AAPL", Type: content.TypeNews, Text: "new record", CreatedAt: newer},
	}}

	engine, _ := newFixedEngine(t, embedder, store, false)

	results, err := engine.Search(ctx, Query{Text: "q"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "new", results[0].ContentID, "equal scores break ties by newer timestamp")
	assert.Equal(t, "old", results[1].ContentID)
}

func TestEngineLimit(t *testing.T) {
	ctx := context.Background()

	vectors := map[string][]float32{"q": {1, 0}}
	var records []content.Record
	for i := 0; i < 5; i++ {
		text := strings.Repeat("x", i+1)
		vectors[text] = []float32{1, 0}
		records = append(records, content.Record{
			ID: text, Symbol: "AAPL", Type: content.TypeNews, Text: text,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
	}

	engine, _ := newFixedEngine(t, &fixedEmbedder{vectors: vectors}, &staticStore{records: records}, false)

	results, err := engine.Search(ctx, Query{Text: "q", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestEngineDeterministic(t *testing.T) {
	ctx := context.Background()

	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"q": {1, 1}, "a": {1, 0.9}, "b": {0.9, 1}, "c": {1, 1},
	}}
	store := &staticStore{records: []content.Record{
		{ID: "a", Symbol: "AAPL", Type: content.TypeNews, Text: "a", CreatedAt: time.Now()},
		{ID: "b", Symbol: "AAPL", Type: content.TypeNews, Text: "b", CreatedAt: time.Now()},
		{ID: "c", Symbol: "AAPL", Type: content.TypeNews, Text: "c", CreatedAt: time.Now()},
	}}

	engine, _ := newFixedEngine(t, embedder, store, false)

	first, err := engine.Search(ctx, Query{Text: "q"})
	require.NoError(t, err)
	second, err := engine.Search(ctx, Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngineEmptyCorpus(t *testing.T) {
	engine, _ := newFixedEngine(t, &fixedEmbedder{vectors: map[string][]float32{"q": {1, 0}}}, &staticStore{}, false)

	results, err := engine.Search(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestEngineServesFromCache(t *testing.T) {
	ctx := context.Background()

	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"q": {1, 0}, "doc": {1, 0},
	}}
	store := &staticStore{records: []content.Record{
		{ID: "d", Symbol: "AAPL", Type: content.TypeNews, Text: "doc", CreatedAt: time.Now()},
	}}

	engine, rc := newFixedEngine(t, embedder, store, true)

	first, err := engine.Search(ctx, Query{Text: "q"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Break the embedder; the cached entry must still serve.
	embedder.fail = errors.WrapTransient(errors.ErrProviderUnavailable, "embedding", "Generate", "down")

	second, err := engine.Search(ctx, Query{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), rc.Stats().Hits())
}

func TestEngineProviderOutageOnMissReturnsEmpty(t *testing.T) {
	embedder := &fixedEmbedder{
		vectors: map[string][]float32{},
		fail:    errors.WrapTransient(errors.ErrProviderUnavailable, "embedding", "Generate", "down"),
	}
	engine, rc := newFixedEngine(t, embedder, &staticStore{}, true)

	results, err := engine.Search(context.Background(), Query{Text: "uncached query"})
	require.NoError(t, err, "provider outage on a cache miss degrades, it does not fail")
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, 0, rc.Size(), "degraded responses are not cached")
}

func TestEngineProviderOutageScoresCachedCandidates(t *testing.T) {
	ctx := context.Background()

	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"q":        {1, 0},
		"cached":   {1, 0},
		"uncached": {1, 0},
	}}

	embCache, err := embedding.NewCache(ctx, embedder.Model(), cache.DefaultConfig())
	require.NoError(t, err)
	provider, err := embedding.NewProvider(embedder, embCache, embedding.ProviderConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })

	store := &staticStore{records: []content.Record{
		{ID: "c", Symbol: "AAPL", Type: content.TypeNews, Text: "cached", CreatedAt: time.Now()},
		{ID: "u", Symbol: "AAPL", Type: content.TypeNews, Text: "uncached", CreatedAt: time.Now()},
	}}

	rc, err := NewResultCache(ctx, cache.Config{
		Enabled:         true,
		Strategy:        cache.StrategyHybrid,
		MaxSize:         100,
		TTL:             time.Minute,
		CleanupInterval: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	engine, err := NewEngine(store, provider, rc)
	require.NoError(t, err)

	// Warm the embedding cache for the query and one candidate, then
	// break the upstream embedder.
	_, err = provider.Embed(ctx, "q")
	require.NoError(t, err)
	_, err = provider.Embed(ctx, "cached")
	require.NoError(t, err)
	embedder.fail = errors.WrapTransient(errors.ErrProviderUnavailable, "embedding", "Generate", "down")

	results, err := engine.Search(ctx, Query{Text: "q", Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1, "only the cached candidate is scored during an outage")
	assert.Equal(t, "c", results[0].ContentID)
	assert.Equal(t, 0, rc.Size(), "degraded responses are not cached")
}

func TestEngineRejectsInvalidQuery(t *testing.T) {
	engine, _ := newFixedEngine(t, &fixedEmbedder{vectors: map[string][]float32{}}, &staticStore{}, false)

	_, err := engine.Search(context.Background(), Query{Text: ""})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = engine.Search(context.Background(), Query{Text: "q", Threshold: 2})
	assert.Error(t, err)
}
