package ingest

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
	"github.com/c360/marketsearch/search"
)

// stubProvider serves canned items or a canned error.
type stubProvider struct {
	items []RawItem
	err   error
	calls int
}

func (s *stubProvider) FetchNews(_ context.Context, symbol string) ([]RawItem, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if symbol == "" {
		return s.items, nil
	}
	var out []RawItem
	for _, item := range s.items {
		for _, sym := range item.Symbols {
			if sym == symbol {
				out = append(out, item)
				break
			}
		}
	}
	return out, nil
}

// failingScorer fails for texts containing a marker substring.
type failingScorer struct {
	inner  Scorer
	marker string
}

func (f *failingScorer) Score(ctx context.Context, text, symbol string) (Scores, error) {
	if f.marker != "" && strings.Contains(text, f.marker) {
		return Scores{}, errors.WrapInvalid(errors.ErrInvalidData, "ingest", "Score", "marker hit")
	}
	return f.inner.Score(ctx, text, symbol)
}

func newTestPipeline(t *testing.T, provider Provider, scorer Scorer) (*Pipeline, *content.MemoryStore, *search.ResultCache) {
	t.Helper()
	ctx := context.Background()

	embProvider, err := embedding.NewProvider(
		embedding.NewLexicalEmbedder(embedding.LexicalConfig{Dimensions: 32}),
		nil,
		embedding.ProviderConfig{},
	)
	require.NoError(t, err)
	t.Cleanup(func() { embProvider.Close() })

	store := content.NewMemoryStore()

	results, err := search.NewResultCache(ctx, cache.Config{
		Enabled:         true,
		Strategy:        cache.StrategyHybrid,
		MaxSize:         100,
		TTL:             time.Minute,
		CleanupInterval: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { results.Close() })

	if scorer == nil {
		scorer = NewLexicalScorer()
	}

	pipeline, err := NewPipeline(PipelineConfig{
		Provider:  provider,
		Scorer:    scorer,
		Embedder:  embProvider,
		Store:     store,
		Results:   results,
		Workers:   2,
		QueueSize: 10,
	})
	require.NoError(t, err)
	return pipeline, store, results
}

func sampleItems() []RawItem {
	now := time.Now()
	return []RawItem{
		{Title: "TSLA beats delivery estimates", Body: "strong growth quarter", Source: "feed", URL: "http://x/1", PublishedAt: now, Symbols: []string{"TSLA"}},
		{Title: "TSLA opens new factory", Body: "production increase", Source: "feed", URL: "http://x/2", PublishedAt: now, Symbols: []string{"TSLA"}},
		{Title: "AAPL ships new phone", Body: "record sales", Source: "feed", URL: "http://x/3", PublishedAt: now, Symbols: []string{"AAPL"}},
	}
}

func TestPipelineSyncRun(t *testing.T) {
	ctx := context.Background()
	provider := &stubProvider{items: sampleItems()}
	pipeline, store, _ := newTestPipeline(t, provider, nil)

	status, err := pipeline.Run(ctx, "TSLA", ModeSync)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, status.State)
	assert.Equal(t, 2, status.Processed)
	assert.Equal(t, 0, status.Skipped)
	assert.Equal(t, 2, store.Size())

	records, err := store.Query(ctx, content.Filter{Symbols: []string{"TSLA"}})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, content.TypeNews, r.Type)
		assert.Contains(t, r.Metadata, "sentiment")
		assert.Contains(t, r.Metadata, "relevance")
		assert.Equal(t, "feed", r.Metadata["source"].StringValue())
	}
}

func TestPipelineIdempotentReingest(t *testing.T) {
	ctx := context.Background()
	provider := &stubProvider{items: sampleItems()}
	pipeline, store, _ := newTestPipeline(t, provider, nil)

	first, err := pipeline.Run(ctx, "", ModeSync)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Processed)

	second, err := pipeline.Run(ctx, "", ModeSync)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Processed)

	// Same fingerprints, no duplicates.
	assert.Equal(t, 3, store.Size())
}

func TestPipelinePartialFailureSkips(t *testing.T) {
	ctx := context.Background()
	provider := &stubProvider{items: sampleItems()}
	scorer := &failingScorer{inner: NewLexicalScorer(), marker: "factory"}
	pipeline, store, _ := newTestPipeline(t, provider, scorer)

	status, err := pipeline.Run(ctx, "TSLA", ModeSync)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, status.State)
	assert.Equal(t, 1, status.Processed)
	assert.Equal(t, 1, status.Skipped)
	assert.Equal(t, 1, store.Size())
}

func TestPipelineProviderFailureFailsRun(t *testing.T) {
	ctx := context.Background()
	provider := &stubProvider{err: errors.WrapTransient(errors.ErrProviderUnavailable, "ingest", "FetchNews", "all feeds down")}
	pipeline, store, _ := newTestPipeline(t, provider, nil)

	status, err := pipeline.Run(ctx, "TSLA", ModeSync)
	require.NoError(t, err)

	assert.Equal(t, StateFailed, status.State)
	assert.NotEmpty(t, status.Error)
	assert.Equal(t, 0, store.Size())
}

func TestPipelineInvalidatesResultCache(t *testing.T) {
	ctx := context.Background()
	provider := &stubProvider{items: sampleItems()}
	pipeline, _, results := newTestPipeline(t, provider, nil)

	require.NoError(t, results.Put("search:tsla", []string{"TSLA"}, []search.Result{{ContentID: "stale"}}))
	require.NoError(t, results.Put("search:msft", []string{"MSFT"}, []search.Result{{ContentID: "keep"}}))
	require.NoError(t, results.Put("search:all", nil, []search.Result{{ContentID: "stale-wide"}}))

	_, err := pipeline.Run(ctx, "TSLA", ModeSync)
	require.NoError(t, err)

	_, found := results.Get("search:tsla")
	assert.False(t, found, "symbol entry invalidated by ingest")
	_, found = results.Get("search:all")
	assert.False(t, found, "wildcard entry invalidated by ingest")
	_, found = results.Get("search:msft")
	assert.True(t, found, "unrelated symbol untouched")
}

func TestPipelineInvalidatesWildcardForSymbollessItems(t *testing.T) {
	ctx := context.Background()

	// No uppercase ticker tokens and no provider-tagged symbols: the
	// item persists without a symbol but still changes what unfiltered
	// queries should see.
	provider := &stubProvider{items: []RawItem{
		{Title: "Crude prices climb on supply worries", Body: "refinery output tightens", Source: "feed", URL: "http://x/9", PublishedAt: time.Now()},
	}}
	pipeline, store, results := newTestPipeline(t, provider, nil)

	require.NoError(t, results.Put("search:all", nil, []search.Result{{ContentID: "stale-wide"}}))
	require.NoError(t, results.Put("search:msft", []string{"MSFT"}, []search.Result{{ContentID: "keep"}}))

	status, err := pipeline.Run(ctx, "", ModeSync)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, status.State)
	require.Equal(t, 1, status.Processed)
	assert.Equal(t, 1, store.Size())

	_, found := results.Get("search:all")
	assert.False(t, found, "wildcard entry invalidated by symbolless ingest")
	_, found = results.Get("search:msft")
	assert.True(t, found, "symbol entry untouched")
}

func TestPipelineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &stubProvider{items: sampleItems()}
	pipeline, store, _ := newTestPipeline(t, provider, nil)

	status, err := pipeline.Run(ctx, "", ModeSync)
	require.NoError(t, err)

	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, 0, store.Size())
}

func TestPipelineAsyncRun(t *testing.T) {
	ctx, cancelPool := context.WithCancel(context.Background())
	defer cancelPool()

	provider := &stubProvider{items: sampleItems()}
	pipeline, store, _ := newTestPipeline(t, provider, nil)

	require.NoError(t, pipeline.Start(ctx))
	defer pipeline.Stop(5 * time.Second)

	status, err := pipeline.Run(ctx, "AAPL", ModeAsync)
	require.NoError(t, err)
	assert.Equal(t, StatePending, status.State)
	assert.NotEmpty(t, status.ID)

	require.Eventually(t, func() bool {
		current, getErr := pipeline.Tracker().Get(status.ID)
		return getErr == nil && current.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	final, err := pipeline.Tracker().Get(status.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, final.State)
	assert.Equal(t, 1, final.Processed)
	assert.Equal(t, 1, store.Size())
}

func TestPipelineAsyncRequiresStart(t *testing.T) {
	provider := &stubProvider{items: sampleItems()}
	pipeline, _, _ := newTestPipeline(t, provider, nil)

	_, err := pipeline.Run(context.Background(), "AAPL", ModeAsync)
	require.Error(t, err)
}

func TestPipelineUnknownMode(t *testing.T) {
	provider := &stubProvider{items: sampleItems()}
	pipeline, _, _ := newTestPipeline(t, provider, nil)

	_, err := pipeline.Run(context.Background(), "AAPL", Mode("bogus"))
	assert.Error(t, err)
}

func TestPipelineRequiredDependencies(t *testing.T) {
	_, err := NewPipeline(PipelineConfig{})
	assert.Error(t, err)
}
