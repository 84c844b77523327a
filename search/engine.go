package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/c360/marketsearch/content"
	"github.com/c360/marketsearch/embedding"
	"github.com/c360/marketsearch/errors"
)

// snippetLength bounds the excerpt carried in each result.
const snippetLength = 200

// Engine scores content records against a query embedding. Candidates
// are pre-filtered exactly (symbol, type, date range) through the
// content store, then ranked by cosine similarity.
type Engine struct {
	store    content.Store
	provider *embedding.Provider
	results  *ResultCache
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger overrides the default logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a similarity engine. The result cache may be nil
// to disable query caching.
func NewEngine(store content.Store, provider *embedding.Provider, results *ResultCache, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "search", "NewEngine", "content store is required")
	}
	if provider == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "search", "NewEngine", "embedding provider is required")
	}

	e := &Engine{
		store:    store,
		provider: provider,
		results:  results,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search executes a similarity query. The query is normalized and
// validated, the result cache consulted, and only on a miss does the
// engine embed, filter, score, rank and cache.
//
// Identical queries over an unchanged corpus return identical
// orderings and scores. The threshold comparison is inclusive.
func (e *Engine) Search(ctx context.Context, query Query) ([]Result, error) {
	query.Normalize()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	key := query.Key()
	if e.results != nil {
		if cached, found := e.results.Get(key); found {
			e.logger.Debug("search served from cache", "key", key, "results", len(cached))
			return cached, nil
		}
	}

	queryVector, err := e.provider.Embed(ctx, query.Text)
	if err != nil {
		if errors.IsFatal(err) {
			return nil, errors.Wrap(err, "search", "Search", "query embedding")
		}
		// Provider outage with no cached query vector degrades to an
		// empty result set, not an error.
		e.logger.Warn("query embedding unavailable, returning empty results",
			"key", key, "error", err)
		return []Result{}, nil
	}

	candidates, err := e.store.Query(ctx, content.Filter{
		Symbols: query.Symbols,
		Types:   query.Types,
		From:    query.From,
		To:      query.To,
	})
	if err != nil {
		return nil, errors.Wrap(err, "search", "Search", "candidate query")
	}

	results, degraded, err := e.score(ctx, query, queryVector, candidates)
	if err != nil {
		return nil, err
	}

	// Degraded result sets are partial; caching them would pin the
	// outage for a full TTL.
	if e.results != nil && !degraded {
		if err := e.results.Put(key, query.Symbols, results); err != nil {
			e.logger.Warn("result cache put failed", "key", key, "error", err)
		}
	}

	e.logger.Debug("search scored",
		"key", key, "candidates", len(candidates), "results", len(results))
	return results, nil
}

// score ranks candidates against the query vector. Candidate vectors
// resolve through the provider, which serves fingerprint cache hits
// and batches misses upstream. When upstream is down, only candidates
// with cached vectors are scored and the result reports degraded.
func (e *Engine) score(ctx context.Context, query Query, queryVector []float32, candidates []content.Record) ([]Result, bool, error) {
	if len(candidates) == 0 {
		return []Result{}, false, nil
	}

	texts := make([]string, len(candidates))
	for i, record := range candidates {
		texts[i] = record.Text
	}

	degraded := false
	vectors, err := e.provider.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.IsFatal(err) {
			return nil, false, errors.Wrap(err, "search", "score", "candidate embedding")
		}
		degraded = true
		e.logger.Warn("candidate embedding unavailable, scoring cached vectors only", "error", err)
		vectors = make([][]float32, len(texts))
		for i, text := range texts {
			vector, found, cerr := e.provider.CachedVector(ctx, text)
			if cerr != nil {
				return nil, false, errors.Wrap(cerr, "search", "score", "candidate lookup")
			}
			if found {
				vectors[i] = vector
			}
		}
	}

	results := make([]Result, 0, len(candidates))
	for i, record := range candidates {
		if vectors[i] == nil {
			continue
		}
		score := embedding.Similarity(queryVector, vectors[i])
		if score < query.Threshold {
			continue
		}
		results = append(results, Result{
			ContentID: record.ID,
			Type:      record.Type,
			Symbol:    record.Symbol,
			Score:     score,
			Snippet:   content.Snippet(record.Text, snippetLength),
			Metadata:  record.Metadata,
			Timestamp: record.CreatedAt,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	if len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, degraded, nil
}
