// Package engine wires the content store, embedding provider,
// similarity engine, result cache, ingestion pipeline and coordinator
// behind a single facade.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/marketsearch/config"
	"github.com/c360/marketsearch/content"
	"github.com/c360/marketsearch/coordinator"
	"github.com/c360/marketsearch/embedding"
	"github.com/c360/marketsearch/errors"
	"github.com/c360/marketsearch/ingest"
	"github.com/c360/marketsearch/metric"
	"github.com/c360/marketsearch/search"
)

// Engine is the top-level marketsearch facade. Construct with New,
// call Start before use, and Close on shutdown.
type Engine struct {
	store    content.Store
	provider *embedding.Provider
	searcher *search.Engine
	results  *search.ResultCache
	embCache *embedding.Cache
	pipeline *ingest.Pipeline
	coord    *coordinator.Coordinator
	metrics  *metric.Registry
	logger   *slog.Logger

	cancel  context.CancelFunc
	started bool
}

// Options inject optional dependencies into New.
type Options struct {
	// Store overrides the default in-memory content store.
	Store content.Store

	// Embedder overrides the embedder selected from configuration.
	Embedder embedding.Embedder

	// IngestProvider overrides the RSS provider built from
	// configuration.
	IngestProvider ingest.Provider

	// KVStore enables the embedding cache persistence tier.
	KVStore *embedding.KVStore

	// Metrics enables Prometheus instrumentation.
	Metrics *metric.Registry

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New builds an engine from configuration. The engine owns every
// component it builds and shuts them down in Close.
func New(cfg config.Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Background context for cache cleanup goroutines, cancelled in
	// Close.
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		metrics: opts.Metrics,
		logger:  logger,
		cancel:  cancel,
	}

	if err := e.build(ctx, cfg, opts); err != nil {
		cancel()
		e.closeBuilt()
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(ctx context.Context, cfg config.Config, opts Options) error {
	e.store = opts.Store
	if e.store == nil {
		e.store = content.NewMemoryStore()
	}

	embedder := opts.Embedder
	if embedder == nil {
		var err error
		embedder, err = buildEmbedder(cfg.Embedding)
		if err != nil {
			return err
		}
	}

	cacheOpts := []embedding.CacheOption{embedding.WithLogger(e.logger)}
	if opts.KVStore != nil {
		cacheOpts = append(cacheOpts, embedding.WithKVStore(opts.KVStore))
	}
	embCache, err := embedding.NewCache(ctx, embedder.Model(), cfg.EmbeddingCache, cacheOpts...)
	if err != nil {
		return err
	}
	e.embCache = embCache

	provider, err := embedding.NewProvider(embedder, embCache, embedding.ProviderConfig{
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Burst:             cfg.Embedding.Burst,
		Retry:             cfg.Retry,
		Logger:            e.logger,
	})
	if err != nil {
		return err
	}
	e.provider = provider

	results, err := search.NewResultCache(ctx, cfg.ResultCache)
	if err != nil {
		return err
	}
	e.results = results

	searcher, err := search.NewEngine(e.store, provider, results, search.WithEngineLogger(e.logger))
	if err != nil {
		return err
	}
	e.searcher = searcher

	ingestProvider := opts.IngestProvider
	if ingestProvider == nil && len(cfg.Ingestion.FeedURLs) > 0 {
		ingestProvider, err = ingest.NewRSSProvider(ingest.RSSConfig{
			FeedURLs: cfg.Ingestion.FeedURLs,
			MaxAge:   cfg.Ingestion.MaxItemAge,
			Logger:   e.logger,
		})
		if err != nil {
			return err
		}
	}

	if ingestProvider != nil {
		pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
			Provider:  ingestProvider,
			Scorer:    ingest.NewLexicalScorer(),
			Embedder:  provider,
			Store:     e.store,
			Results:   results,
			Workers:   cfg.Ingestion.Workers,
			QueueSize: cfg.Ingestion.QueueSize,
			Logger:    e.logger,
		})
		if err != nil {
			return err
		}
		e.pipeline = pipeline
	}

	e.coord = coordinator.New(embCache, results, e.pipeline, e.logger)
	return nil
}

func buildEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderHTTP:
		embedder, err := embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return embedder, nil
	case config.ProviderLexical:
		return embedding.NewLexicalEmbedder(embedding.LexicalConfig{
			Dimensions: cfg.Dimensions,
		}), nil
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "engine", "buildEmbedder",
			"unknown embedding provider "+cfg.Provider)
	}
}

// Start launches the async ingestion pool. The context bounds all
// asynchronous work.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		return errors.ErrAlreadyStarted
	}
	if e.pipeline != nil {
		if err := e.pipeline.Start(ctx); err != nil {
			return err
		}
	}
	e.started = true
	return nil
}

// Search executes a similarity query.
func (e *Engine) Search(ctx context.Context, query search.Query) ([]search.Result, error) {
	return e.searcher.Search(ctx, query)
}

// Delete removes a content record and invalidates cached query
// results referencing its symbol.
func (e *Engine) Delete(ctx context.Context, id string) error {
	record, found, err := e.store.Get(ctx, id)
	if err != nil {
		return errors.Wrap(err, "engine", "Delete", "record lookup")
	}
	if !found {
		return errors.WrapInvalid(errors.ErrNotFound, "engine", "Delete", "record "+id)
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	if e.results != nil {
		e.results.InvalidateSymbol(record.Symbol)
	}
	return nil
}

// Ingest runs the content pipeline for a symbol (empty = everything).
func (e *Engine) Ingest(ctx context.Context, symbol string, mode ingest.Mode) (ingest.RunStatus, error) {
	if e.pipeline == nil {
		return ingest.RunStatus{}, errors.WrapInvalid(errors.ErrInvalidConfig, "engine", "Ingest",
			"no ingestion provider configured")
	}
	return e.pipeline.Run(ctx, symbol, mode)
}

// IngestStatus returns the status of a prior ingestion run.
func (e *Engine) IngestStatus(id string) (ingest.RunStatus, error) {
	if e.pipeline == nil {
		return ingest.RunStatus{}, errors.WrapInvalid(errors.ErrNotFound, "engine", "IngestStatus", "run "+id)
	}
	return e.pipeline.Tracker().Get(id)
}

// CacheStats snapshots cache, pool and run state.
func (e *Engine) CacheStats() coordinator.Stats {
	return e.coord.Stats()
}

// CacheCleanup sweeps expired entries from both caches.
func (e *Engine) CacheCleanup(ctx context.Context) coordinator.CleanupReport {
	return e.coord.Cleanup(ctx)
}

// Close shuts the engine down: the ingestion pool drains, then caches
// and the provider close.
func (e *Engine) Close() error {
	if e.cancel != nil {
		defer e.cancel()
	}

	var firstErr error
	if e.pipeline != nil && e.started {
		if err := e.pipeline.Stop(10 * time.Second); err != nil {
			firstErr = err
		}
	}
	if err := e.closeBuilt(); err != nil && firstErr == nil {
		firstErr = err
	}
	e.started = false
	return firstErr
}

func (e *Engine) closeBuilt() error {
	var firstErr error
	if e.results != nil {
		if err := e.results.Close(); err != nil {
			firstErr = err
		}
	}
	if e.provider != nil {
		// Provider.Close also closes the embedding cache.
		if err := e.provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	} else if e.embCache != nil {
		if err := e.embCache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
