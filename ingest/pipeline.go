package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/marketsearch/content"
	"github.com/c360/marketsearch/embedding"
	"github.com/c360/marketsearch/errors"
	"github.com/c360/marketsearch/pkg/worker"
	"github.com/c360/marketsearch/search"
)

// Mode selects how an ingestion run executes.
type Mode string

const (
	// ModeSync blocks until the run reaches a terminal state.
	ModeSync Mode = "sync"

	// ModeAsync submits the run to the worker pool and returns the run
	// ID immediately; status is pollable through the tracker.
	ModeAsync Mode = "async"
)

// job is an ingestion run queued on the worker pool.
type job struct {
	runID  string
	symbol string
}

// Pipeline drives content from a provider through scoring, embedding
// and persistence. Per-item failures skip the item; provider fetch
// failure fails the run.
type Pipeline struct {
	provider Provider
	scorer   Scorer
	embedder *embedding.Provider
	store    content.Store
	results  *search.ResultCache
	tracker  *Tracker
	pool     *worker.Pool[job]
	logger   *slog.Logger
}

// PipelineConfig wires a Pipeline. Provider, Scorer, Embedder and
// Store are required; Results may be nil when no query cache exists.
type PipelineConfig struct {
	Provider Provider
	Scorer   Scorer
	Embedder *embedding.Provider
	Store    content.Store
	Results  *search.ResultCache
	Tracker  *Tracker

	// Workers and QueueSize shape the async pool.
	Workers   int
	QueueSize int

	Logger *slog.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	invalid := func(msg string) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ingest", "NewPipeline", msg)
	}
	if cfg.Provider == nil {
		return nil, invalid("provider is required")
	}
	if cfg.Scorer == nil {
		return nil, invalid("scorer is required")
	}
	if cfg.Embedder == nil {
		return nil, invalid("embedder is required")
	}
	if cfg.Store == nil {
		return nil, invalid("store is required")
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		provider: cfg.Provider,
		scorer:   cfg.Scorer,
		embedder: cfg.Embedder,
		store:    cfg.Store,
		results:  cfg.Results,
		tracker:  tracker,
		logger:   logger,
	}
	p.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, p.process)
	return p, nil
}

// Tracker exposes the run tracker for status polling.
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// PoolStats returns worker pool statistics for the async path.
func (p *Pipeline) PoolStats() worker.PoolStats { return p.pool.Stats() }

// Start launches the async worker pool. The context bounds all async
// runs; cancelling it stops new work promptly.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.pool.Start(ctx)
}

// Stop drains the async pool.
func (p *Pipeline) Stop(timeout time.Duration) error {
	return p.pool.Stop(timeout)
}

// Run starts an ingestion run for a symbol (empty = all content).
// ModeSync returns the terminal status; ModeAsync returns the pending
// status immediately.
func (p *Pipeline) Run(ctx context.Context, symbol string, mode Mode) (RunStatus, error) {
	run := p.tracker.Begin(symbol)

	switch mode {
	case ModeSync, "":
		p.execute(ctx, run.ID, symbol)
		return p.tracker.Get(run.ID)
	case ModeAsync:
		if err := p.pool.Submit(job{runID: run.ID, symbol: symbol}); err != nil {
			p.tracker.Fail(run.ID, 0, 0, err)
			return RunStatus{}, errors.WrapTransient(err, "ingest", "Run", "async submit")
		}
		return run, nil
	default:
		p.tracker.Fail(run.ID, 0, 0, errors.ErrInvalidData)
		return RunStatus{}, errors.WrapInvalid(errors.ErrInvalidData, "ingest", "Run", "unknown mode "+string(mode))
	}
}

// process adapts execute to the worker pool signature.
func (p *Pipeline) process(ctx context.Context, j job) error {
	p.execute(ctx, j.runID, j.symbol)
	status, err := p.tracker.Get(j.runID)
	if err != nil {
		return err
	}
	if status.State == StateFailed {
		return errors.New(status.Error)
	}
	return nil
}

// execute walks a run through its states. Cancellation between stages
// or items fails the run; partial progress is never reported as
// success.
func (p *Pipeline) execute(ctx context.Context, runID, symbol string) {
	processed, skipped := 0, 0

	p.tracker.Transition(runID, StateFetching)
	items, err := p.provider.FetchNews(ctx, symbol)
	if err != nil {
		p.tracker.Fail(runID, 0, 0, err)
		p.logger.Error("ingestion fetch failed", "run", runID, "symbol", symbol, "error", err)
		return
	}

	invalidated := make(map[string]struct{})

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			p.tracker.Fail(runID, processed, skipped, err)
			p.logger.Warn("ingestion cancelled", "run", runID, "processed", processed)
			return
		}

		text := item.Text()
		if text == "" {
			skipped++
			continue
		}

		p.tracker.Transition(runID, StateScoring)
		scores, err := p.scorer.Score(ctx, text, symbol)
		if err != nil {
			skipped++
			p.logger.Warn("item scoring failed, skipping", "run", runID, "url", item.URL, "error", err)
			continue
		}

		p.tracker.Transition(runID, StateEmbedding)
		if _, err := p.embedder.Embed(ctx, text); err != nil {
			if errors.IsFatal(err) {
				p.tracker.Fail(runID, processed, skipped, err)
				p.logger.Error("ingestion aborted", "run", runID, "error", err)
				return
			}
			skipped++
			p.logger.Warn("item embedding failed, skipping", "run", runID, "url", item.URL, "error", err)
			continue
		}

		p.tracker.Transition(runID, StatePersisting)
		record := p.buildRecord(item, symbol, scores)
		if _, err := p.store.Upsert(ctx, record); err != nil {
			skipped++
			p.logger.Warn("item persist failed, skipping", "run", runID, "url", item.URL, "error", err)
			continue
		}
		processed++

		for _, sym := range p.affectedSymbols(item, symbol) {
			invalidated[sym] = struct{}{}
		}
	}

	if p.results != nil {
		for sym := range invalidated {
			p.results.InvalidateSymbol(sym)
		}
		// Persisted items without an extractable symbol still affect
		// unfiltered queries.
		if processed > 0 && len(invalidated) == 0 {
			p.results.InvalidateWildcard()
		}
	}

	p.tracker.Complete(runID, processed, skipped)
	p.logger.Info("ingestion completed",
		"run", runID, "symbol", symbol, "processed", processed, "skipped", skipped)
}

// buildRecord maps a fetched item plus scores onto a content record.
func (p *Pipeline) buildRecord(item RawItem, symbol string, scores Scores) content.Record {
	recordSymbol := symbol
	if recordSymbol == "" && len(item.Symbols) > 0 {
		recordSymbol = item.Symbols[0]
	}

	meta := content.Metadata{
		"sentiment": content.Number(scores.Sentiment),
		"relevance": content.Number(scores.Relevance),
	}
	if item.Source != "" {
		meta["source"] = content.String(item.Source)
	}
	if item.URL != "" {
		meta["url"] = content.String(item.URL)
	}
	if !item.PublishedAt.IsZero() {
		meta["published_at"] = content.String(item.PublishedAt.UTC().Format(time.RFC3339))
	}

	return content.Record{
		Symbol:   recordSymbol,
		Type:     content.TypeNews,
		Text:     item.Text(),
		Metadata: meta,
	}
}

func (p *Pipeline) affectedSymbols(item RawItem, symbol string) []string {
	if symbol != "" {
		return append([]string{symbol}, item.Symbols...)
	}
	return item.Symbols
}
