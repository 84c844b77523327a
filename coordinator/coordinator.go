// Package coordinator aggregates cache statistics and drives
// maintenance across the embedding and result caches.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/marketsearch/embedding"
	"github.com/c360/marketsearch/ingest"
	"github.com/c360/marketsearch/pkg/cache"
	"github.com/c360/marketsearch/pkg/worker"
	"github.com/c360/marketsearch/search"
)

// CacheStats is a read-only snapshot of one cache. HitRate is 0 when
// the cache has seen no traffic.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Stats aggregates snapshots across the engine's moving parts.
type Stats struct {
	Embeddings CacheStats         `json:"embeddings"`
	Results    CacheStats         `json:"results"`
	Pool       worker.PoolStats   `json:"pool"`
	Runs       []ingest.RunStatus `json:"runs"`
}

// CleanupReport summarizes one maintenance sweep.
type CleanupReport struct {
	EmbeddingsEvicted int           `json:"embeddings_evicted"`
	ResultsEvicted    int           `json:"results_evicted"`
	Duration          time.Duration `json:"duration"`
}

// Coordinator owns cross-cache maintenance. Both caches stay fully
// readable while a sweep runs; eviction takes per-cache locks only for
// short critical sections.
type Coordinator struct {
	embeddings *embedding.Cache
	results    *search.ResultCache
	pipeline   *ingest.Pipeline
	logger     *slog.Logger
}

// New creates a coordinator. Any of the dependencies may be nil; their
// sections read as zero.
func New(embeddings *embedding.Cache, results *search.ResultCache, pipeline *ingest.Pipeline, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		embeddings: embeddings,
		results:    results,
		pipeline:   pipeline,
		logger:     logger,
	}
}

// Stats snapshots cache, pool and run state.
func (c *Coordinator) Stats() Stats {
	var stats Stats
	if c.embeddings != nil {
		stats.Embeddings = snapshot(c.embeddings.Stats(), c.embeddings.Size())
	}
	if c.results != nil {
		stats.Results = snapshot(c.results.Stats(), c.results.Size())
	}
	if c.pipeline != nil {
		stats.Pool = c.pipeline.PoolStats()
		stats.Runs = c.pipeline.Tracker().All()
	}
	return stats
}

// Cleanup sweeps expired entries from both caches and returns the
// evicted counts. Safe to run concurrently with searches and ingestion.
func (c *Coordinator) Cleanup(ctx context.Context) CleanupReport {
	start := time.Now()
	var report CleanupReport

	if ctx.Err() != nil {
		return report
	}
	if c.embeddings != nil {
		report.EmbeddingsEvicted = c.embeddings.EvictExpired()
	}
	if ctx.Err() == nil && c.results != nil {
		report.ResultsEvicted = c.results.EvictExpired()
	}

	report.Duration = time.Since(start)
	if report.EmbeddingsEvicted > 0 || report.ResultsEvicted > 0 {
		c.logger.Debug("cache cleanup",
			"embeddings_evicted", report.EmbeddingsEvicted,
			"results_evicted", report.ResultsEvicted,
			"duration", report.Duration)
	}
	return report
}

func snapshot(stats *cache.Statistics, size int) CacheStats {
	if stats == nil {
		return CacheStats{}
	}
	return CacheStats{
		Hits:    stats.Hits(),
		Misses:  stats.Misses(),
		Size:    size,
		HitRate: stats.HitRatio(),
	}
}
