// Package marketsearch is a semantic search and caching engine for
// financial content.
//
// The module ingests market news, scores it for sentiment and symbol
// relevance, embeds it into vector space, and serves similarity
// queries over the resulting corpus with aggressive caching at both
// the embedding and result layers.
//
// # Architecture
//
// The packages compose bottom-up:
//
//   - content: canonical content records, fingerprinting, and the
//     Store interface with an in-memory implementation.
//   - embedding: the Embedder interface (HTTP and lexical
//     implementations), cosine similarity, the fingerprint-keyed
//     vector cache with optional NATS KV persistence, and the
//     rate-limited retrying Provider.
//   - search: query normalization and canonical cache keys, the
//     symbol-indexed result cache, and the similarity Engine.
//   - ingest: news providers (RSS), lexical scoring, symbol
//     extraction, run tracking, and the sync/async Pipeline.
//   - coordinator: cross-cache statistics and expiry sweeps.
//   - engine: the facade that wires everything from configuration.
//
// Infrastructure lives under pkg/ (generic caches, retry, worker
// pool) with config, errors, and metric alongside.
//
// # Usage
//
//	cfg := config.Default()
//	e, err := engine.New(cfg, engine.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer e.Close()
//
//	if err := e.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := e.Search(ctx, search.Query{Text: "TSLA deliveries"})
//
// The cmd/marketsearch binary runs the engine as a daemon with
// scheduled ingestion, cache cleanup, and Prometheus metrics.
package marketsearch
