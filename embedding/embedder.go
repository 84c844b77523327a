// Package embedding converts text into vector embeddings and caches
// them by content fingerprint. It supports an OpenAI-compatible HTTP
// backend and a deterministic lexical fallback.
package embedding

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Generate creates one embedding per input text, in input order.
	Generate(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced embeddings.
	Dimensions() int

	// Model returns the model identifier, used to namespace cache keys.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}
