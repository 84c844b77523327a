package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/c360/marketsearch/errors"
)

// HTTPEmbedder calls an external OpenAI-compatible embedding service.
//
// Works with Hugging Face TEI, LocalAI, OpenAI cloud, or any service
// speaking the OpenAI embeddings API.
type HTTPEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	logger     *slog.Logger
}

// HTTPConfig configures the HTTP embedder.
type HTTPConfig struct {
	// BaseURL of the embedding service, e.g. "http://localhost:8082"
	// (TEI) or "https://api.openai.com/v1".
	BaseURL string

	// Model identifier, e.g. "all-MiniLM-L6-v2" or
	// "text-embedding-3-small".
	Model string

	// APIKey for authentication. Optional for local services.
	APIKey string

	// Dimensions of the model output. Detected from the first response
	// when zero.
	Dimensions int

	// Timeout for HTTP requests (default 30s).
	Timeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewHTTPEmbedder creates an embedder backed by an OpenAI-compatible API.
func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	invalid := func(msg string) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "embedding", "NewHTTPEmbedder", msg)
	}
	if cfg.BaseURL == "" {
		return nil, invalid("base_url is required")
	}
	if cfg.Model == "" {
		return nil, invalid("model is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// Local services ignore the key but the SDK requires one.
		apiKey = "unused"
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}, nil
}

// Generate creates embeddings by calling the external service.
func (h *HTTPEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := h.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(h.model),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapTransient(errors.ErrProviderTimeout, "embedding", "Generate", "request cancelled")
		}
		return nil, errors.WrapTransient(errors.ErrProviderUnavailable, "embedding", "Generate", err.Error())
	}

	if len(resp.Data) != len(texts) {
		return nil, errors.WrapTransient(errors.ErrProviderResponse, "embedding", "Generate",
			fmt.Sprintf("service returned %d embeddings for %d texts", len(resp.Data), len(texts)))
	}

	embeddings := make([][]float32, len(texts))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}

	if h.dimensions == 0 && len(embeddings[0]) > 0 {
		h.dimensions = len(embeddings[0])
		h.logger.Debug("detected embedding dimensions",
			"model", h.model, "dimensions", h.dimensions)
	}

	return embeddings, nil
}

// Dimensions returns the embedding dimensionality (0 until detected).
func (h *HTTPEmbedder) Dimensions() int { return h.dimensions }

// Model returns the model identifier.
func (h *HTTPEmbedder) Model() string { return h.model }

// Close releases resources. No-op for the HTTP client.
func (h *HTTPEmbedder) Close() error { return nil }
