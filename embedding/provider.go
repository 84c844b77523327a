package embedding

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/c360/marketsearch/errors"
	"github.com/c360/marketsearch/pkg/cache"
	"github.com/c360/marketsearch/pkg/retry"
)

// Provider wraps an Embedder with fingerprint memoization, bounded
// retry, and upstream rate limiting. All engine code obtains vectors
// through a Provider rather than calling an Embedder directly.
type Provider struct {
	embedder Embedder
	cache    *Cache
	limiter  *rate.Limiter
	retry    retry.Config
	logger   *slog.Logger
}

// ProviderConfig configures the provider adapter.
type ProviderConfig struct {
	// RequestsPerSecond bounds upstream call rate. Zero disables
	// limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the rate limiter burst size (default 1 when limited).
	Burst int `yaml:"burst"`

	// Retry policy for upstream calls.
	Retry retry.Config `yaml:"retry"`

	// Logger defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// NewProvider creates a provider adapter around an embedder and its
// cache. The cache may be nil to disable memoization.
func NewProvider(embedder Embedder, vectorCache *Cache, cfg ProviderConfig) (*Provider, error) {
	if embedder == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "embedding", "NewProvider", "embedder is required")
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		embedder: embedder,
		cache:    vectorCache,
		limiter:  limiter,
		retry:    cfg.Retry,
		logger:   logger,
	}, nil
}

// Embed returns the vector for a single text, serving from the cache
// when possible.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// CachedVector returns the memoized vector for a text without calling
// upstream. The error is non-nil only for fatal cache failures
// (fingerprint collisions).
func (p *Provider) CachedVector(ctx context.Context, text string) ([]float32, bool, error) {
	if p.cache == nil {
		return nil, false, nil
	}
	vector, found, err := p.cache.Get(ctx, text)
	if err != nil {
		if errors.IsFatal(err) {
			return nil, false, err
		}
		p.logger.Warn("embedding cache get failed", "error", err)
		return nil, false, nil
	}
	return vector, found, nil
}

// EmbedBatch returns one vector per input text, preserving input
// order. Cached entries are resolved first; only misses reach the
// upstream embedder, in a single batched call.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, len(texts))
	var missIndexes []int
	var missTexts []string

	for i, text := range texts {
		if p.cache == nil {
			missIndexes = append(missIndexes, i)
			missTexts = append(missTexts, text)
			continue
		}
		vector, found, err := p.cache.Get(ctx, text)
		if err != nil {
			// Collision errors are fatal and must not be papered over.
			if errors.IsFatal(err) {
				return nil, err
			}
			p.logger.Warn("embedding cache get failed", "error", err)
		}
		if found {
			vectors[i] = vector
			continue
		}
		missIndexes = append(missIndexes, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	generated, err := p.generate(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for i, vector := range generated {
		vectors[missIndexes[i]] = vector
		if p.cache != nil {
			if err := p.cache.Put(ctx, missTexts[i], vector); err != nil {
				p.logger.Warn("embedding cache put failed", "error", err)
			}
		}
	}

	return vectors, nil
}

// generate calls upstream with rate limiting and retry. Invalid and
// fatal errors short-circuit the retry loop.
func (p *Provider) generate(ctx context.Context, texts []string) ([][]float32, error) {
	return retry.DoWithResult(ctx, p.retry, func() ([][]float32, error) {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, retry.NonRetryable(err)
			}
		}

		vectors, err := p.embedder.Generate(ctx, texts)
		if err != nil {
			if !errors.IsTransient(err) {
				return nil, retry.NonRetryable(err)
			}
			p.logger.Debug("embedding generation failed, will retry",
				"model", p.embedder.Model(), "texts", len(texts), "error", err)
			return nil, err
		}
		return vectors, nil
	})
}

// Model returns the underlying embedder's model identifier.
func (p *Provider) Model() string { return p.embedder.Model() }

// Dimensions returns the underlying embedder's dimensionality.
func (p *Provider) Dimensions() int { return p.embedder.Dimensions() }

// CacheStats returns embedding cache statistics, or nil without a cache.
func (p *Provider) CacheStats() *cache.Statistics {
	if p.cache == nil {
		return nil
	}
	return p.cache.Stats()
}

// Close shuts down the embedder and the cache.
func (p *Provider) Close() error {
	err := p.embedder.Close()
	if p.cache != nil {
		if cerr := p.cache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
