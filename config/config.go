// Package config loads and validates the marketsearch configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/marketsearch/errors"
	"github.com/c360/marketsearch/pkg/cache"
	"github.com/c360/marketsearch/pkg/retry"
)

// Embedding provider kinds.
const (
	ProviderHTTP    = "http"
	ProviderLexical = "lexical"
)

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Provider is "http" (OpenAI-compatible service) or "lexical"
	// (in-process deterministic fallback).
	Provider string `yaml:"provider"`

	// BaseURL, Model, APIKey and Timeout configure the HTTP provider.
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`

	// Dimensions sizes lexical vectors and pre-declares HTTP ones.
	Dimensions int `yaml:"dimensions"`

	// RequestsPerSecond and Burst bound upstream call rate.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// IngestionConfig configures the content pipeline.
type IngestionConfig struct {
	// FeedURLs lists RSS/Atom feeds to poll.
	FeedURLs []string `yaml:"feed_urls"`

	// Symbols tracked for scheduled ingestion.
	Symbols []string `yaml:"symbols"`

	// Interval between scheduled ingestion runs (0 disables).
	Interval time.Duration `yaml:"interval"`

	// Workers and QueueSize shape the async worker pool.
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`

	// MaxItemAge drops feed items older than this.
	MaxItemAge time.Duration `yaml:"max_item_age"`
}

// Config is the complete application configuration.
type Config struct {
	Embedding      EmbeddingConfig `yaml:"embedding"`
	EmbeddingCache cache.Config    `yaml:"embedding_cache"`
	ResultCache    cache.Config    `yaml:"result_cache"`
	Ingestion      IngestionConfig `yaml:"ingestion"`
	Retry          retry.Config    `yaml:"retry"`

	// CleanupInterval between coordinator cache sweeps.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// MetricsAddr serves Prometheus metrics when non-empty, e.g.
	// ":9090".
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a runnable configuration using the lexical embedder
// and in-memory storage.
func Default() Config {
	embeddingCache := cache.DefaultConfig()
	embeddingCache.TTL = time.Hour
	embeddingCache.MaxSize = 10000

	resultCache := cache.DefaultConfig()

	return Config{
		Embedding: EmbeddingConfig{
			Provider:   ProviderLexical,
			Dimensions: 256,
		},
		EmbeddingCache: embeddingCache,
		ResultCache:    resultCache,
		Ingestion: IngestionConfig{
			Workers:   4,
			QueueSize: 64,
		},
		Retry:           retry.DefaultConfig(),
		CleanupInterval: time.Minute,
	}
}

// Load reads a YAML configuration file, layered over defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config", "Load", "read "+path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Load", err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	invalid := func(msg string) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", msg)
	}

	switch c.Embedding.Provider {
	case ProviderLexical:
	case ProviderHTTP:
		if c.Embedding.BaseURL == "" {
			return invalid("embedding.base_url is required for the http provider")
		}
		if c.Embedding.Model == "" {
			return invalid("embedding.model is required for the http provider")
		}
	default:
		return invalid(fmt.Sprintf("unknown embedding provider: %q", c.Embedding.Provider))
	}

	if c.Embedding.RequestsPerSecond < 0 {
		return invalid("embedding.requests_per_second cannot be negative")
	}

	if err := c.EmbeddingCache.Validate(); err != nil {
		return err
	}
	if err := c.ResultCache.Validate(); err != nil {
		return err
	}

	if c.Ingestion.Workers < 0 || c.Ingestion.QueueSize < 0 {
		return invalid("ingestion workers and queue_size cannot be negative")
	}
	if c.Ingestion.Interval > 0 && len(c.Ingestion.FeedURLs) == 0 {
		return invalid("ingestion.feed_urls is required when ingestion.interval is set")
	}

	return nil
}
