package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/marketsearch/pkg/cache"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderLexical, cfg.Embedding.Provider)
	assert.True(t, cfg.EmbeddingCache.Enabled)
	assert.True(t, cfg.ResultCache.Enabled)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
embedding:
  provider: http
  base_url: http://localhost:8082
  model: all-MiniLM-L6-v2
  timeout: 10s
  requests_per_second: 5
result_cache:
  enabled: true
  strategy: ttl
  ttl: 2m
  cleanup_interval: 30s
ingestion:
  feed_urls:
    - https://example.com/feed.rss
  symbols: [AAPL, TSLA]
  interval: 5m
  workers: 8
metrics_addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderHTTP, cfg.Embedding.Provider)
	assert.Equal(t, "http://localhost:8082", cfg.Embedding.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 5.0, cfg.Embedding.RequestsPerSecond)

	assert.Equal(t, cache.StrategyTTL, cfg.ResultCache.Strategy)
	assert.Equal(t, 2*time.Minute, cfg.ResultCache.TTL)
	assert.Equal(t, 30*time.Second, cfg.ResultCache.CleanupInterval)

	assert.Equal(t, []string{"AAPL", "TSLA"}, cfg.Ingestion.Symbols)
	assert.Equal(t, 5*time.Minute, cfg.Ingestion.Interval)
	assert.Equal(t, 8, cfg.Ingestion.Workers)
	assert.Equal(t, ":9090", cfg.MetricsAddr)

	// Unset sections keep defaults.
	assert.True(t, cfg.EmbeddingCache.Enabled)
	assert.Equal(t, cache.StrategyHybrid, cfg.EmbeddingCache.Strategy)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  provider: quantum\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default ok", func(_ *Config) {}, false},
		{"http without base url", func(c *Config) { c.Embedding = EmbeddingConfig{Provider: ProviderHTTP, Model: "m"} }, true},
		{"http without model", func(c *Config) { c.Embedding = EmbeddingConfig{Provider: ProviderHTTP, BaseURL: "http://x"} }, true},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "magic" }, true},
		{"negative rate", func(c *Config) { c.Embedding.RequestsPerSecond = -1 }, true},
		{"bad cache config", func(c *Config) { c.ResultCache = cache.Config{Enabled: true, Strategy: "nope"} }, true},
		{"interval without feeds", func(c *Config) { c.Ingestion.Interval = time.Minute }, true},
		{"negative workers", func(c *Config) { c.Ingestion.Workers = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
