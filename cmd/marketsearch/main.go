// Package main implements the marketsearch daemon: a semantic search
// and caching engine over ingested financial content.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/marketsearch/config"
	"github.com/c360/marketsearch/engine"
	"github.com/c360/marketsearch/ingest"
	"github.com/c360/marketsearch/metric"
)

const (
	Version = "0.1.0"
	appName = "marketsearch"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg := config.Default()
	if cliCfg.ConfigPath != "" {
		var err error
		cfg, err = config.Load(cliCfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	if cliCfg.Validate {
		logger.Info("configuration is valid", "path", cliCfg.ConfigPath)
		return nil
	}

	logger.Info("starting marketsearch",
		"version", Version,
		"config_path", cliCfg.ConfigPath,
		"embedding_provider", cfg.Embedding.Provider)

	metricsRegistry := metric.NewRegistry()

	eng, err := engine.New(cfg, engine.Options{
		Metrics: metricsRegistry,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			logger.Warn("engine close", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	metricsServer := startMetricsServer(cfg.MetricsAddr, metricsRegistry, logger)

	runLoops(ctx, cfg, eng, logger)

	// Signal received; shut down within the grace period.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// startMetricsServer serves Prometheus metrics when configured.
func startMetricsServer(addr string, registry *metric.Registry, logger *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return server
}

// runLoops drives periodic ingestion and cache cleanup until the
// context is cancelled.
func runLoops(ctx context.Context, cfg config.Config, eng *engine.Engine, logger *slog.Logger) {
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	var ingestCh <-chan time.Time
	if cfg.Ingestion.Interval > 0 {
		ingestTicker := time.NewTicker(cfg.Ingestion.Interval)
		defer ingestTicker.Stop()
		ingestCh = ingestTicker.C

		// Prime the corpus once at startup.
		runIngestion(ctx, cfg, eng, logger)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanupTicker.C:
			report := eng.CacheCleanup(ctx)
			if report.EmbeddingsEvicted > 0 || report.ResultsEvicted > 0 {
				logger.Info("cache cleanup",
					"embeddings_evicted", report.EmbeddingsEvicted,
					"results_evicted", report.ResultsEvicted)
			}
		case <-ingestCh:
			runIngestion(ctx, cfg, eng, logger)
		}
	}
}

func runIngestion(ctx context.Context, cfg config.Config, eng *engine.Engine, logger *slog.Logger) {
	symbols := cfg.Ingestion.Symbols
	if len(symbols) == 0 {
		symbols = []string{""}
	}
	for _, symbol := range symbols {
		status, err := eng.Ingest(ctx, symbol, ingest.ModeAsync)
		if err != nil {
			logger.Warn("ingestion submit failed", "symbol", symbol, "error", err)
			continue
		}
		logger.Debug("ingestion submitted", "symbol", symbol, "run", status.ID)
	}
}
