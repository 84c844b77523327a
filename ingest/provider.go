// Package ingest fetches unstructured financial content, scores it,
// embeds it and persists it into the content store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/c360/marketsearch/errors"
)

// RawItem is a single piece of fetched content before scoring.
type RawItem struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Symbols     []string  `json:"symbols,omitempty"`
}

// Text returns the combined title and body used for fingerprinting and
// embedding.
func (i RawItem) Text() string {
	if i.Body == "" {
		return i.Title
	}
	return i.Title + ". " + i.Body
}

// Provider fetches raw content. An empty symbol requests content for
// all tracked symbols.
type Provider interface {
	FetchNews(ctx context.Context, symbol string) ([]RawItem, error)
}

// RSSProvider fetches items from configured RSS/Atom feeds, extracting
// ticker symbols from titles and descriptions. Feeds are fetched
// concurrently; individual feed failures are logged and skipped unless
// every feed fails.
type RSSProvider struct {
	feeds  []string
	maxAge time.Duration
	parser *gofeed.Parser
	logger *slog.Logger
}

// RSSConfig configures the RSS provider.
type RSSConfig struct {
	// FeedURLs lists the feeds to poll.
	FeedURLs []string `yaml:"feed_urls"`

	// MaxAge drops items older than this (default 7 days).
	MaxAge time.Duration `yaml:"max_age"`

	// Logger defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// NewRSSProvider creates an RSS content provider.
func NewRSSProvider(cfg RSSConfig) (*RSSProvider, error) {
	if len(cfg.FeedURLs) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "ingest", "NewRSSProvider", "at least one feed URL is required")
	}

	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = 7 * 24 * time.Hour
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RSSProvider{
		feeds:  cfg.FeedURLs,
		maxAge: maxAge,
		parser: gofeed.NewParser(),
		logger: logger,
	}, nil
}

// FetchNews fetches all feeds concurrently. A non-empty symbol keeps
// only items mentioning it.
func (p *RSSProvider) FetchNews(ctx context.Context, symbol string) ([]RawItem, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var (
		mu       sync.Mutex
		items    []RawItem
		failures int
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, url := range p.feeds {
		url := url
		g.Go(func() error {
			feedItems, err := p.fetchFeed(ctx, url)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				p.logger.Warn("feed fetch failed", "url", url, "error", err)
				// A single bad feed must not sink the whole fetch.
				return nil
			}
			items = append(items, feedItems...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failures == len(p.feeds) {
		return nil, errors.WrapTransient(errors.ErrProviderUnavailable, "ingest", "FetchNews",
			fmt.Sprintf("all %d feeds failed", failures))
	}

	if symbol == "" {
		return items, nil
	}

	filtered := items[:0]
	for _, item := range items {
		for _, sym := range item.Symbols {
			if sym == symbol {
				filtered = append(filtered, item)
				break
			}
		}
	}
	return filtered, nil
}

func (p *RSSProvider) fetchFeed(ctx context.Context, url string) ([]RawItem, error) {
	feed, err := p.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}

	now := time.Now()
	oldest := now.Add(-p.maxAge)
	source := feed.Title
	if source == "" {
		source = url
	}

	items := make([]RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		published := now
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}
		if published.Before(oldest) {
			continue
		}

		body := entry.Description
		if body == "" {
			body = entry.Content
		}
		body = StripHTML(body)

		item := RawItem{
			Title:       strings.TrimSpace(entry.Title),
			Body:        body,
			URL:         entry.Link,
			Source:      source,
			PublishedAt: published,
		}
		item.Symbols = ExtractSymbols(item.Title + " " + item.Body)
		items = append(items, item)
	}
	return items, nil
}
