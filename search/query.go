// Package search answers semantic similarity queries over the content
// store, with a short-TTL result cache in front of the scoring path.
package search

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/c360/marketsearch/content"
	"github.com/c360/marketsearch/errors"
)

const (
	// DefaultThreshold is applied when a query leaves the similarity
	// threshold unset (zero).
	DefaultThreshold = 0.7

	// DefaultLimit is applied when a query leaves the limit unset.
	DefaultLimit = 10

	// MaxLimit bounds the number of results a single query may request.
	MaxLimit = 100
)

// Query describes a similarity search. Zero-valued Threshold and Limit
// take the package defaults during Normalize.
type Query struct {
	Text      string         `json:"text"`
	Symbols   []string       `json:"symbols,omitempty"`
	Types     []content.Type `json:"types,omitempty"`
	From      *time.Time     `json:"from,omitempty"`
	To        *time.Time     `json:"to,omitempty"`
	Threshold float64        `json:"threshold"`
	Limit     int            `json:"limit"`
}

// Normalize canonicalizes the query in place: symbols are upper-cased,
// deduplicated and sorted, types sorted, date bounds converted to UTC,
// and unset threshold/limit replaced with defaults. Normalizing twice
// is a no-op.
func (q *Query) Normalize() {
	if q.Threshold == 0 {
		q.Threshold = DefaultThreshold
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}

	seen := make(map[string]struct{}, len(q.Symbols))
	symbols := make([]string, 0, len(q.Symbols))
	for _, sym := range q.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	q.Symbols = symbols

	sort.Slice(q.Types, func(i, j int) bool { return q.Types[i] < q.Types[j] })

	if q.From != nil {
		utc := q.From.UTC()
		q.From = &utc
	}
	if q.To != nil {
		utc := q.To.UTC()
		q.To = &utc
	}
}

// Validate rejects malformed queries before any engine work. The query
// should be normalized first.
func (q *Query) Validate() error {
	invalid := func(msg string) error {
		return errors.WrapInvalid(errors.ErrInvalidQuery, "search", "Validate", msg)
	}
	if strings.TrimSpace(q.Text) == "" {
		return invalid("query text must not be empty")
	}
	if q.Threshold < 0 || q.Threshold > 1 {
		return invalid(fmt.Sprintf("threshold must be within [0,1], got %g", q.Threshold))
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return invalid(fmt.Sprintf("limit must be within [1,%d], got %d", MaxLimit, q.Limit))
	}
	for _, typ := range q.Types {
		if !typ.Valid() {
			return invalid(fmt.Sprintf("unknown content type: %q", typ))
		}
	}
	return nil
}

// Key returns the deterministic cache key for the query:
// "search:" plus the first 16 hex characters of the SHA-256 of its
// canonical JSON form. Queries that normalize identically share a key.
func (q *Query) Key() string {
	canonical := struct {
		Text      string         `json:"text"`
		Symbols   []string       `json:"symbols"`
		Types     []content.Type `json:"types"`
		From      string         `json:"from"`
		To        string         `json:"to"`
		Threshold float64        `json:"threshold"`
		Limit     int            `json:"limit"`
	}{
		Text:      content.NormalizeText(q.Text),
		Symbols:   q.Symbols,
		Types:     q.Types,
		Threshold: q.Threshold,
		Limit:     q.Limit,
	}
	if q.From != nil {
		canonical.From = q.From.UTC().Format(time.RFC3339)
	}
	if q.To != nil {
		canonical.To = q.To.UTC().Format(time.RFC3339)
	}

	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return "search:" + hex.EncodeToString(sum[:])[:16]
}

// Result is a single scored search hit.
type Result struct {
	ContentID string           `json:"content_id"`
	Type      content.Type     `json:"type"`
	Symbol    string           `json:"symbol,omitempty"`
	Score     float64          `json:"score"`
	Snippet   string           `json:"snippet"`
	Metadata  content.Metadata `json:"metadata,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
