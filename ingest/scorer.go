package ingest

import (
	"context"
	"strings"
)

// Scores carries the pipeline's derived signals for a content item.
type Scores struct {
	// Sentiment within [-1, 1]; 0 is neutral.
	Sentiment float64 `json:"sentiment"`

	// Relevance within [0, 1] with respect to the target symbol.
	Relevance float64 `json:"relevance"`
}

// Scorer derives sentiment and relevance for a text.
type Scorer interface {
	Score(ctx context.Context, text, symbol string) (Scores, error)
}

// positiveTerms and negativeTerms drive the lexical sentiment
// heuristic. Substring matching over lowercased text, matching the
// coarse granularity of headline-length inputs.
var positiveTerms = []string{
	"good", "great", "excellent", "positive", "up", "gain", "profit",
	"bull", "rise", "strong", "growth", "increase", "buy", "bullish",
}

var negativeTerms = []string{
	"bad", "terrible", "negative", "down", "loss", "bear", "fall",
	"weak", "decline", "decrease", "sell", "bearish", "crash", "drop",
}

// companyNames maps well-known tickers to their company names for the
// relevance heuristic.
var companyNames = map[string]string{
	"AAPL":  "apple",
	"GOOGL": "google",
	"MSFT":  "microsoft",
	"AMZN":  "amazon",
	"TSLA":  "tesla",
	"NVDA":  "nvidia",
	"META":  "meta",
	"NFLX":  "netflix",
}

// LexicalScorer scores text with term-list heuristics, requiring no
// external model.
type LexicalScorer struct{}

// NewLexicalScorer creates a lexical scorer.
func NewLexicalScorer() *LexicalScorer { return &LexicalScorer{} }

// Score computes sentiment from the balance of positive and negative
// terms, scaled by text length and clamped to [-1, 1], and relevance
// from symbol or company-name mentions.
func (s *LexicalScorer) Score(ctx context.Context, text, symbol string) (Scores, error) {
	if err := ctx.Err(); err != nil {
		return Scores{}, err
	}
	return Scores{
		Sentiment: sentiment(text),
		Relevance: relevance(text, symbol),
	}, nil
}

func sentiment(text string) float64 {
	lower := strings.ToLower(text)

	var positive, negative int
	for _, term := range positiveTerms {
		if strings.Contains(lower, term) {
			positive++
		}
	}
	for _, term := range negativeTerms {
		if strings.Contains(lower, term) {
			negative++
		}
	}

	totalWords := len(strings.Fields(text))
	if totalWords == 0 {
		return 0
	}

	score := float64(positive-negative) / float64(totalWords) * 10
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}

func relevance(text, symbol string) float64 {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		// General market news with no target symbol.
		return 0.5
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, strings.ToLower(symbol)) {
		return 1.0
	}
	if name, known := companyNames[symbol]; known && strings.Contains(lower, name) {
		return 0.8
	}
	return 0.3
}
