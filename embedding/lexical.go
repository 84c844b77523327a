package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LexicalEmbedder produces deterministic embeddings from term
// frequencies without any external service.
//
// Vectors are built by feature hashing: terms are hashed into a fixed
// number of dimensions, weighted with a saturating term-frequency
// function, then L2 normalized so cosine similarity behaves sensibly.
// It captures lexical overlap, not semantics, and serves as the
// offline fallback and test vehicle.
type LexicalEmbedder struct {
	dimensions int
	k1         float64
}

// LexicalConfig configures the lexical embedder.
type LexicalConfig struct {
	// Dimensions of the output vector (default 256).
	Dimensions int

	// K1 controls term-frequency saturation (default 1.5).
	K1 float64
}

// NewLexicalEmbedder creates a lexical feature-hashing embedder.
func NewLexicalEmbedder(cfg LexicalConfig) *LexicalEmbedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 256
	}
	if cfg.K1 == 0 {
		cfg.K1 = 1.5
	}
	return &LexicalEmbedder{dimensions: cfg.Dimensions, k1: cfg.K1}
}

// Generate creates one embedding per text. Identical texts always
// produce identical vectors.
func (l *LexicalEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		embeddings[i] = l.embed(text)
	}
	return embeddings, nil
}

func (l *LexicalEmbedder) embed(text string) []float32 {
	vector := make([]float32, l.dimensions)

	termFreq := make(map[string]int)
	for _, token := range tokenize(text) {
		termFreq[token]++
	}
	if len(termFreq) == 0 {
		return vector
	}

	for term, tf := range termFreq {
		// Saturating TF weight: tf*(k1+1)/(tf+k1).
		weight := float64(tf) * (l.k1 + 1) / (float64(tf) + l.k1)
		vector[l.hashTerm(term)] += float32(weight)
	}

	l2Normalize(vector)
	return vector
}

// Dimensions returns the embedding dimensionality.
func (l *LexicalEmbedder) Dimensions() int { return l.dimensions }

// Model returns the model identifier.
func (l *LexicalEmbedder) Model() string { return "lexical-fnv" }

// Close releases resources. No-op.
func (l *LexicalEmbedder) Close() error { return nil }

func (l *LexicalEmbedder) hashTerm(term string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return int(h.Sum32() % uint32(l.dimensions))
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// single-character tokens.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() >= 2 {
			tokens = append(tokens, current.String())
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

func l2Normalize(vector []float32) {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] /= norm
	}
}
