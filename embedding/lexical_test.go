package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	embedder := NewLexicalEmbedder(LexicalConfig{})
	defer embedder.Close()

	first, err := embedder.Generate(ctx, []string{"apple earnings beat expectations"})
	require.NoError(t, err)
	second, err := embedder.Generate(ctx, []string{"apple earnings beat expectations"})
	require.NoError(t, err)

	assert.Equal(t, first[0], second[0])
}

func TestLexicalEmbedderSimilarTextsScoreHigher(t *testing.T) {
	ctx := context.Background()
	embedder := NewLexicalEmbedder(LexicalConfig{})
	defer embedder.Close()

	vectors, err := embedder.Generate(ctx, []string{
		"apple quarterly earnings report strong revenue",
		"apple earnings report shows strong quarterly revenue",
		"weather forecast predicts rain tomorrow",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	related := CosineSimilarity(vectors[0], vectors[1])
	unrelated := CosineSimilarity(vectors[0], vectors[2])
	assert.Greater(t, related, unrelated)
}

func TestLexicalEmbedderNormalized(t *testing.T) {
	ctx := context.Background()
	embedder := NewLexicalEmbedder(LexicalConfig{Dimensions: 64})
	defer embedder.Close()

	vectors, err := embedder.Generate(ctx, []string{"some nonempty text"})
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vectors[0] {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sumSquares, 1e-5)
}

func TestLexicalEmbedderEmptyText(t *testing.T) {
	ctx := context.Background()
	embedder := NewLexicalEmbedder(LexicalConfig{Dimensions: 16})
	defer embedder.Close()

	vectors, err := embedder.Generate(ctx, []string{""})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, make([]float32, 16), vectors[0])
}

func TestLexicalEmbedderEmptyBatch(t *testing.T) {
	vectors, err := NewLexicalEmbedder(LexicalConfig{}).Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestLexicalEmbedderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLexicalEmbedder(LexicalConfig{}).Generate(ctx, []string{"text"})
	assert.ErrorIs(t, err, context.Canceled)
}
