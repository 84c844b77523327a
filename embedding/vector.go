package embedding

import "math"

// CosineSimilarity computes the cosine similarity between two vectors
// with double-precision accumulation.
//
// Returns a value between -1 and 1. Mismatched lengths and zero-norm
// inputs yield 0 rather than an error; a zero vector is orthogonal to
// everything for ranking purposes.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity is CosineSimilarity clamped to [0,1] for use as a
// ranking score.
func Similarity(a, b []float32) float64 {
	s := CosineSimilarity(a, b)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
