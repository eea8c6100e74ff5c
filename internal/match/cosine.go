// Package match assigns captures to collections by embedding similarity.
package match

import (
	"fmt"
	"math"
)

// CosineSimilarity computes the cosine similarity between two equal-length
// vectors. The result is symmetric and lies in [-1, 1]. Vectors of different
// dimensions are a caller bug and return an error; a zero-norm vector yields
// a similarity of 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions must match: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
