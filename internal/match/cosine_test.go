package match

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	v := []float64{0.3, -0.5, 0.8}
	score, err := CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestCosineSimilarityOppositeVectors(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{-1, -2, -3}
	score, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, score, 1e-9)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	score, err := CosineSimilarity([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-9)
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float64{0.1, 0.9, -0.4, 0.2}
	b := []float64{-0.7, 0.3, 0.5, 0.8}
	ab, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	ba, err := CosineSimilarity(b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions must match")
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	score, err := CosineSimilarity([]float64{0, 0, 0}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestCosineSimilarityBounded(t *testing.T) {
	a := []float64{3.7, -1.2, 0.05, 9.9}
	b := []float64{-2.1, 4.4, 0.3, -0.8}
	score, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	assert.LessOrEqual(t, math.Abs(score), 1.0+1e-9)
}
