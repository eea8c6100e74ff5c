package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns canned vectors per text and counts calls, so tests
// can verify the cache short-circuits repeat lookups.
type stubEmbedder struct {
	vectors map[string][]float64
	calls   int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.calls++
	vec, ok := e.vectors[text]
	if !ok {
		return nil, errors.New("no vector for text")
	}
	return vec, nil
}

func (e *stubEmbedder) Model() string { return "stub" }

func TestResolveMatchesAboveThreshold(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"a post about goroutines": {1, 0, 0},
	}}
	m, err := NewMatcher(embedder, 0.5)
	require.NoError(t, err)
	m.SetCandidates("user-1", []Candidate{
		{Name: "golang", Embedding: []float64{0.9, 0.1, 0}},
		{Name: "cooking", Embedding: []float64{0, 0, 1}},
	})

	name, matched := m.Resolve(context.Background(), "user-1", "go-stuff", "a post about goroutines")
	assert.True(t, matched)
	assert.Equal(t, "golang", name)
}

func TestResolveKeepsSuggestionBelowThreshold(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"unrelated text": {0, 1, 0},
	}}
	m, err := NewMatcher(embedder, 0.9)
	require.NoError(t, err)
	m.SetCandidates("user-1", []Candidate{{Name: "golang", Embedding: []float64{1, 0, 0}}})

	name, matched := m.Resolve(context.Background(), "user-1", "misc", "unrelated text")
	assert.False(t, matched)
	assert.Equal(t, "misc", name)
}

func TestResolveScopedToUser(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"weekend trip ideas": {1, 0, 0},
	}}
	m, err := NewMatcher(embedder, 0.5)
	require.NoError(t, err)
	m.SetCandidates("alice", []Candidate{{Name: "travel", Embedding: []float64{1, 0, 0}}})
	m.SetCandidates("bob", []Candidate{{Name: "secret-plans", Embedding: []float64{1, 0, 0}}})

	// Alice resolves against her own collections only.
	name, matched := m.Resolve(context.Background(), "alice", "misc", "weekend trip ideas")
	assert.True(t, matched)
	assert.Equal(t, "travel", name)

	// A user with no candidates keeps the suggestion even though another
	// user's list would have matched.
	name, matched = m.Resolve(context.Background(), "carol", "misc", "weekend trip ideas")
	assert.False(t, matched)
	assert.Equal(t, "misc", name)
}

func TestSetCandidatesEmptyClearsUser(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{"text": {1, 0}}}
	m, err := NewMatcher(embedder, 0.5)
	require.NoError(t, err)
	m.SetCandidates("user-1", []Candidate{{Name: "golang", Embedding: []float64{1, 0}}})
	m.SetCandidates("user-1", nil)

	name, matched := m.Resolve(context.Background(), "user-1", "suggested", "text")
	assert.False(t, matched)
	assert.Equal(t, "suggested", name)
}

func TestResolveWithoutEmbedder(t *testing.T) {
	m, err := NewMatcher(nil, 0)
	require.NoError(t, err)
	m.SetCandidates("user-1", []Candidate{{Name: "golang", Embedding: []float64{1, 0}}})

	name, matched := m.Resolve(context.Background(), "user-1", "suggested", "text")
	assert.False(t, matched)
	assert.Equal(t, "suggested", name)
}

func TestResolveWithoutCandidates(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{"text": {1, 0}}}
	m, err := NewMatcher(embedder, 0)
	require.NoError(t, err)

	name, matched := m.Resolve(context.Background(), "user-1", "suggested", "text")
	assert.False(t, matched)
	assert.Equal(t, "suggested", name)
	assert.Zero(t, embedder.calls)
}

func TestResolveEmbeddingFailureKeepsSuggestion(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{}}
	m, err := NewMatcher(embedder, 0)
	require.NoError(t, err)
	m.SetCandidates("user-1", []Candidate{{Name: "golang", Embedding: []float64{1, 0}}})

	name, matched := m.Resolve(context.Background(), "user-1", "suggested", "anything")
	assert.False(t, matched)
	assert.Equal(t, "suggested", name)
}

func TestResolveSkipsMismatchedCandidates(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{"text": {1, 0, 0}}}
	m, err := NewMatcher(embedder, 0.5)
	require.NoError(t, err)
	m.SetCandidates("user-1", []Candidate{
		{Name: "stale", Embedding: []float64{1, 0}}, // different embedding model
		{Name: "fresh", Embedding: []float64{1, 0, 0}},
	})

	name, matched := m.Resolve(context.Background(), "user-1", "suggested", "text")
	assert.True(t, matched)
	assert.Equal(t, "fresh", name)
}

func TestEmbeddingCache(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{"text": {1, 0}}}
	m, err := NewMatcher(embedder, 0)
	require.NoError(t, err)
	m.SetCandidates("user-1", []Candidate{{Name: "c", Embedding: []float64{1, 0}}})

	m.Resolve(context.Background(), "user-1", "s", "text")
	m.Resolve(context.Background(), "user-1", "s", "text")
	assert.Equal(t, 1, embedder.calls)
}

func TestEmbedTextsDropsFailures(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"alpha": {1, 0},
		"gamma": {0, 1},
	}}
	m, err := NewMatcher(embedder, 0)
	require.NoError(t, err)

	candidates := m.EmbedTexts(context.Background(), []string{"gamma", "beta", "alpha"})
	require.Len(t, candidates, 2)
	assert.Equal(t, "alpha", candidates[0].Name)
	assert.Equal(t, "gamma", candidates[1].Name)
}
