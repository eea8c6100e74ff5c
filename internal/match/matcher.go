package match

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scrypster/stash/internal/inference"
)

// DefaultThreshold is the minimum similarity for assigning a capture to an
// existing collection instead of creating a new one.
const DefaultThreshold = 0.55

// embeddingCacheSize bounds the LRU cache of text embeddings. Collection
// names and topic strings repeat heavily, so the hit rate is high.
const embeddingCacheSize = 2048

// Candidate is a collection considered for assignment.
type Candidate struct {
	Name      string
	Embedding []float64
}

// Match is the result of a collection lookup.
type Match struct {
	Name  string
	Score float64
}

// Matcher resolves the best existing collection for a piece of content via
// embedding similarity with an LRU cache in front of the embedding client.
// Candidates are kept per user: collections are private, so one user's
// captures must never resolve against another user's collection names.
type Matcher struct {
	embedder  inference.Embedder
	threshold float64

	mu         sync.RWMutex
	candidates map[string][]Candidate
	cache      *lru.Cache[string, []float64]
}

// NewMatcher creates a Matcher. A threshold <= 0 uses DefaultThreshold.
func NewMatcher(embedder inference.Embedder, threshold float64) (*Matcher, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	cache, err := lru.New[string, []float64](embeddingCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Matcher{
		embedder:   embedder,
		threshold:  threshold,
		candidates: make(map[string][]Candidate),
		cache:      cache,
	}, nil
}

// SetCandidates replaces the known collections for one user. Called by the
// pattern-learning job after recomputing collection embeddings.
func (m *Matcher) SetCandidates(userID string, candidates []Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(candidates) == 0 {
		delete(m.candidates, userID)
		return
	}
	m.candidates[userID] = candidates
}

// Resolve returns the best-matching existing collection of the user for the
// text, or (suggested, false) when nothing clears the threshold; the caller
// then keeps the suggested name and a new collection is created. When the
// embedder is unavailable the suggested name is used as-is: matching is an
// optimization, never a gate.
func (m *Matcher) Resolve(ctx context.Context, userID, suggested, text string) (string, bool) {
	m.mu.RLock()
	candidates := m.candidates[userID]
	m.mu.RUnlock()

	if m.embedder == nil || len(candidates) == 0 {
		return suggested, false
	}

	query, err := m.embedText(ctx, text)
	if err != nil {
		log.Printf("WARNING: collection match embedding failed, keeping %q: %v", suggested, err)
		return suggested, false
	}

	best := Match{Score: -1}
	for _, c := range candidates {
		score, err := CosineSimilarity(query, c.Embedding)
		if err != nil {
			continue // stale candidate from a different embedding model
		}
		if score > best.Score {
			best = Match{Name: c.Name, Score: score}
		}
	}

	if best.Score >= m.threshold {
		return best.Name, true
	}
	return suggested, false
}

// EmbedTexts embeds a batch of texts, returning them in input order.
// Individual failures drop that entry rather than failing the batch.
func (m *Matcher) EmbedTexts(ctx context.Context, texts []string) []Candidate {
	out := make([]Candidate, 0, len(texts))
	for _, text := range texts {
		vec, err := m.embedText(ctx, text)
		if err != nil {
			log.Printf("WARNING: embedding %q failed: %v", text, err)
			continue
		}
		out = append(out, Candidate{Name: text, Embedding: vec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Matcher) embedText(ctx context.Context, text string) ([]float64, error) {
	key := cacheKey(text)
	if vec, ok := m.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.Add(key, vec)
	return vec, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
