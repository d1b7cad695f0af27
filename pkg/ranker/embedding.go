package ranker

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/papercomputeco/proofpilot/pkg/document"
	"github.com/papercomputeco/proofpilot/pkg/embeddings"
)

// Similarity scores two vectors; larger is more similar.
type Similarity func(a, b []float32) float64

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either is a zero vector or their dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// NegativeEuclideanDistance returns -|a - b|, so closer vectors score higher.
func NegativeEuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(-1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return -math.Sqrt(sum)
}

// Embedding ranks theorems by the similarity of embedded goal statements.
// Theorem embeddings are cached by statement for the ranker's lifetime.
type Embedding struct {
	embedder   embeddings.Embedder
	similarity Similarity

	mu    sync.Mutex
	cache map[string][]float32
}

func NewEmbedding(embedder embeddings.Embedder, similarity Similarity) *Embedding {
	return &Embedding{
		embedder:   embedder,
		similarity: similarity,
		cache:      map[string][]float32{},
	}
}

func (e *Embedding) Rank(ctx context.Context, theorems []document.Theorem, hole document.Hole) ([]document.Theorem, error) {
	if len(theorems) == 0 {
		return nil, nil
	}

	texts := make([]string, len(theorems))
	for i, t := range theorems {
		texts[i] = t.InitialGoal.AsTheorem()
	}
	if err := e.warm(ctx, texts); err != nil {
		return nil, err
	}

	goalVec, err := e.embedder.Embed(ctx, hole.Goal.AsTheorem())
	if err != nil {
		return nil, fmt.Errorf("embedding hole goal: %w", err)
	}

	scores := make(map[string]float64, len(theorems))
	for i, t := range theorems {
		vec, err := e.embed(ctx, texts[i])
		if err != nil {
			return nil, fmt.Errorf("embedding theorem %s: %w", t.Name, err)
		}
		scores[texts[i]] = e.similarity(goalVec, vec)
	}

	out := slices.Clone(theorems)
	slices.SortStableFunc(out, func(a, b document.Theorem) int {
		return cmp.Compare(scores[b.InitialGoal.AsTheorem()], scores[a.InitialGoal.AsTheorem()])
	})
	return out, nil
}

// warm fills the cache for texts in a single call when the embedder batches.
func (e *Embedding) warm(ctx context.Context, texts []string) error {
	batcher, ok := e.embedder.(embeddings.BatchEmbedder)
	if !ok {
		return nil
	}

	e.mu.Lock()
	var missing []string
	seen := map[string]bool{}
	for _, t := range texts {
		if _, cached := e.cache[t]; !cached && !seen[t] {
			seen[t] = true
			missing = append(missing, t)
		}
	}
	e.mu.Unlock()
	if len(missing) == 0 {
		return nil
	}

	vecs, err := batcher.EmbedBatch(ctx, missing)
	if err != nil {
		return fmt.Errorf("embedding theorems: %w", err)
	}

	e.mu.Lock()
	for i, t := range missing {
		e.cache[t] = vecs[i]
	}
	e.mu.Unlock()
	return nil
}

func (e *Embedding) embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	vec, ok := e.cache[text]
	e.mu.Unlock()
	if ok {
		return vec, nil
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[text] = vec
	e.mu.Unlock()
	return vec, nil
}
