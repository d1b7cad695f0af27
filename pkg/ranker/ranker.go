// Package ranker orders candidate context theorems by relevance to a hole.
//
// Every strategy satisfies the same Ranker contract so the completion loop
// stays strategy-agnostic. Rankers never mutate their input slice and are
// total on any finite input: no candidates in, no candidates out.
package ranker

import (
	"context"
	"fmt"

	"github.com/papercomputeco/proofpilot/pkg/document"
	"github.com/papercomputeco/proofpilot/pkg/embeddings"
)

// Ranker orders theorems, most relevant first.
//
// Every theorem passed in must have an initial goal; callers filter with
// document.Theorem.Rankable beforehand.
type Ranker interface {
	Rank(ctx context.Context, theorems []document.Theorem, hole document.Hole) ([]document.Theorem, error)
}

// Type names a ranking strategy in configuration.
type Type string

const (
	JaccardIndex Type = "jaccardIndex"
	Distance     Type = "distance"
	Random       Type = "random"
	Euclidean    Type = "euclidean"
	Cosine       Type = "cosine"
)

// Options carry what some strategies need beyond the theorems.
type Options struct {
	// Seed for the random strategy.
	Seed uint64

	// Embedder for the euclidean and cosine strategies.
	Embedder embeddings.Embedder
}

// New returns the ranker for t.
func New(t Type, opts Options) (Ranker, error) {
	switch t {
	case JaccardIndex, "":
		return Jaccard{}, nil
	case Distance:
		return ByDistance{}, nil
	case Random:
		return NewShuffle(opts.Seed), nil
	case Euclidean, Cosine:
		if opts.Embedder == nil {
			return nil, fmt.Errorf("%s ranker requires an embedder", t)
		}
		metric := CosineSimilarity
		if t == Euclidean {
			metric = NegativeEuclideanDistance
		}
		return NewEmbedding(opts.Embedder, metric), nil
	default:
		return nil, fmt.Errorf("unknown ranker type %q", t)
	}
}
