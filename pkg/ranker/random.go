package ranker

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/papercomputeco/proofpilot/pkg/document"
)

// Shuffle ranks theorems in a pseudo-random order. Equal seeds give equal
// sequences of orders.
type Shuffle struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewShuffle(seed uint64) *Shuffle {
	return &Shuffle{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Shuffle) Rank(_ context.Context, theorems []document.Theorem, _ document.Hole) ([]document.Theorem, error) {
	out := slices.Clone(theorems)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out, nil
}
