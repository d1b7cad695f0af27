package ranker

import (
	"cmp"
	"context"
	"slices"

	"github.com/papercomputeco/proofpilot/pkg/document"
)

// ByDistance ranks the theorems that end before the hole first, nearest
// first, then the theorems that end after it, also nearest first.
type ByDistance struct{}

func (ByDistance) Rank(_ context.Context, theorems []document.Theorem, hole document.Hole) ([]document.Theorem, error) {
	out := slices.Clone(theorems)
	slices.SortStableFunc(out, func(a, b document.Theorem) int {
		da, db := lineDistance(a, hole), lineDistance(b, hole)
		if c := cmp.Compare(side(da), side(db)); c != 0 {
			return c
		}
		return cmp.Compare(abs(da), abs(db))
	})
	return out, nil
}

// lineDistance is negative for theorems that end after the hole line.
func lineDistance(t document.Theorem, hole document.Hole) int {
	return hole.Position.Line - t.End.Line
}

// side orders theorems before the hole (0) ahead of those after it (1).
func side(distance int) int {
	if distance < 0 {
		return 1
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
