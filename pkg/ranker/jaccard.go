package ranker

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/papercomputeco/proofpilot/pkg/document"
)

// Jaccard ranks theorems by the Jaccard index of their initial goal tokens
// against the hole's goal tokens.
type Jaccard struct{}

// Rank sorts a copy of theorems by descending index; ties keep input order.
func (Jaccard) Rank(_ context.Context, theorems []document.Theorem, hole document.Hole) ([]document.Theorem, error) {
	goalTokens := Tokens(hole.Goal)

	type scored struct {
		theorem document.Theorem
		score   float64
	}
	items := make([]scored, len(theorems))
	for i, t := range theorems {
		items[i] = scored{theorem: t, score: JaccardIndexOf(goalTokens, Tokens(*t.InitialGoal))}
	}

	slices.SortStableFunc(items, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	out := make([]document.Theorem, len(items))
	for i, it := range items {
		out[i] = it.theorem
	}
	return out, nil
}

var punctuation = strings.NewReplacer("(", "", ")", "", ".", "", "\n", "")

// Tokens splits the auxiliary theorem form of g on spaces, drops the "#" and
// ":" separators and strips parentheses, periods and newlines.
func Tokens(g document.Goal) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, raw := range strings.Split(g.AsTheorem(), " ") {
		if raw == "" || raw == "#" || raw == ":" {
			continue
		}
		tokens[punctuation.Replace(raw)] = struct{}{}
	}
	return tokens
}

// JaccardIndexOf returns |a ∩ b| / |a ∪ b|, or 0 when both sets are empty.
func JaccardIndexOf(a, b map[string]struct{}) float64 {
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
