// Package document holds the proof-language facts proofpilot consumes from the
// source collaborator: goals, in-scope theorems and the holes to fill. Nothing
// here parses proof-language source text.
package document

import (
	"fmt"
	"strings"
)

// Position is a zero-based line/character location in a source file.
type Position struct {
	Line      int `json:"line" validate:"gte=0"`
	Character int `json:"character" validate:"gte=0"`
}

// Before reports whether p comes strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

// Hypothesis is one named assumption of a goal. Several names may share a type.
type Hypothesis struct {
	Names []string `json:"names" validate:"min=1,dive,required"`
	Type  string   `json:"type" validate:"required"`
}

func (h Hypothesis) String() string {
	return strings.Join(h.Names, " ") + " : " + h.Type
}

// Goal is a proof obligation: hypotheses plus the conclusion to prove.
type Goal struct {
	Hyps       []Hypothesis `json:"hyps" validate:"dive"`
	Conclusion string       `json:"conclusion" validate:"required"`
}

// AsTheorem renders g as an auxiliary theorem statement,
// "(x y : T) (h : P) # concl.".
func (g Goal) AsTheorem() string {
	hyps := make([]string, len(g.Hyps))
	for i, h := range g.Hyps {
		hyps[i] = "(" + h.String() + ")"
	}
	return fmt.Sprintf("%s # %s.", strings.Join(hyps, " "), g.Conclusion)
}

// Theorem is a proved (or admitted) statement of a document.
type Theorem struct {
	Name      string `json:"name" validate:"required"`
	Statement string `json:"statement" validate:"required"`
	Proof     string `json:"proof,omitempty"`

	// InitialGoal is the goal at the start of the proof. Rankers need it; a
	// theorem without one is never offered as context.
	InitialGoal *Goal `json:"initialGoal,omitempty"`

	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Rankable reports whether t can be scored by a ranker and shown to a model.
func (t *Theorem) Rankable() bool {
	return t.InitialGoal != nil && strings.TrimSpace(t.Proof) != ""
}

// Hole is an incomplete proof location requiring a generated proof.
type Hole struct {
	ID string `json:"id"`

	// Theorem names the theorem whose proof contains the hole.
	Theorem  string   `json:"theorem" validate:"required"`
	Position Position `json:"position"`
	Goal     Goal     `json:"goal"`
}
