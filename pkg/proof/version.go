// Package proof models generated proof candidates, their validation state and
// the repair lineage that links a failed candidate to the round that tried to
// fix it.
package proof

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/papercomputeco/proofpilot/pkg/llm"
)

// ErrInvariant is wrapped by every violation of the proof state machine.
var ErrInvariant = errors.New("proof invariant violated")

// State is the explicit validation tag of a Version.
type State int

const (
	NonValidated State = iota
	Valid
	NonValid
)

func (s State) String() string {
	switch s {
	case NonValidated:
		return "non-validated"
	case Valid:
		return "valid"
	case NonValid:
		return "non-valid"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Verdict is the checker's judgment of one candidate. Diagnostic is set iff
// the candidate is not valid.
type Verdict struct {
	IsValid    bool   `json:"isValid"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// ValidVerdict accepts a candidate.
func ValidVerdict() Verdict {
	return Verdict{IsValid: true}
}

// InvalidVerdict rejects a candidate with the checker's diagnostic.
func InvalidVerdict(diagnostic string) Verdict {
	return Verdict{Diagnostic: diagnostic}
}

func (v Verdict) check() error {
	if v.IsValid && v.Diagnostic != "" {
		return fmt.Errorf("%w: valid verdict carries a diagnostic", ErrInvariant)
	}
	if !v.IsValid && strings.TrimSpace(v.Diagnostic) == "" {
		return fmt.Errorf("%w: non-valid verdict without a diagnostic", ErrInvariant)
	}
	return nil
}

// Length measures a proof's text.
type Length struct {
	InSymbols int `json:"inSymbols"`
	InSteps   int `json:"inSteps"`
}

// Measure counts runes and "."-separated steps of proof.
func Measure(proof string) Length {
	return Length{
		InSymbols: len([]rune(proof)),
		InSteps:   len(strings.Split(proof, ".")),
	}
}

// Version is one attempt in a repair chain. It starts NonValidated and
// receives exactly one verdict.
type Version struct {
	id     string
	parent string
	raw    llm.GeneratedRawContentItem
	text   string

	state      State
	diagnostic string
}

// NewVersion creates a NonValidated version. text is the post-processed proof
// derived from raw; parentID names the NonValid version this one repairs, or
// is empty for a first-round candidate.
func NewVersion(raw llm.GeneratedRawContentItem, text, parentID string) *Version {
	return &Version{
		id:     uuid.NewString(),
		parent: parentID,
		raw:    raw,
		text:   text,
	}
}

func (v *Version) ID() string                        { return v.id }
func (v *Version) ParentID() string                  { return v.parent }
func (v *Version) Raw() llm.GeneratedRawContentItem  { return v.raw }
func (v *Version) Text() string                      { return v.text }
func (v *Version) State() State                      { return v.state }
func (v *Version) TokensSpent() llm.GenerationTokens { return v.raw.TokensSpent }
func (v *Version) Length() Length                    { return Measure(v.text) }
func (v *Version) IsValidated() bool                 { return v.state != NonValidated }

// Diagnostic returns the checker diagnostic of a NonValid version.
func (v *Version) Diagnostic() (string, bool) {
	if v.state != NonValid {
		return "", false
	}
	return v.diagnostic, true
}

// Validate applies the checker's verdict. It is the only state transition and
// may happen once.
func (v *Version) Validate(verdict Verdict) error {
	if v.state != NonValidated {
		return fmt.Errorf("%w: version %s is already %s", ErrInvariant, v.id, v.state)
	}
	if err := verdict.check(); err != nil {
		return err
	}
	if verdict.IsValid {
		v.state = Valid
		return nil
	}
	v.state = NonValid
	v.diagnostic = verdict.Diagnostic
	return nil
}

type versionJSON struct {
	ID          string               `json:"id"`
	ParentID    string               `json:"parentId,omitempty"`
	Proof       string               `json:"proof"`
	State       State                `json:"state"`
	Diagnostic  string               `json:"diagnostic,omitempty"`
	TokensSpent llm.GenerationTokens `json:"tokensSpent"`
	Length      Length               `json:"length"`
}

// MarshalJSON renders the result-side view of v.
func (v *Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(versionJSON{
		ID:          v.id,
		ParentID:    v.parent,
		Proof:       v.text,
		State:       v.state,
		Diagnostic:  v.diagnostic,
		TokensSpent: v.raw.TokensSpent,
		Length:      v.Length(),
	})
}
