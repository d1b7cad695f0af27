package proof

import (
	"fmt"

	"github.com/papercomputeco/proofpilot/pkg/document"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
)

// Generated is the handle a service returns for one candidate: the current
// Version plus the lineage of NonValid versions it was derived from.
type Generated struct {
	version  *Version
	previous []*Version

	Hole            document.Hole
	ContextTheorems []document.Theorem
	Params          modelparams.ModelParams
}

// NewGenerated wraps v. previous lists the ancestors of v, oldest first; the
// last one must be v's parent and every one must be NonValid.
func NewGenerated(v *Version, previous []*Version, hole document.Hole, theorems []document.Theorem, params modelparams.ModelParams) (*Generated, error) {
	for _, p := range previous {
		if p.State() != NonValid {
			return nil, fmt.Errorf("%w: ancestor %s is %s", ErrInvariant, p.ID(), p.State())
		}
	}
	if n := len(previous); n > 0 && previous[n-1].ID() != v.ParentID() {
		return nil, fmt.Errorf("%w: version %s does not derive from %s", ErrInvariant, v.ID(), previous[n-1].ID())
	}
	if len(previous) == 0 && v.ParentID() != "" {
		return nil, fmt.Errorf("%w: version %s has a parent but no lineage", ErrInvariant, v.ID())
	}
	return &Generated{
		version:         v,
		previous:        previous,
		Hole:            hole,
		ContextTheorems: theorems,
		Params:          params,
	}, nil
}

func (g *Generated) Version() *Version { return g.version }
func (g *Generated) Text() string      { return g.version.Text() }

// Validate applies verdict to the current version.
func (g *Generated) Validate(verdict Verdict) error {
	return g.version.Validate(verdict)
}

// Versions returns the lineage including the current version, oldest first.
func (g *Generated) Versions() []*Version {
	out := make([]*Version, 0, len(g.previous)+1)
	out = append(out, g.previous...)
	return append(out, g.version)
}

// CanBeFixed reports whether the current version is a repair target.
func (g *Generated) CanBeFixed() bool {
	return g.version.State() == NonValid
}

// FixTargets returns at most limit of the most recent versions to show the
// model in a repair request, oldest first.
func (g *Generated) FixTargets(limit int) ([]*Version, error) {
	if !g.CanBeFixed() {
		return nil, fmt.Errorf("%w: cannot fix a %s proof", ErrInvariant, g.version.State())
	}
	all := g.Versions()
	if limit < len(all) {
		all = all[len(all)-limit:]
	}
	return all, nil
}
