package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Document is one source file as described by the source collaborator.
type Document struct {
	URI      string    `json:"uri" validate:"required"`
	Theorems []Theorem `json:"theorems" validate:"dive"`
	Holes    []Hole    `json:"holes" validate:"dive"`
}

// Source is the holes file consumed by the complete command.
type Source struct {
	Documents []Document `json:"documents" validate:"min=1,dive"`
}

// Target is one hole with everything needed to complete it.
type Target struct {
	URI  string
	Hole Hole

	// Theorems are the rankable theorems in scope for the hole.
	Theorems []Theorem
}

// Load reads and validates a holes file.
func Load(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening holes file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads and validates a holes document from r. Holes without an id are
// assigned a random one.
func Decode(r io.Reader) (*Source, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var src Source
	if err := dec.Decode(&src); err != nil {
		return nil, fmt.Errorf("decoding holes file: %w", err)
	}
	if err := validate.Struct(&src); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid holes file: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("invalid holes file: %w", err)
	}

	seen := map[string]bool{}
	for d := range src.Documents {
		holes := src.Documents[d].Holes
		for h := range holes {
			if holes[h].ID == "" {
				holes[h].ID = uuid.NewString()
			}
			if seen[holes[h].ID] {
				return nil, fmt.Errorf("invalid holes file: duplicate hole id %q", holes[h].ID)
			}
			seen[holes[h].ID] = true
		}
	}
	return &src, nil
}

// Targets flattens src into completion targets in document order.
func (src *Source) Targets() []Target {
	var targets []Target
	for _, doc := range src.Documents {
		for _, hole := range doc.Holes {
			targets = append(targets, Target{
				URI:      doc.URI,
				Hole:     hole,
				Theorems: doc.TheoremsInScope(hole),
			})
		}
	}
	return targets
}

// TheoremsInScope returns the rankable theorems that end before hole, leaving
// out the theorem the hole belongs to.
func (d *Document) TheoremsInScope(hole Hole) []Theorem {
	var out []Theorem
	for _, t := range d.Theorems {
		if t.Name == hole.Theorem || !t.Rankable() {
			continue
		}
		if !t.End.Before(hole.Position) {
			continue
		}
		out = append(out, t)
	}
	return out
}
