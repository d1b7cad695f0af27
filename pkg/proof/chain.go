package proof

import (
	"fmt"

	"github.com/google/uuid"
)

// Round identifies one generate-then-validate cycle of a hole.
type Round struct {
	ID     string
	Number int

	// Parent is the NonValid version this round repairs; empty for round 1.
	Parent string
}

// Chain records the repair lineage of one hole as an append-only edge map
// from NonValid versions to the round that repairs them. Edges only point to
// rounds with a larger number than the round of their source version, so the
// chain cannot contain a cycle.
//
// A Chain is owned by a single completion task and is not safe for concurrent
// use.
type Chain struct {
	holeID string

	rounds   []Round
	roundIdx map[string]int
	versions map[string]*Version
	roundOf  map[string]string
	next     map[string]string
}

func NewChain(holeID string) *Chain {
	return &Chain{
		holeID:   holeID,
		roundIdx: map[string]int{},
		versions: map[string]*Version{},
		roundOf:  map[string]string{},
		next:     map[string]string{},
	}
}

func (c *Chain) HoleID() string { return c.holeID }

// Rounds returns the rounds in creation order.
func (c *Chain) Rounds() []Round {
	out := make([]Round, len(c.rounds))
	copy(out, c.rounds)
	return out
}

// StartRound opens the next round. parent is nil for the first round and
// must otherwise be a NonValid version of this chain that no round repairs
// yet.
func (c *Chain) StartRound(parent *Version) (Round, error) {
	r := Round{ID: uuid.NewString(), Number: len(c.rounds) + 1}

	if parent == nil {
		if len(c.rounds) > 0 {
			return Round{}, fmt.Errorf("%w: round %d needs a parent version", ErrInvariant, r.Number)
		}
	} else {
		if _, ok := c.versions[parent.ID()]; !ok {
			return Round{}, fmt.Errorf("%w: version %s is not part of hole %s", ErrInvariant, parent.ID(), c.holeID)
		}
		if parent.State() != NonValid {
			return Round{}, fmt.Errorf("%w: cannot repair a %s version", ErrInvariant, parent.State())
		}
		if linked, ok := c.next[parent.ID()]; ok {
			return Round{}, fmt.Errorf("%w: version %s is already repaired by round %s", ErrInvariant, parent.ID(), linked)
		}
		r.Parent = parent.ID()
		c.next[parent.ID()] = r.ID
	}

	c.roundIdx[r.ID] = len(c.rounds)
	c.rounds = append(c.rounds, r)
	return r, nil
}

// AddVersion registers v as a candidate of round.
func (c *Chain) AddVersion(round Round, v *Version) error {
	if _, ok := c.roundIdx[round.ID]; !ok {
		return fmt.Errorf("%w: unknown round %s", ErrInvariant, round.ID)
	}
	if _, ok := c.versions[v.ID()]; ok {
		return fmt.Errorf("%w: version %s registered twice", ErrInvariant, v.ID())
	}
	if v.ParentID() != round.Parent {
		return fmt.Errorf("%w: version %s does not derive from round parent %q", ErrInvariant, v.ID(), round.Parent)
	}
	c.versions[v.ID()] = v
	c.roundOf[v.ID()] = round.ID
	return nil
}

// Next returns the round repairing the version with id, if any.
func (c *Chain) Next(versionID string) (Round, bool) {
	id, ok := c.next[versionID]
	if !ok {
		return Round{}, false
	}
	return c.rounds[c.roundIdx[id]], true
}

// Version looks up a registered version.
func (c *Chain) Version(id string) (*Version, bool) {
	v, ok := c.versions[id]
	return v, ok
}

// Lineage walks parent links back from id and returns the versions oldest
// first, ending with id itself.
func (c *Chain) Lineage(id string) []*Version {
	var out []*Version
	for id != "" {
		v, ok := c.versions[id]
		if !ok {
			break
		}
		out = append(out, v)
		id = v.ParentID()
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Check verifies that every edge points forward.
func (c *Chain) Check() error {
	for from, to := range c.next {
		src := c.rounds[c.roundIdx[c.roundOf[from]]]
		dst := c.rounds[c.roundIdx[to]]
		if dst.Number <= src.Number {
			return fmt.Errorf("%w: edge %s -> round %d does not go forward from round %d", ErrInvariant, from, dst.Number, src.Number)
		}
	}
	return nil
}
