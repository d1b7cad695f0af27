// Package predefined implements a backend that replays a fixed tactic list
// instead of calling a model.
package predefined

import (
	"context"

	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
)

type provider struct{}

func New() *provider { return &provider{} }

func (*provider) Name() modelparams.ServiceID {
	return modelparams.PredefinedProofs
}

// Generate returns the first choices tactics, each as its own candidate.
func (*provider) Generate(_ context.Context, _ llm.ChatHistory, params modelparams.ModelParams, choices int) ([]llm.GeneratedRawContentItem, llm.GenerationTokens, error) {
	p, ok := params.(*modelparams.PredefinedProofsParams)
	if !ok {
		return nil, llm.GenerationTokens{}, llm.NewConfigurationError("predefined-proofs backend got %s params", params.Service())
	}
	if choices > len(p.Tactics) {
		return nil, llm.GenerationTokens{}, llm.NewConfigurationError(
			"requested %d choices but only %d tactics are predefined", choices, len(p.Tactics))
	}

	items := make([]llm.GeneratedRawContentItem, choices)
	for i, tactic := range p.Tactics[:choices] {
		items[i] = llm.GeneratedRawContentItem{Content: tactic}
	}
	return items, llm.GenerationTokens{}, nil
}
