// Package provider turns generation requests into calls to a language model
// backend. Each backend variant lives in its own subpackage and implements
// Provider; Service wraps a Provider with request pacing, error normalization
// and generations logging.
package provider

import (
	"context"

	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
)

// Provider is one backend variant.
type Provider interface {
	// Name returns the backend's service identifier.
	Name() modelparams.ServiceID

	// Generate asks the backend for choices completions of chat. It returns
	// the completions in backend order plus the tokens spent by the whole
	// call. params are always of the backend's own variant.
	Generate(ctx context.Context, chat llm.ChatHistory, params modelparams.ModelParams, choices int) ([]llm.GeneratedRawContentItem, llm.GenerationTokens, error)
}
