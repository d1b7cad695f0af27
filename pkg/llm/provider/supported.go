package provider

import (
	"fmt"

	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
	"github.com/papercomputeco/proofpilot/pkg/llm/provider/grazie"
	"github.com/papercomputeco/proofpilot/pkg/llm/provider/lmstudio"
	"github.com/papercomputeco/proofpilot/pkg/llm/provider/openai"
	"github.com/papercomputeco/proofpilot/pkg/llm/provider/predefined"
)

type options struct {
	agentName    string
	agentVersion string
}

// Option configures the providers built by New.
type Option func(*options)

// WithAgent sets the client name reported to backends that ask for one.
func WithAgent(name, version string) Option {
	return func(o *options) {
		o.agentName = name
		o.agentVersion = version
	}
}

// New creates the Provider for a service identifier. Unknown identifiers are
// rejected here rather than at first use.
func New(service modelparams.ServiceID, opts ...Option) (Provider, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	switch service {
	case modelparams.PredefinedProofs:
		return predefined.New(), nil
	case modelparams.OpenAI:
		return openai.New(), nil
	case modelparams.Grazie:
		var gopts []grazie.Option
		if o.agentName != "" {
			gopts = append(gopts, grazie.WithAgent(o.agentName, o.agentVersion))
		}
		return grazie.New(gopts...), nil
	case modelparams.LMStudio:
		return lmstudio.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", service, modelparams.SupportedServices())
	}
}
