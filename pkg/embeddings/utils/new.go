// Package embeddingutils builds the embedder selected by the [embedding]
// config section.
package embeddingutils

import (
	"fmt"

	"github.com/papercomputeco/proofpilot/pkg/embeddings"
	"github.com/papercomputeco/proofpilot/pkg/embeddings/ollama"
)

const ProviderOllama = "ollama"

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	KeepAlive    string
}

// NewEmbedder returns the embedder for o.ProviderType; "" means Ollama.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case ProviderOllama, "":
		return ollama.New(ollama.Config{
			BaseURL:   o.TargetURL,
			Model:     o.Model,
			KeepAlive: o.KeepAlive,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", o.ProviderType)
	}
}
