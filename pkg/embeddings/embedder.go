// Package embeddings turns goal statements into vectors for similarity-based
// theorem ranking.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding is wrapped by every embedder failure.
var ErrEmbedding = errors.New("embedding failed")

// Embedder embeds one text at a time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}

// BatchEmbedder is implemented by embedders that can embed many texts in one
// call. The result has one vector per input, in input order.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
