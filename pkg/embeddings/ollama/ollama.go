// Package ollama embeds statements with a local Ollama server's /api/embed
// endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/proofpilot/pkg/embeddings"
)

const (
	DefaultModel   = "nomic-embed-text"
	DefaultBaseURL = "http://localhost:11434"
	defaultTimeout = 2 * time.Minute
)

// Config configures an Embedder. Zero values select the defaults.
type Config struct {
	BaseURL string
	Model   string

	// KeepAlive is forwarded to Ollama to keep the model loaded between
	// ranking calls, e.g. "10m".
	KeepAlive string

	HTTPClient *http.Client
}

// Embedder calls Ollama. It implements embeddings.BatchEmbedder.
type Embedder struct {
	endpoint  string
	model     string
	keepAlive string
	client    *http.Client
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)

func New(cfg Config) *Embedder {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Embedder{
		endpoint:  base + "/api/embed",
		model:     model,
		keepAlive: cfg.KeepAlive,
		client:    client,
	}
}

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts, KeepAlive: e.keepAlive})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", embeddings.ErrEmbedding, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling %s: %v", embeddings.ErrEmbedding, e.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: ollama answered %d: %s", embeddings.ErrEmbedding, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrEmbedding, err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: asked for %d embeddings, got %d", embeddings.ErrEmbedding, len(texts), len(out.Embeddings))
	}
	return out.Embeddings, nil
}

// Close drops idle connections.
func (e *Embedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
