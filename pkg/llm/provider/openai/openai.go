// Package openai implements the OpenAI chat completions backend.
package openai

import (
	"context"
	"errors"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
)

// Option configures the provider.
type Option func(*provider)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *provider) {
		p.httpClient = c
	}
}

type provider struct {
	httpClient *http.Client
}

func New(opts ...Option) *provider {
	p := &provider{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (*provider) Name() modelparams.ServiceID {
	return modelparams.OpenAI
}

// Generate asks for all choices in one call with n = choices. Usage is
// reported for the whole call and split evenly across the returned items.
func (o *provider) Generate(ctx context.Context, chat llm.ChatHistory, params modelparams.ModelParams, choices int) ([]llm.GeneratedRawContentItem, llm.GenerationTokens, error) {
	p, ok := params.(*modelparams.OpenAIParams)
	if !ok {
		return nil, llm.GenerationTokens{}, llm.NewConfigurationError("openai backend got %s params", params.Service())
	}

	resp, err := o.client(p).CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       p.ModelName,
		Messages:    toMessages(chat),
		MaxTokens:   p.MaxTokensToGenerate,
		Temperature: float32(p.Temperature),
		N:           choices,
	})
	if err != nil {
		return nil, llm.GenerationTokens{}, classify(err)
	}

	contents := make([]string, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		contents = append(contents, c.Message.Content)
	}
	if len(contents) == 0 {
		return nil, llm.GenerationTokens{}, llm.NewGenerationFailedError(errors.New("openai returned no choices"))
	}

	total := llm.NewGenerationTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	perItem := llm.SplitTokens(total, len(contents))
	items := make([]llm.GeneratedRawContentItem, len(contents))
	for i, content := range contents {
		items[i] = llm.GeneratedRawContentItem{Content: content, TokensSpent: perItem[i]}
	}
	return items, total, nil
}

func (o *provider) client(p *modelparams.OpenAIParams) *goopenai.Client {
	cfg := goopenai.DefaultConfig(p.APIKey)
	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	return goopenai.NewClientWithConfig(cfg)
}

func toMessages(chat llm.ChatHistory) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(chat))
	for i, msg := range chat {
		out[i] = goopenai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content}
	}
	return out
}

// classify maps API failures onto the error taxonomy: auth and request shape
// problems are configuration errors, server-side and transport failures are
// remote connection errors.
func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized,
			apiErr.HTTPStatusCode == http.StatusForbidden,
			apiErr.HTTPStatusCode == http.StatusNotFound:
			return &llm.ConfigurationError{Message: "openai rejected the model params", Cause: err}
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return llm.NewRemoteConnectionError("openai is unavailable", err)
		}
		return llm.NewGenerationFailedError(err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode >= http.StatusInternalServerError || reqErr.HTTPStatusCode == 0 {
			return llm.NewRemoteConnectionError("openai request failed", err)
		}
		return llm.NewGenerationFailedError(err)
	}

	return llm.NewRemoteConnectionError("openai request failed", err)
}
