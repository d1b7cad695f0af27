// Package lmstudio implements the backend for a locally running LM Studio
// server, which speaks the OpenAI chat completions protocol but answers a
// single completion per call.
package lmstudio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
	"github.com/papercomputeco/proofpilot/pkg/llm/provider/transport"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 1234

	// localAPIKey is sent because the OpenAI client requires one; LM Studio
	// ignores it.
	localAPIKey = "lm-studio"
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
	p := &provider{httpClient: transport.NewHTTPClient()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (*provider) Name() modelparams.ServiceID {
	return modelparams.LMStudio
}

// Generate issues one call per choice.
func (l *provider) Generate(ctx context.Context, chat llm.ChatHistory, params modelparams.ModelParams, choices int) ([]llm.GeneratedRawContentItem, llm.GenerationTokens, error) {
	p, ok := params.(*modelparams.LMStudioParams)
	if !ok {
		return nil, llm.GenerationTokens{}, llm.NewConfigurationError("lmstudio backend got %s params", params.Service())
	}

	cfg := goopenai.DefaultConfig(localAPIKey)
	cfg.BaseURL = BaseURL(p)
	cfg.HTTPClient = l.httpClient
	client := goopenai.NewClientWithConfig(cfg)

	messages := make([]goopenai.ChatCompletionMessage, len(chat))
	for i, msg := range chat {
		messages[i] = goopenai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content}
	}

	var (
		items []llm.GeneratedRawContentItem
		total llm.GenerationTokens
	)
	for range choices {
		resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Messages:    messages,
			MaxTokens:   p.MaxTokensToGenerate,
			Temperature: float32(p.Temperature),
		})
		if err != nil {
			return nil, llm.GenerationTokens{}, classify(err, cfg.BaseURL)
		}
		if len(resp.Choices) == 0 {
			return nil, llm.GenerationTokens{}, llm.NewGenerationFailedError(errors.New("lmstudio returned no choices"))
		}

		spent := llm.NewGenerationTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		items = append(items, llm.GeneratedRawContentItem{Content: resp.Choices[0].Message.Content, TokensSpent: spent})
		total = total.Add(spent)
	}
	return items, total, nil
}

// BaseURL returns the OpenAI-compatible API root of the configured server.
func BaseURL(p *modelparams.LMStudioParams) string {
	host := p.Host
	if host == "" {
		host = DefaultHost
	}
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/v1"
}

func classify(err error, url string) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= http.StatusInternalServerError {
		return llm.NewRemoteConnectionError("lmstudio at "+url+" failed", err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= http.StatusInternalServerError {
		return llm.NewRemoteConnectionError("lmstudio at "+url+" failed", err)
	}
	if apiErr != nil || reqErr != nil {
		return llm.NewGenerationFailedError(err)
	}
	return llm.NewRemoteConnectionError(fmt.Sprintf("is LM Studio running at %s?", url), err)
}
