// Package grazie implements the Grazie chat backend. Grazie streams every
// completion as Server-Sent Events and answers one completion per call.
package grazie

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
	"github.com/papercomputeco/proofpilot/pkg/llm/provider/transport"
	"github.com/papercomputeco/proofpilot/pkg/sse"
)

const (
	StagingURL    = "https://api.app.stgn.grazie.aws.intellij.net/"
	ProductionURL = "https://api.app.prod.grazie.aws.intellij.net/"

	chatPath = "user/v5/llm/chat/stream/v3"

	// streamEnd is the data of the event closing a completion stream.
	streamEnd = "end"
)

// Option configures the provider.
type Option func(*provider)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *provider) {
		p.httpClient = c
	}
}

// WithAgent sets the agent name and version reported to Grazie.
func WithAgent(name, version string) Option {
	return func(p *provider) {
		p.agent = agent{Name: name, Version: version}
	}
}

type agent struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type provider struct {
	httpClient *http.Client
	agent      agent
}

func New(opts ...Option) *provider {
	p := &provider{
		httpClient: transport.NewHTTPClient(),
		agent:      agent{Name: "proofpilot", Version: "dev"},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (*provider) Name() modelparams.ServiceID {
	return modelparams.Grazie
}

type chatRequest struct {
	Chat    chatBody `json:"chat"`
	Profile string   `json:"profile"`
}

type chatBody struct {
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type contentChunk struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Generate issues one streaming call per choice. Grazie reports no usage, so
// token accounting is estimated from the texts.
func (g *provider) Generate(ctx context.Context, chat llm.ChatHistory, params modelparams.ModelParams, choices int) ([]llm.GeneratedRawContentItem, llm.GenerationTokens, error) {
	p, ok := params.(*modelparams.GrazieParams)
	if !ok {
		return nil, llm.GenerationTokens{}, llm.NewConfigurationError("grazie backend got %s params", params.Service())
	}

	body := chatRequest{Profile: p.ModelName, Chat: chatBody{Messages: toMessages(chat)}}
	headers := map[string]string{
		"Grazie-Authenticate-JWT": p.APIKey,
		"Grazie-Agent":            g.agentHeader(),
	}
	messagesTokens := llm.EstimateChatTokens(chat)

	var (
		items []llm.GeneratedRawContentItem
		total llm.GenerationTokens
	)
	for range choices {
		content, err := g.complete(ctx, baseURL(p)+chatPath, headers, body)
		if err != nil {
			return nil, llm.GenerationTokens{}, err
		}
		spent := llm.NewGenerationTokens(messagesTokens, llm.EstimateTokens(content))
		items = append(items, llm.GeneratedRawContentItem{Content: content, TokensSpent: spent})
		total = total.Add(spent)
	}
	return items, total, nil
}

func (g *provider) complete(ctx context.Context, url string, headers map[string]string, body chatRequest) (string, error) {
	resp, err := transport.PostJSON(ctx, g.httpClient, url, headers, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var (
		content strings.Builder
		ended   bool
	)
	err = sse.NewReader(resp.Body).Each(func(ev *sse.Event) (bool, error) {
		if ev.Data == streamEnd {
			ended = true
			return false, nil
		}
		var chunk contentChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return false, fmt.Errorf("decoding grazie chunk %q: %w", ev.Data, err)
		}
		if chunk.Type == "Content" {
			content.WriteString(chunk.Content)
		}
		return true, nil
	})
	if err != nil {
		return "", llm.NewGenerationFailedError(err)
	}
	if !ended {
		return "", llm.NewRemoteConnectionError("grazie stream ended early", nil)
	}
	return content.String(), nil
}

func (g *provider) agentHeader() string {
	data, _ := json.Marshal(g.agent)
	return string(data)
}

func baseURL(p *modelparams.GrazieParams) string {
	url := p.BaseURL
	if url == "" {
		url = StagingURL
		if p.AuthType == "prod" {
			url = ProductionURL
		}
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url
}

func toMessages(chat llm.ChatHistory) []chatMessage {
	out := make([]chatMessage, len(chat))
	for i, msg := range chat {
		out[i] = chatMessage{Type: string(msg.Role) + "_message", Content: msg.Content}
	}
	return out
}
