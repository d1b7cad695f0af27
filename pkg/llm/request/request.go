// Package request describes one call to a language model service and its
// outcome, as seen by the generations logger and the orchestrator.
package request

import (
	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
)

// Request is everything needed to issue (and later log) one generation call.
type Request struct {
	// Service names the backend instance the request is issued to.
	Service string

	// Params are the model params the request was built with.
	Params modelparams.ModelParams

	// Choices is the number of candidates requested.
	Choices int

	// AnalyzedChat is the chat sent plus its context theorems and token
	// estimation.
	AnalyzedChat llm.AnalyzedChatHistory
}

// ModelID is a shorthand for the configured model identifier.
func (r *Request) ModelID() string {
	if r.Params == nil {
		return ""
	}
	return r.Params.Common().ModelID
}

// Succeeded is a request whose backend call returned content.
type Succeeded struct {
	Request
	GeneratedRawProofs []llm.GeneratedRawContentItem
	TokensSpentInTotal llm.GenerationTokens
}

// Contents returns the raw text of each generated item, in backend order.
func (s *Succeeded) Contents() []string {
	out := make([]string, len(s.GeneratedRawProofs))
	for i, item := range s.GeneratedRawProofs {
		out[i] = item.Content
	}
	return out
}

// Failed is a request whose backend call raised an error. Err is always one
// of the llm error taxonomy entries.
type Failed struct {
	Request
	Err error
}

// NewFailed normalizes err before attaching it to the request.
func NewFailed(req Request, err error) *Failed {
	return &Failed{Request: req, Err: llm.Normalize(err)}
}
