// Package modelparams defines the per-backend model parameter shapes and the
// factory that resolves raw user settings into exactly one of them.
package modelparams

// ServiceID identifies a backend variant. The set is closed: Resolve rejects
// anything not listed in SupportedServices.
type ServiceID string

const (
	PredefinedProofs ServiceID = "predefined-proofs"
	OpenAI           ServiceID = "openai"
	Grazie           ServiceID = "grazie"
	LMStudio         ServiceID = "lmstudio"
)

// SupportedServices returns every known backend identifier.
func SupportedServices() []ServiceID {
	return []ServiceID{PredefinedProofs, OpenAI, Grazie, LMStudio}
}

// MultiroundProfile governs the repair loop for one configured model.
type MultiroundProfile struct {
	MaxRoundsNumber                int    `json:"maxRoundsNumber" validate:"gte=1"`
	DefaultProofFixChoices         int    `json:"defaultProofFixChoices" validate:"gte=0"`
	ProofFixPrompt                 string `json:"proofFixPrompt"`
	MaxPreviousProofVersionsNumber int    `json:"maxPreviousProofVersionsNumber" validate:"gte=0"`
}

// Base holds the fields every backend variant shares.
type Base struct {
	ModelID                  string            `json:"modelId" validate:"required"`
	SystemPrompt             string            `json:"systemPrompt"`
	MaxTokensToGenerate      int               `json:"maxTokensToGenerate" validate:"gte=1"`
	TokensLimit              int               `json:"tokensLimit" validate:"gte=1,gtefield=MaxTokensToGenerate"`
	MaxContextTheoremsNumber int               `json:"maxContextTheoremsNumber" validate:"gte=0"`
	DefaultChoices           int               `json:"defaultChoices" validate:"gte=1"`
	MultiroundProfile        MultiroundProfile `json:"multiroundProfile"`
}

// ModelParams is implemented by every backend-specific params struct.
type ModelParams interface {
	// Service returns the backend variant these params belong to.
	Service() ServiceID

	// Common exposes the shared fields.
	Common() *Base
}

func (b *Base) Common() *Base { return b }

// PredefinedProofsParams configure the backend that replays a fixed tactic list.
type PredefinedProofsParams struct {
	Base
	Tactics []string `json:"tactics" validate:"min=1,dive,required"`
}

func (*PredefinedProofsParams) Service() ServiceID { return PredefinedProofs }

// OpenAIParams configure the OpenAI chat completions backend.
type OpenAIParams struct {
	Base
	ModelName   string  `json:"modelName" validate:"required"`
	APIKey      string  `json:"apiKey" validate:"required"`
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
	BaseURL     string  `json:"baseUrl,omitempty" validate:"omitempty,url"`
}

func (*OpenAIParams) Service() ServiceID { return OpenAI }

// GrazieParams configure the Grazie chat backend.
type GrazieParams struct {
	Base
	ModelName string `json:"modelName" validate:"required"`
	APIKey    string `json:"apiKey" validate:"required"`
	AuthType  string `json:"authType" validate:"oneof=stgn prod"`
	BaseURL   string `json:"baseUrl,omitempty" validate:"omitempty,url"`
}

func (*GrazieParams) Service() ServiceID { return Grazie }

// LMStudioParams configure a locally running LM Studio server.
type LMStudioParams struct {
	Base
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
	Host        string  `json:"host,omitempty" validate:"omitempty,hostname|ip"`
	Port        int     `json:"port" validate:"gte=1,lte=65535"`
}

func (*LMStudioParams) Service() ServiceID { return LMStudio }

var (
	_ ModelParams = (*PredefinedProofsParams)(nil)
	_ ModelParams = (*OpenAIParams)(nil)
	_ ModelParams = (*GrazieParams)(nil)
	_ ModelParams = (*LMStudioParams)(nil)
)
