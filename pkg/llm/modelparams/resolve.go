package modelparams

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/papercomputeco/proofpilot/pkg/llm"
)

// Placeholders in ProofFixPrompt are substituted when a repair chat is built.
const DiagnosticPlaceholder = "${diagnostic}"

var validate = validator.New(validator.WithRequiredStructEnabled())

// New returns an empty params value of the shape registered for service.
func New(service ServiceID) (ModelParams, error) {
	switch service {
	case PredefinedProofs:
		return &PredefinedProofsParams{}, nil
	case OpenAI:
		return &OpenAIParams{}, nil
	case Grazie:
		return &GrazieParams{}, nil
	case LMStudio:
		return &LMStudioParams{}, nil
	default:
		return nil, llm.NewConfigurationError("unknown service %q (supported: %v)", service, SupportedServices())
	}
}

// Resolve decodes raw user settings into the params shape registered for
// service and validates every field. Unknown fields, missing required fields
// and out-of-range values are all reported as a ConfigurationError; no
// missing setting is replaced by a default, except the fields the predefined
// tactics backend derives from its tactic list.
func Resolve(service ServiceID, raw map[string]any) (ModelParams, error) {
	params, err := New(service)
	if err != nil {
		return nil, err
	}

	if missing := missingKeys(service, raw); len(missing) > 0 {
		modelID, _ := raw["modelId"].(string)
		return nil, llm.NewConfigurationError("invalid %s params %q: missing %s",
			service, modelID, strings.Join(missing, ", "))
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, &llm.ConfigurationError{Message: "encoding raw params", Cause: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(params); err != nil {
		return nil, &llm.ConfigurationError{Message: fmt.Sprintf("decoding %s params", service), Cause: err}
	}

	if p, ok := params.(*PredefinedProofsParams); ok {
		derivePredefined(p)
	}

	if err := Validate(params); err != nil {
		return nil, err
	}

	return params, nil
}

// zeroValidKeys are the settings whose zero value is in range, so leaving
// them out cannot be told apart from setting them to zero after decoding.
var zeroValidKeys = map[ServiceID][]string{
	OpenAI:   {"maxContextTheoremsNumber", "temperature"},
	Grazie:   {"maxContextTheoremsNumber"},
	LMStudio: {"maxContextTheoremsNumber", "temperature"},
}

// repairKeys are required once a profile allows more than one round.
var repairKeys = []string{
	"multiroundProfile.defaultProofFixChoices",
	"multiroundProfile.maxPreviousProofVersionsNumber",
}

// missingKeys lists the required settings absent from raw, as dotted paths.
func missingKeys(service ServiceID, raw map[string]any) []string {
	var missing []string
	for _, key := range zeroValidKeys[service] {
		if _, ok := lookup(raw, key); !ok {
			missing = append(missing, key)
		}
	}

	if service == PredefinedProofs {
		return missing
	}
	rounds, _ := lookup(raw, "multiroundProfile.maxRoundsNumber")
	if n, ok := asInt(rounds); ok && n > 1 {
		for _, key := range repairKeys {
			if _, ok := lookup(raw, key); !ok {
				missing = append(missing, key)
			}
		}
	}
	return missing
}

// lookup resolves a dotted path through nested maps. A nil value counts as
// absent.
func lookup(raw map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := raw[head]
	if !ok || v == nil {
		return nil, false
	}
	if !nested {
		return v, true
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(m, rest)
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// Validate checks every field of params, including the rules validator tags
// cannot express.
func Validate(params ModelParams) error {
	if params == nil {
		return llm.NewConfigurationError("model params are not set")
	}

	if err := validate.Struct(params); err != nil {
		return &llm.ConfigurationError{
			Message: fmt.Sprintf("invalid %s params %q", params.Service(), params.Common().ModelID),
			Cause:   describeValidation(err),
		}
	}

	base := params.Common()
	if params.Service() != PredefinedProofs && strings.TrimSpace(base.SystemPrompt) == "" {
		return llm.NewConfigurationError("invalid %s params %q: systemPrompt is required", params.Service(), base.ModelID)
	}

	profile := base.MultiroundProfile
	if profile.MaxRoundsNumber > 1 && strings.TrimSpace(profile.ProofFixPrompt) == "" {
		return llm.NewConfigurationError("invalid %s params %q: proofFixPrompt is required for more than one round",
			params.Service(), base.ModelID)
	}
	if profile.MaxRoundsNumber > 1 && profile.MaxPreviousProofVersionsNumber < 1 {
		return llm.NewConfigurationError("invalid %s params %q: maxPreviousProofVersionsNumber must be at least 1 for more than one round",
			params.Service(), base.ModelID)
	}

	if p, ok := params.(*PredefinedProofsParams); ok && base.DefaultChoices > len(p.Tactics) {
		return llm.NewConfigurationError("invalid %s params %q: defaultChoices %d exceeds the %d tactics",
			params.Service(), base.ModelID, base.DefaultChoices, len(p.Tactics))
	}

	return nil
}

// predefinedTokensLimit leaves the chat budget effectively unbounded: the
// predefined backend never sends the chat anywhere.
const predefinedTokensLimit = 1 << 20

// derivePredefined fills the fields that are meaningless for the predefined
// tactics backend from the tactic list itself.
func derivePredefined(p *PredefinedProofsParams) {
	longest := 1
	for _, tactic := range p.Tactics {
		longest = max(longest, llm.EstimateTokens(tactic))
	}

	if p.MaxTokensToGenerate == 0 {
		p.MaxTokensToGenerate = longest
	}
	if p.TokensLimit == 0 {
		p.TokensLimit = predefinedTokensLimit
	}
	if p.DefaultChoices == 0 {
		p.DefaultChoices = len(p.Tactics)
	}

	// Replaying the same tactics in a repair round yields nothing new.
	p.MultiroundProfile = MultiroundProfile{MaxRoundsNumber: 1}
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// ToMap renders params as a generic JSON object. Numbers are kept as
// json.Number so the map round-trips through JSON unchanged.
func ToMap(params ModelParams) (map[string]any, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckUniqueModelIDs reports a ConfigurationError when two params share a
// modelId.
func CheckUniqueModelIDs(all []ModelParams) error {
	seen := make(map[string]ServiceID, len(all))
	for _, p := range all {
		id := p.Common().ModelID
		if prev, ok := seen[id]; ok {
			return llm.NewConfigurationError("modelId %q is used by both %s and %s params", id, prev, p.Service())
		}
		seen[id] = p.Service()
	}
	return nil
}
