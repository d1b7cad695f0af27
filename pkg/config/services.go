package config

import (
	"maps"
	"slices"

	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
)

// KeySource supplies API keys that are not written inline in config.toml.
// *credentials.Manager implements it.
type KeySource interface {
	APIKey(provider string) (string, error)
}

// ServiceModel is one resolved model of a configured backend.
type ServiceModel struct {
	Service modelparams.ServiceID
	Params  modelparams.ModelParams
}

// ResolveServices turns the raw [[services.<id>]] tables into validated model
// params, in the order of modelparams.SupportedServices and then config order.
// Missing apiKey fields are looked up in keys. When only is non-empty, the
// other services are skipped. Every failure is a ConfigurationError.
func (c *Config) ResolveServices(keys KeySource, only ...string) ([]ServiceModel, error) {
	supported := modelparams.SupportedServices()
	for name := range c.Services {
		if !slices.Contains(supported, modelparams.ServiceID(name)) {
			return nil, llm.NewConfigurationError("unknown service %q in config (supported: %v)", name, supported)
		}
	}
	for _, name := range only {
		if _, ok := c.Services[name]; !ok {
			return nil, llm.NewConfigurationError("service %q is not configured", name)
		}
	}

	var out []ServiceModel
	var all []modelparams.ModelParams
	for _, id := range supported {
		if len(only) > 0 && !slices.Contains(only, string(id)) {
			continue
		}
		for _, raw := range c.Services[string(id)] {
			params, err := resolveModel(id, raw, keys)
			if err != nil {
				return nil, err
			}
			out = append(out, ServiceModel{Service: id, Params: params})
			all = append(all, params)
		}
	}

	if len(out) == 0 {
		return nil, llm.NewConfigurationError("no services configured")
	}
	if err := modelparams.CheckUniqueModelIDs(all); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveModel(id modelparams.ServiceID, raw map[string]any, keys KeySource) (modelparams.ModelParams, error) {
	raw = maps.Clone(raw)

	if needsAPIKey(id) && raw["apiKey"] == nil && keys != nil {
		key, err := keys.APIKey(string(id))
		if err != nil {
			return nil, &llm.ConfigurationError{Message: "reading " + string(id) + " api key", Cause: err}
		}
		if key != "" {
			raw["apiKey"] = key
		}
	}

	return modelparams.Resolve(id, raw)
}

func needsAPIKey(id modelparams.ServiceID) bool {
	return id == modelparams.OpenAI || id == modelparams.Grazie
}
