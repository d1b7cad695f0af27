package genlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/papercomputeco/proofpilot/pkg/llm"
)

// CensorString is the conventional replacement for secret string properties.
const CensorString = "***"

// censor replaces configured model params properties before a record is
// persisted. String values of censored properties are also scrubbed from every
// other text of the record, since a secret may leak into a chat or an error
// message.
type censor struct {
	replacements map[string]any
}

func newCensor(properties map[string]any) (*censor, error) {
	normalized := make(map[string]any, len(properties))
	for key, value := range properties {
		v, err := normalizeJSONValue(value)
		if err != nil {
			return nil, fmt.Errorf("censor value for %q: %w", key, err)
		}
		normalized[key] = v
	}
	return &censor{replacements: normalized}, nil
}

// apply censors params in place and returns the literal secrets it removed.
func (c *censor) apply(params map[string]any) []string {
	var secrets []string
	c.walk(params, &secrets)
	return secrets
}

func (c *censor) walk(node map[string]any, secrets *[]string) {
	for key, value := range node {
		if replacement, ok := c.replacements[key]; ok {
			if s, isString := value.(string); isString && s != "" {
				if rs, _ := replacement.(string); rs != s {
					*secrets = append(*secrets, s)
				}
			}
			node[key] = replacement
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			c.walk(nested, secrets)
		}
	}
}

// censorRecord censors params in place and scrubs the removed secrets from
// the texts of r. params is the map stored as r.Debug.Params in debug mode.
func (c *censor) censorRecord(r *Record, params map[string]any) {
	if len(c.replacements) == 0 {
		return
	}

	secrets := c.apply(params)
	if len(secrets) == 0 {
		return
	}

	pairs := make([]string, 0, 2*len(secrets))
	for _, s := range secrets {
		pairs = append(pairs, s, CensorString)
	}
	scrub := strings.NewReplacer(pairs...).Replace

	if r.Error != nil {
		r.Error.Message = scrub(r.Error.Message)
	}

	d := r.Debug
	if d == nil {
		return
	}
	for i, msg := range d.Chat {
		d.Chat[i] = llm.NewTextMessage(msg.Role, scrub(msg.Content))
	}
	for i, name := range d.ContextTheorems {
		d.ContextTheorems[i] = scrub(name)
	}
	for i, proof := range d.GeneratedProofs {
		d.GeneratedProofs[i] = scrub(proof)
	}
}

// normalizeJSONValue round-trips v through JSON so it compares equal to what
// the log reader returns.
func normalizeJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
