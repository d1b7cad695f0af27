package llm

import "encoding/json"

// GenerationTokens counts the tokens a generation consumed. The total is always
// derived from its two components so it cannot drift.
type GenerationTokens struct {
	MessagesTokens  int
	GeneratedTokens int
}

// NewGenerationTokens builds a GenerationTokens value. Negative inputs are
// clamped to zero.
func NewGenerationTokens(messagesTokens, generatedTokens int) GenerationTokens {
	return GenerationTokens{
		MessagesTokens:  max(messagesTokens, 0),
		GeneratedTokens: max(generatedTokens, 0),
	}
}

// TotalTokens is MessagesTokens + GeneratedTokens.
func (t GenerationTokens) TotalTokens() int {
	return t.MessagesTokens + t.GeneratedTokens
}

// Add returns the component-wise sum of two token counts.
func (t GenerationTokens) Add(other GenerationTokens) GenerationTokens {
	return NewGenerationTokens(
		t.MessagesTokens+other.MessagesTokens,
		t.GeneratedTokens+other.GeneratedTokens,
	)
}

type generationTokensJSON struct {
	MessagesTokens  int `json:"messagesTokens"`
	GeneratedTokens int `json:"generatedTokens"`
	TotalTokens     int `json:"totalTokens"`
}

// MarshalJSON includes the derived total for report readers.
func (t GenerationTokens) MarshalJSON() ([]byte, error) {
	return json.Marshal(generationTokensJSON{
		MessagesTokens:  t.MessagesTokens,
		GeneratedTokens: t.GeneratedTokens,
		TotalTokens:     t.TotalTokens(),
	})
}

// UnmarshalJSON ignores any stored total and recomputes it from the components.
func (t *GenerationTokens) UnmarshalJSON(data []byte) error {
	var raw generationTokensJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = NewGenerationTokens(raw.MessagesTokens, raw.GeneratedTokens)
	return nil
}

// GeneratedRawContentItem is one candidate produced by a backend, before any
// post-processing.
type GeneratedRawContentItem struct {
	Content     string           `json:"content"`
	TokensSpent GenerationTokens `json:"tokensSpent"`
}

// SplitTokens distributes a batch-level token count across n generated items.
// Prompt tokens are shared by every item; generated tokens are divided evenly
// with the remainder going to the first items.
func SplitTokens(total GenerationTokens, n int) []GenerationTokens {
	if n <= 0 {
		return nil
	}
	out := make([]GenerationTokens, n)
	share := total.GeneratedTokens / n
	rest := total.GeneratedTokens % n
	for i := range out {
		generated := share
		if i < rest {
			generated++
		}
		out[i] = NewGenerationTokens(total.MessagesTokens, generated)
	}
	return out
}
