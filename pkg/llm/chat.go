// Package llm holds the backend-agnostic value types exchanged with language
// model services: chat histories, token accounting, raw generated content and
// the common error taxonomy.
package llm

import "fmt"

// ChatRole is the author of a single chat turn.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ParseChatRole converts a raw role name into a ChatRole.
func ParseChatRole(raw string) (ChatRole, error) {
	switch role := ChatRole(raw); role {
	case RoleSystem, RoleUser, RoleAssistant:
		return role, nil
	default:
		return "", fmt.Errorf("unknown chat role: %q", raw)
	}
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// NewTextMessage creates a chat message with the given role and content.
func NewTextMessage(role ChatRole, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content}
}

// ChatHistory is an ordered sequence of chat turns. It is appended to while a
// request is being built and treated as immutable once sent.
type ChatHistory []ChatMessage

// Clone returns a copy of the history that can be appended to without
// affecting the receiver.
func (h ChatHistory) Clone() ChatHistory {
	if h == nil {
		return nil
	}
	out := make(ChatHistory, len(h))
	copy(out, h)
	return out
}

// EstimatedTokens is the token estimation made for a chat before it is sent.
type EstimatedTokens struct {
	MessagesTokens      int `json:"messagesTokens"`
	MaxTokensToGenerate int `json:"maxTokensToGenerate"`
	MaxTokensInTotal    int `json:"maxTokensInTotal"`
}

// AnalyzedChatHistory is a chat together with the names of the context
// theorems it was built from and its token estimation.
type AnalyzedChatHistory struct {
	Chat            ChatHistory      `json:"chat"`
	ContextTheorems []string         `json:"contextTheorems"`
	EstimatedTokens *EstimatedTokens `json:"estimatedTokens,omitempty"`
}

// EstimateTokens approximates the number of tokens a text occupies. No
// tokenizer is shared by every backend, so a ratio of four characters per
// token is used, rounded up.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateChatTokens sums EstimateTokens over every message content.
func EstimateChatTokens(chat ChatHistory) int {
	total := 0
	for _, msg := range chat {
		total += EstimateTokens(msg.Content)
	}
	return total
}
