package completion

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/proofpilot/pkg/document"
	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
	"github.com/papercomputeco/proofpilot/pkg/proof"
)

// HelperTheoremName names the auxiliary theorem the target goal is rendered as.
const HelperTheoremName = "helper_theorem"

// TargetStatement renders goal as a theorem statement the model is asked to
// prove.
func TargetStatement(goal document.Goal) string {
	var b strings.Builder
	b.WriteString("Theorem ")
	b.WriteString(HelperTheoremName)
	for _, h := range goal.Hyps {
		b.WriteString(" (")
		b.WriteString(h.String())
		b.WriteString(")")
	}
	b.WriteString(" : ")
	b.WriteString(goal.Conclusion)
	if !strings.HasSuffix(goal.Conclusion, ".") {
		b.WriteString(".")
	}
	return b.String()
}

// FixPrompt substitutes diagnostic into the profile's proof fix prompt.
func FixPrompt(profile modelparams.MultiroundProfile, diagnostic string) string {
	return strings.ReplaceAll(profile.ProofFixPrompt, modelparams.DiagnosticPlaceholder, diagnostic)
}

type budget struct {
	left int
}

func (b *budget) fits(msgs ...llm.ChatMessage) bool {
	return b.left >= chatTokens(msgs)
}

func (b *budget) take(msgs ...llm.ChatMessage) {
	b.left -= chatTokens(msgs)
}

func chatTokens(msgs []llm.ChatMessage) int {
	return llm.EstimateChatTokens(llm.ChatHistory(msgs))
}

func theoremPair(t document.Theorem) []llm.ChatMessage {
	return []llm.ChatMessage{
		llm.NewTextMessage(llm.RoleUser, t.Statement),
		llm.NewTextMessage(llm.RoleAssistant, t.Proof),
	}
}

// BuildChat assembles the first-round chat for hole: the system prompt, up to
// MaxContextTheoremsNumber ranked theorems that fit the token budget, and the
// target statement. It fails with a ConfigurationError when the system prompt
// and the target alone exceed the budget.
func BuildChat(params modelparams.ModelParams, hole document.Hole, ranked []document.Theorem) (llm.AnalyzedChatHistory, error) {
	return buildChat(params, hole, ranked, nil)
}

// BuildFixChat assembles a repair chat. targets are the previous versions to
// show the model, oldest first; each is appended as the model's answer
// followed by the fix prompt carrying its diagnostic. The oldest versions are
// dropped first when the budget runs out, but the most recent one must fit.
func BuildFixChat(params modelparams.ModelParams, hole document.Hole, ranked []document.Theorem, targets []*proof.Version) (llm.AnalyzedChatHistory, error) {
	if len(targets) == 0 {
		return llm.AnalyzedChatHistory{}, fmt.Errorf("%w: repair chat without versions to fix", proof.ErrInvariant)
	}
	return buildChat(params, hole, ranked, targets)
}

func buildChat(params modelparams.ModelParams, hole document.Hole, ranked []document.Theorem, targets []*proof.Version) (llm.AnalyzedChatHistory, error) {
	common := params.Common()
	b := &budget{left: common.TokensLimit - common.MaxTokensToGenerate}

	system := llm.NewTextMessage(llm.RoleSystem, common.SystemPrompt)
	target := llm.NewTextMessage(llm.RoleUser, TargetStatement(hole.Goal))
	if !b.fits(system, target) {
		return llm.AnalyzedChatHistory{}, llm.NewConfigurationError(
			"model %q: tokens limit %d leaves no room for the system prompt and the target goal",
			common.ModelID, common.TokensLimit)
	}
	b.take(system, target)

	var fixes []llm.ChatMessage
	for i := len(targets) - 1; i >= 0; i-- {
		pair, err := fixPair(common.MultiroundProfile, targets[i])
		if err != nil {
			return llm.AnalyzedChatHistory{}, err
		}
		if !b.fits(pair...) {
			break
		}
		b.take(pair...)
		fixes = append(pair, fixes...)
	}
	if len(targets) > 0 && len(fixes) == 0 {
		return llm.AnalyzedChatHistory{}, llm.NewConfigurationError(
			"model %q: tokens limit %d leaves no room for the proof to fix",
			common.ModelID, common.TokensLimit)
	}

	var ctxMsgs []llm.ChatMessage
	var names []string
	for _, t := range ranked {
		if len(names) >= common.MaxContextTheoremsNumber {
			break
		}
		pair := theoremPair(t)
		if !b.fits(pair...) {
			break
		}
		b.take(pair...)
		ctxMsgs = append(ctxMsgs, pair...)
		names = append(names, t.Name)
	}

	chat := make(llm.ChatHistory, 0, 2+len(ctxMsgs)+len(fixes))
	chat = append(chat, system)
	chat = append(chat, ctxMsgs...)
	chat = append(chat, target)
	chat = append(chat, fixes...)

	messagesTokens := llm.EstimateChatTokens(chat)
	return llm.AnalyzedChatHistory{
		Chat:            chat,
		ContextTheorems: names,
		EstimatedTokens: &llm.EstimatedTokens{
			MessagesTokens:      messagesTokens,
			MaxTokensToGenerate: common.MaxTokensToGenerate,
			MaxTokensInTotal:    messagesTokens + common.MaxTokensToGenerate,
		},
	}, nil
}

func fixPair(profile modelparams.MultiroundProfile, v *proof.Version) ([]llm.ChatMessage, error) {
	diagnostic, ok := v.Diagnostic()
	if !ok {
		return nil, fmt.Errorf("%w: version %s has no diagnostic to fix", proof.ErrInvariant, v.ID())
	}
	return []llm.ChatMessage{
		llm.NewTextMessage(llm.RoleAssistant, v.Text()),
		llm.NewTextMessage(llm.RoleUser, FixPrompt(profile, diagnostic)),
	}, nil
}
