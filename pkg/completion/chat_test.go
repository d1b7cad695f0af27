package completion_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/proofpilot/pkg/completion"
	"github.com/papercomputeco/proofpilot/pkg/document"
	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/proof"
)

func invalidVersion(text, diagnostic, parent string) *proof.Version {
	v := proof.NewVersion(llm.GeneratedRawContentItem{Content: text}, text, parent)
	Expect(v.Validate(proof.InvalidVerdict(diagnostic))).To(Succeed())
	return v
}

var _ = Describe("Chat", func() {
	hole := target("h").Hole
	ranked := []document.Theorem{
		theorem("first", "0 + n = n", 1),
		theorem("second", "n * 1 = n", 2),
		theorem("third", "n - 0 = n", 3),
	}

	Describe("TargetStatement", func() {
		It("renders the goal as a helper theorem", func() {
			g := goal("m = n", document.Hypothesis{Names: []string{"n", "m"}, Type: "nat"},
				document.Hypothesis{Names: []string{"H"}, Type: "n = m"})
			Expect(completion.TargetStatement(g)).To(Equal("Theorem helper_theorem (n m : nat) (H : n = m) : m = n."))
		})

		It("does not double the final period", func() {
			Expect(completion.TargetStatement(goal("True."))).To(Equal("Theorem helper_theorem : True."))
		})
	})

	Describe("BuildChat", func() {
		It("puts system prompt, ranked theorem pairs and the target in order", func() {
			chat, err := completion.BuildChat(openAIParams(), hole, ranked)
			Expect(err).NotTo(HaveOccurred())

			msgs := chat.Chat
			Expect(msgs).To(HaveLen(1 + 2*len(ranked) + 1))
			Expect(msgs[0]).To(Equal(llm.NewTextMessage(llm.RoleSystem, "You are a proof assistant.")))
			Expect(msgs[1]).To(Equal(llm.NewTextMessage(llm.RoleUser, ranked[0].Statement)))
			Expect(msgs[2]).To(Equal(llm.NewTextMessage(llm.RoleAssistant, ranked[0].Proof)))
			Expect(msgs[len(msgs)-1]).To(Equal(llm.NewTextMessage(llm.RoleUser, completion.TargetStatement(hole.Goal))))
			Expect(chat.ContextTheorems).To(Equal([]string{"first", "second", "third"}))
		})

		It("estimates tokens for the chat it built", func() {
			chat, err := completion.BuildChat(openAIParams(), hole, ranked)
			Expect(err).NotTo(HaveOccurred())
			Expect(chat.EstimatedTokens).NotTo(BeNil())
			Expect(chat.EstimatedTokens.MessagesTokens).To(Equal(llm.EstimateChatTokens(chat.Chat)))
			Expect(chat.EstimatedTokens.MaxTokensToGenerate).To(Equal(100))
			Expect(chat.EstimatedTokens.MaxTokensInTotal).To(Equal(chat.EstimatedTokens.MessagesTokens + 100))
		})

		It("caps the number of context theorems", func() {
			chat, err := completion.BuildChat(openAIParams(withSetting("maxContextTheoremsNumber", 1)), hole, ranked)
			Expect(err).NotTo(HaveOccurred())
			Expect(chat.ContextTheorems).To(Equal([]string{"first"}))
			Expect(chat.Chat).To(HaveLen(4))
		})

		It("drops the least relevant theorems that exceed the token budget", func() {
			params := openAIParams()
			base, err := completion.BuildChat(params, hole, nil)
			Expect(err).NotTo(HaveOccurred())

			pair := llm.EstimateTokens(ranked[0].Statement) + llm.EstimateTokens(ranked[0].Proof)
			limit := 100 + base.EstimatedTokens.MessagesTokens + pair
			chat, err := completion.BuildChat(openAIParams(withSetting("tokensLimit", limit)), hole, ranked)
			Expect(err).NotTo(HaveOccurred())
			Expect(chat.ContextTheorems).To(Equal([]string{"first"}))
			Expect(chat.EstimatedTokens.MessagesTokens).To(BeNumerically("<=", limit-100))
		})

		It("fails with a configuration error when the target alone does not fit", func() {
			params := openAIParams(withSetting("systemPrompt", strings.Repeat("long prompt ", 2000)))
			_, err := completion.BuildChat(params, hole, ranked)
			Expect(llm.IsConfigurationError(err)).To(BeTrue())
		})
	})

	Describe("BuildFixChat", func() {
		It("appends each version followed by the fix prompt with its diagnostic", func() {
			v1 := invalidVersion("auto.", "no progress", "")
			v2 := invalidVersion("lia.", "lia failed", v1.ID())

			chat, err := completion.BuildFixChat(openAIParams(), hole, ranked, []*proof.Version{v1, v2})
			Expect(err).NotTo(HaveOccurred())

			msgs := chat.Chat
			tail := msgs[len(msgs)-4:]
			Expect(tail).To(Equal([]llm.ChatMessage{
				llm.NewTextMessage(llm.RoleAssistant, "auto."),
				llm.NewTextMessage(llm.RoleUser, "Fix the proof. Error: no progress"),
				llm.NewTextMessage(llm.RoleAssistant, "lia."),
				llm.NewTextMessage(llm.RoleUser, "Fix the proof. Error: lia failed"),
			}))
			Expect(msgs[len(msgs)-5].Content).To(Equal(completion.TargetStatement(hole.Goal)))
		})

		It("drops the oldest versions first when the budget runs out", func() {
			old := invalidVersion(strings.Repeat("simpl. ", 200), "too long", "")
			recent := invalidVersion("lia.", "lia failed", old.ID())

			params := openAIParams(withSetting("tokensLimit", 300))
			chat, err := completion.BuildFixChat(params, hole, nil, []*proof.Version{old, recent})
			Expect(err).NotTo(HaveOccurred())

			for _, msg := range chat.Chat {
				Expect(msg.Content).NotTo(ContainSubstring("simpl."))
			}
			Expect(chat.Chat[len(chat.Chat)-2].Content).To(Equal("lia."))
		})

		It("fails with a configuration error when the latest version does not fit", func() {
			huge := invalidVersion(strings.Repeat("simpl. ", 400), "too long", "")
			params := openAIParams(withSetting("tokensLimit", 300))
			_, err := completion.BuildFixChat(params, hole, nil, []*proof.Version{huge})
			Expect(llm.IsConfigurationError(err)).To(BeTrue())
		})

		It("rejects versions without a diagnostic", func() {
			v := proof.NewVersion(llm.GeneratedRawContentItem{Content: "auto."}, "auto.", "")
			_, err := completion.BuildFixChat(openAIParams(), hole, nil, []*proof.Version{v})
			Expect(err).To(MatchError(proof.ErrInvariant))
		})
	})

	It("substitutes every diagnostic placeholder", func() {
		profile := openAIParams(withSetting("multiroundProfile", map[string]any{
			"maxRoundsNumber": 1, "proofFixPrompt": "${diagnostic} / ${diagnostic}",
		})).Common().MultiroundProfile
		Expect(completion.FixPrompt(profile, "boom")).To(Equal("boom / boom"))
	})
})
