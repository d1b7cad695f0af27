package llm_test

import (
	"encoding/json"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/proofpilot/pkg/llm"
)

var _ = Describe("GenerationTokens", func() {
	It("derives the total from its components", func() {
		t := llm.NewGenerationTokens(100, 20)
		Expect(t.TotalTokens()).To(Equal(120))
	})

	It("clamps negative inputs", func() {
		t := llm.NewGenerationTokens(-5, 3)
		Expect(t.MessagesTokens).To(Equal(0))
		Expect(t.TotalTokens()).To(Equal(3))
	})

	It("recomputes the total on unmarshal", func() {
		var t llm.GenerationTokens
		err := json.Unmarshal([]byte(`{"messagesTokens":4,"generatedTokens":6,"totalTokens":999}`), &t)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.TotalTokens()).To(Equal(10))
	})

	It("marshals the derived total", func() {
		data, err := json.Marshal(llm.NewGenerationTokens(1, 2))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"messagesTokens":1,"generatedTokens":2,"totalTokens":3}`))
	})

	It("splits batch tokens across items", func() {
		parts := llm.SplitTokens(llm.NewGenerationTokens(10, 7), 3)
		Expect(parts).To(HaveLen(3))
		Expect(parts[0].GeneratedTokens).To(Equal(3))
		Expect(parts[1].GeneratedTokens).To(Equal(2))
		Expect(parts[2].GeneratedTokens).To(Equal(2))
		Expect(parts[2].MessagesTokens).To(Equal(10))
		Expect(llm.SplitTokens(llm.GenerationTokens{}, 0)).To(BeNil())
	})
})

var _ = Describe("Chat", func() {
	It("parses known roles and rejects unknown ones", func() {
		role, err := llm.ParseChatRole("assistant")
		Expect(err).NotTo(HaveOccurred())
		Expect(role).To(Equal(llm.RoleAssistant))

		_, err = llm.ParseChatRole("tool")
		Expect(err).To(HaveOccurred())
	})

	It("clones without sharing the backing array", func() {
		chat := llm.ChatHistory{llm.NewTextMessage(llm.RoleSystem, "sys")}
		clone := chat.Clone()
		clone[0].Content = "changed"
		Expect(chat[0].Content).To(Equal("sys"))
	})

	It("estimates tokens by rounding up", func() {
		Expect(llm.EstimateTokens("")).To(Equal(0))
		Expect(llm.EstimateTokens("abc")).To(Equal(1))
		Expect(llm.EstimateTokens("abcde")).To(Equal(2))
		Expect(llm.EstimateChatTokens(llm.ChatHistory{
			llm.NewTextMessage(llm.RoleUser, "abcd"),
			llm.NewTextMessage(llm.RoleAssistant, "abcdefgh"),
		})).To(Equal(3))
	})
})

var _ = Describe("Errors", func() {
	It("passes configuration errors through Normalize", func() {
		cfgErr := llm.NewConfigurationError("missing %s", "apiKey")
		Expect(llm.Normalize(cfgErr)).To(BeIdenticalTo(cfgErr))
		Expect(llm.IsConfigurationError(fmt.Errorf("wrapped: %w", cfgErr))).To(BeTrue())
		Expect(llm.IsRetryable(cfgErr)).To(BeFalse())
	})

	It("wraps unknown errors into GenerationFailedError", func() {
		raw := errors.New("dns error")
		normalized := llm.Normalize(raw)

		var genErr *llm.GenerationFailedError
		Expect(errors.As(normalized, &genErr)).To(BeTrue())
		Expect(errors.Is(normalized, raw)).To(BeTrue())
		Expect(llm.IsRetryable(normalized)).To(BeTrue())
	})

	It("never double-wraps a generation failure", func() {
		genErr := llm.NewGenerationFailedError(errors.New("boom"))
		Expect(llm.Normalize(fmt.Errorf("ctx: %w", genErr))).To(BeIdenticalTo(genErr))
	})

	It("keeps remote connection errors discoverable after normalization", func() {
		remote := llm.NewRemoteConnectionError("connection refused", nil)
		normalized := llm.Normalize(remote)

		var remoteErr *llm.RemoteConnectionError
		Expect(errors.As(normalized, &remoteErr)).To(BeTrue())

		kind, _ := llm.ErrorKind(normalized)
		Expect(kind).To(Equal(llm.KindRemoteConnection))
	})

	It("reports the cause message for generation failures", func() {
		kind, msg := llm.ErrorKind(llm.NewGenerationFailedError(errors.New("network failed")))
		Expect(kind).To(Equal(llm.KindGenerationFailed))
		Expect(msg).To(Equal("network failed"))
	})
})
