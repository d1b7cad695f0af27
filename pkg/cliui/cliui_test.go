package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/proofpilot/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("prints a success mark and returns nil", func() {
		var out bytes.Buffer
		err := cliui.Step(&out, "loading holes", func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(ContainSubstring("loading holes"))
		Expect(out.String()).To(ContainSubstring(cliui.SuccessMark))
	})

	It("prints a fail mark and returns the error", func() {
		var out bytes.Buffer
		boom := errors.New("boom")
		err := cliui.Step(&out, "checking", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(out.String()).To(ContainSubstring(cliui.FailMark))
	})

	It("writes a single line to writers that are not terminals", func() {
		var out bytes.Buffer
		err := cliui.Step(&out, "ranking", func() error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Count(out.String(), "ranking")).To(Equal(1))
		Expect(out.String()).To(HaveSuffix("\n"))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below one second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds with one decimal above", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text of the input", func() {
		out, err := cliui.RenderMarkdown("# Results\n\nall holes **filled**")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Results"))
		Expect(out).To(ContainSubstring("filled"))
	})
})

var _ = Describe("Marks", func() {
	It("maps errors and booleans onto the same marks", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.MarkIf(true)))
		Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.MarkIf(false)))
		Expect(cliui.MarkIf(true)).To(Equal(cliui.SuccessMark))
		Expect(cliui.MarkIf(false)).To(Equal(cliui.FailMark))
	})
})

var _ = Describe("Heading and Field", func() {
	It("prints the heading label and detail", func() {
		var out bytes.Buffer
		cliui.Heading(&out, "Generations log:", "/tmp/gen.jsonl")
		Expect(out.String()).To(ContainSubstring("Generations log:"))
		Expect(out.String()).To(ContainSubstring("/tmp/gen.jsonl"))
	})

	It("shows unset fields as <not set>", func() {
		var out bytes.Buffer
		cliui.Field(&out, "embedding.model", "")
		Expect(out.String()).To(ContainSubstring("embedding.model"))
		Expect(out.String()).To(ContainSubstring("<not set>"))
	})

	It("prints set values", func() {
		var out bytes.Buffer
		cliui.Field(&out, "embedding.model", "nomic-embed-text")
		Expect(out.String()).To(ContainSubstring("nomic-embed-text"))
		Expect(out.String()).NotTo(ContainSubstring("<not set>"))
	})
})
