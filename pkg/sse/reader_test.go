package sse_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/proofpilot/pkg/sse"
)

func readAll(r *sse.Reader) []sse.Event {
	var out []sse.Event
	Expect(r.Each(func(ev *sse.Event) (bool, error) {
		out = append(out, *ev)
		return true, nil
	})).To(Succeed())
	return out
}

var _ = Describe("Reader", func() {
	It("parses consecutive events", func() {
		events := readAll(sse.NewReader(strings.NewReader("data: first\n\ndata: second\n\n")))
		Expect(events).To(Equal([]sse.Event{{Data: "first"}, {Data: "second"}}))
	})

	It("parses type and id fields", func() {
		events := readAll(sse.NewReader(strings.NewReader("event: Content\nid: 7\ndata: {}\n\n")))
		Expect(events).To(Equal([]sse.Event{{Type: "Content", ID: "7", Data: "{}"}}))
	})

	It("joins multiple data lines with a newline", func() {
		events := readAll(sse.NewReader(strings.NewReader("data: a\ndata: b\n\n")))
		Expect(events).To(Equal([]sse.Event{{Data: "a\nb"}}))
	})

	It("parses a chat content stream", func() {
		stream := `data: {"type":"Content","content":"intros."}

data: {"type":"Content","content":" auto."}

data: end

`
		events := readAll(sse.NewReader(strings.NewReader(stream)))
		Expect(events).To(HaveLen(3))
		Expect(events[2].Data).To(Equal("end"))
	})

	DescribeTable("handles field variations",
		func(stream string, expected []sse.Event) {
			Expect(readAll(sse.NewReader(strings.NewReader(stream)))).To(Equal(expected))
		},
		Entry("no space after colon", "data:x\n\n", []sse.Event{{Data: "x"}}),
		Entry("empty data field", "data:\n\n", []sse.Event{{}}),
		Entry("comments only", ": keep-alive\n\n", nil),
		Entry("blank lines only", "\n\n\n", nil),
		Entry("empty input", "", nil),
		Entry("unterminated last event", "data: tail", []sse.Event{{Data: "tail"}}),
		Entry("unknown fields", "retry: 10\nfoo: bar\n\n", nil),
		Entry("field without colon", "data\n\n", []sse.Event{{}}),
	)

	It("stops when the callback asks to", func() {
		r := sse.NewReader(strings.NewReader("data: 1\n\ndata: 2\n\n"))
		var seen int
		Expect(r.Each(func(*sse.Event) (bool, error) {
			seen++
			return false, nil
		})).To(Succeed())
		Expect(seen).To(Equal(1))

		ev, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Data).To(Equal("2"))
	})

	It("propagates callback errors", func() {
		boom := errors.New("boom")
		err := sse.NewReader(strings.NewReader("data: 1\n\n")).Each(func(*sse.Event) (bool, error) {
			return true, boom
		})
		Expect(err).To(MatchError(boom))
	})

	It("copies the raw stream to the transcript", func() {
		stream := ": hello\ndata: x\n\n"
		var transcript bytes.Buffer
		readAll(sse.NewReader(strings.NewReader(stream)).WithTranscript(&transcript))
		Expect(transcript.String()).To(Equal(stream))
	})
})
