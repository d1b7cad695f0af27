package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/proofpilot/pkg/logger"
)

func decodeLines(buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		Expect(json.Unmarshal([]byte(line), &m)).To(Succeed())
		out = append(out, m)
	}
	return out
}

var time0 = time.Unix(0, 0)

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }
func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h failingHandler) WithGroup(string) slog.Handler           { return h }

var _ = Describe("New", func() {
	var buf bytes.Buffer

	BeforeEach(func() {
		buf.Reset()
	})

	It("writes slog text at Info level", func() {
		l := logger.New(logger.WithWriter(&buf))
		l.Info("hole completed", "status", "SUCCESS")
		l.Debug("requesting candidates")

		Expect(buf.String()).To(ContainSubstring("msg=\"hole completed\""))
		Expect(buf.String()).To(ContainSubstring("status=SUCCESS"))
		Expect(buf.String()).NotTo(ContainSubstring("requesting candidates"))
	})

	It("lowers the level with WithDebug", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
		l.Debug("requesting candidates", "choices", 3)

		Expect(buf.String()).To(ContainSubstring("requesting candidates"))
	})

	It("writes one JSON object per record with WithJSON", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.Info("round finished", "round", 2)
		l.Warn("repair round failed")

		lines := decodeLines(&buf)
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]["msg"]).To(Equal("round finished"))
		Expect(lines[0]["round"]).To(BeNumerically("==", 2))
		Expect(lines[1]["level"]).To(Equal("WARN"))
	})

	It("prefers the pretty handler over JSON", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithJSON(true))
		l.Info("proof found")

		Expect(buf.String()).To(ContainSubstring("proof found"))
		Expect(strings.TrimSpace(buf.String())).NotTo(HavePrefix("{"))
	})

	It("tees records to every writer", func() {
		var other bytes.Buffer
		l := logger.New(logger.WithWriters(&buf, &other))
		l.Info("checker started")

		Expect(buf.String()).To(ContainSubstring("checker started"))
		Expect(other.String()).To(Equal(buf.String()))
	})

	It("attaches WithAttrs to every record", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true),
			logger.WithAttrs(slog.String("run_id", "r-1")))
		l.Info("one")
		l.Info("two")

		for _, line := range decodeLines(&buf) {
			Expect(line).To(HaveKeyWithValue("run_id", "r-1"))
		}
	})

	It("reports the caller with WithSource", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithSource(true))
		l.Info("located")

		Expect(decodeLines(&buf)[0]).To(HaveKey(slog.SourceKey))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		l := logger.Nop()
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
			Expect(l.Handler().Enabled(context.Background(), level)).To(BeFalse())
		}
		Expect(func() { l.With("k", "v").WithGroup("g").Error("ignored") }).NotTo(Panic())
	})
})

var _ = Describe("Named", func() {
	It("tags records with the component", func() {
		var buf bytes.Buffer
		l := logger.Named(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)), "checker")
		l.Info("validated")

		Expect(decodeLines(&buf)[0]).To(HaveKeyWithValue("component", "checker"))
	})

	It("falls back to Nop for a nil logger", func() {
		Expect(logger.Named(nil, "checker").Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})
})

var _ = Describe("Multi", func() {
	It("fans records out by level", func() {
		var info, debug bytes.Buffer
		l := logger.Multi(
			logger.New(logger.WithWriter(&info), logger.WithJSON(true)),
			logger.New(logger.WithWriter(&debug), logger.WithJSON(true), logger.WithDebug(true)),
		)
		l.Debug("requesting candidates")
		l.Info("hole completed")

		Expect(decodeLines(&info)).To(HaveLen(1))
		Expect(decodeLines(&debug)).To(HaveLen(2))
	})

	It("keeps With and WithGroup on every branch", func() {
		var a, b bytes.Buffer
		l := logger.Multi(
			logger.New(logger.WithWriter(&a), logger.WithJSON(true)),
			logger.New(logger.WithWriter(&b), logger.WithJSON(true)),
		).With("hole_id", "h-1").WithGroup("round")
		l.Info("finished", "number", 1)

		for _, buf := range []*bytes.Buffer{&a, &b} {
			line := decodeLines(buf)[0]
			Expect(line).To(HaveKeyWithValue("hole_id", "h-1"))
			Expect(line["round"]).To(HaveKeyWithValue("number", BeNumerically("==", 1)))
		}
	})

	It("still writes to healthy handlers when one fails", func() {
		var buf bytes.Buffer
		healthy := logger.New(logger.WithWriter(&buf))
		l := logger.Multi(slog.New(failingHandler{}), healthy, nil)

		err := l.Handler().Handle(context.Background(), slog.NewRecord(time0, slog.LevelInfo, "kept", 0))
		Expect(err).To(MatchError(ContainSubstring("disk full")))
		Expect(buf.String()).To(ContainSubstring("kept"))
	})
})
