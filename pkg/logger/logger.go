// Package logger builds the operational *slog.Logger that proofpilot
// components receive through their Config structs. The generations log is a
// separate artifact, see package genlog.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type format int

const (
	formatText format = iota
	formatJSON
	formatPretty
)

type settings struct {
	level  slog.Level
	format format
	source bool
	out    []io.Writer
	attrs  []slog.Attr
}

func (s *settings) writer() io.Writer {
	switch len(s.out) {
	case 0:
		return os.Stderr
	case 1:
		return s.out[0]
	default:
		return io.MultiWriter(s.out...)
	}
}

func (s *settings) handler() slog.Handler {
	w := s.writer()
	switch s.format {
	case formatPretty:
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(s.level),
			ReportTimestamp: true,
			ReportCaller:    s.source,
		})
	case formatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: s.level, AddSource: s.source})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: s.level, AddSource: s.source})
	}
}

// New creates a logger. Without options it writes slog's text format at Info
// level to os.Stderr, leaving stdout free for command results.
func New(opts ...Option) *slog.Logger {
	s := &settings{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(s)
	}

	h := s.handler()
	if len(s.attrs) > 0 {
		h = h.WithAttrs(s.attrs)
	}
	return slog.New(h)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Named tags every record of l with the component that emitted it. A nil l
// yields a Nop logger.
func Named(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l.With("component", component)
}
