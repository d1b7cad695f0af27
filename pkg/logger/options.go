package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger created with New.
type Option func(*settings)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(s *settings) {
		s.level = slog.LevelInfo
		if debug {
			s.level = slog.LevelDebug
		}
	}
}

// WithPretty switches to the colorized charmbracelet/log handler used for
// interactive CLI output. It takes precedence over WithJSON.
func WithPretty(pretty bool) Option {
	return func(s *settings) {
		if pretty {
			s.format = formatPretty
		} else if s.format == formatPretty {
			s.format = formatText
		}
	}
}

// WithJSON switches to slog's JSON handler, used for machine-readable run logs.
func WithJSON(json bool) Option {
	return func(s *settings) {
		if json && s.format != formatPretty {
			s.format = formatJSON
		} else if !json && s.format == formatJSON {
			s.format = formatText
		}
	}
}

// WithWriter replaces the output writers with w.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.out = []io.Writer{w}
	}
}

// WithWriters writes every record to all of ws.
func WithWriters(ws ...io.Writer) Option {
	return func(s *settings) {
		s.out = ws
	}
}

// WithSource adds the caller's file:line to each record.
func WithSource(source bool) Option {
	return func(s *settings) {
		s.source = source
	}
}

// WithAttrs attaches attrs to every record, e.g. the run id of a complete
// invocation.
func WithAttrs(attrs ...slog.Attr) Option {
	return func(s *settings) {
		s.attrs = append(s.attrs, attrs...)
	}
}
