package sse

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds one stream line; model chunks stay well below it.
const maxLineSize = 1024 * 1024

// Reader parses events from a byte stream. When a transcript writer is set,
// every raw line read is copied to it, which the generation backends use to
// keep the raw stream around for error reports.
type Reader struct {
	scanner    *bufio.Scanner
	transcript io.Writer

	current Event
	hasData bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{scanner: scanner, transcript: io.Discard}
}

// WithTranscript copies every raw line read, including comments and blank
// delimiters, to w.
func (r *Reader) WithTranscript(w io.Writer) *Reader {
	r.transcript = w
	return r
}

// Next returns the next event, or (nil, nil) at the end of the stream. An
// event still open when the stream ends is returned as if it were terminated.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()
		if _, err := io.WriteString(r.transcript, raw+"\n"); err != nil {
			return nil, err
		}

		switch {
		case raw == "":
			if r.hasData {
				return r.take(), nil
			}
		case strings.HasPrefix(raw, ":"):
		default:
			r.parseLine(raw)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if r.hasData {
		return r.take(), nil
	}
	return nil, nil
}

// Each calls fn for every remaining event until the stream ends or fn
// returns false or an error.
func (r *Reader) Each(fn func(*Event) (bool, error)) error {
	for {
		ev, err := r.Next()
		if err != nil || ev == nil {
			return err
		}
		more, err := fn(ev)
		if err != nil || !more {
			return err
		}
	}
}

func (r *Reader) parseLine(line string) {
	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
	case "event":
		r.current.Type = value
	case "id":
		r.current.ID = value
	default:
		return
	}
	r.hasData = true
}

func (r *Reader) take() *Event {
	ev := r.current
	r.current = Event{}
	r.hasData = false
	return &ev
}
