// Package sse reads Server-Sent Events from streaming model backends. It only
// reads; nothing here writes or serves events.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is one parsed event, delimited by a blank line in the stream.
type Event struct {
	// Type comes from the "event:" field; empty means "message".
	Type string

	// Data joins all "data:" lines of the event with "\n".
	Data string

	ID string
}
