// Package nop provides the disabled eventstream publisher.
package nop

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/proofpilot/pkg/eventstream"
	"github.com/papercomputeco/proofpilot/pkg/logger"
)

// Publisher drops completion events. Each dropped event is logged at debug
// level so a disabled stream can still be followed in run logs.
type Publisher struct {
	log *slog.Logger
}

// NewPublisher builds a Publisher. A nil logger discards the debug lines.
func NewPublisher(log *slog.Logger) *Publisher {
	return &Publisher{log: logger.Named(log, "eventstream")}
}

// PublishCompletion validates the event and drops it.
func (p *Publisher) PublishCompletion(ctx context.Context, event *eventstream.CompletionFinishedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	p.log.DebugContext(ctx, "completion event not published",
		"event_id", event.EventID,
		"hole", event.Hole.ID,
		"status", event.Outcome.Status,
	)
	return nil
}

func (p *Publisher) Close() error {
	return nil
}
