package eventstream

import "context"

// Publisher publishes completion events to an event stream backend.
type Publisher interface {
	PublishCompletion(ctx context.Context, event *CompletionFinishedEvent) error
	Close() error
}
