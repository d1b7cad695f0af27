// Package eventstream publishes hole completion outcomes to an event stream so
// external consumers (dashboards, experiment trackers) can follow a run.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCompletionFinished is emitted once per hole when its
	// completion reaches a terminal status.
	EventTypeCompletionFinished = "proofpilot.completion.finished"
)

// CompletionFinishedEvent is a transport-neutral payload for one finished hole.
type CompletionFinishedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	Hole    HoleRef    `json:"hole"`
	Outcome Outcome    `json:"outcome"`
	Models  []ModelRun `json:"models"`
}

// HoleRef identifies the completed hole.
type HoleRef struct {
	ID      string `json:"id"`
	URI     string `json:"uri"`
	Theorem string `json:"theorem"`
}

// Outcome summarizes the terminal result.
type Outcome struct {
	Status     string `json:"status"`
	Proof      string `json:"proof,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// ModelRun summarizes the rounds spent on one configured model.
type ModelRun struct {
	Service     string `json:"service"`
	ModelID     string `json:"model_id"`
	Status      string `json:"status"`
	Rounds      int    `json:"rounds"`
	Candidates  int    `json:"candidates"`
	TotalTokens int    `json:"total_tokens"`
}

// NewCompletionFinishedEvent fills the envelope fields.
func NewCompletionFinishedEvent(now time.Time, hole HoleRef, outcome Outcome, models []ModelRun) *CompletionFinishedEvent {
	return &CompletionFinishedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCompletionFinished,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     now.UTC(),
		Hole:          hole,
		Outcome:       outcome,
		Models:        models,
	}
}
