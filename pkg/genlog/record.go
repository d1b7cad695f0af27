package genlog

import (
	"time"

	"github.com/papercomputeco/proofpilot/pkg/llm"
)

// Status is the outcome of one logged generation request.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// LoggedError is the error attached to a FAILURE record.
type LoggedError struct {
	Kind    string
	Message string
}

// Record is one persisted line-group of the generations log.
type Record struct {
	// Timestamp is always UTC and floored to whole seconds: the text format
	// does not keep sub-second precision.
	Timestamp       time.Time
	ModelID         string
	Status          Status
	Choices         int
	EstimatedTokens *int
	Error           *LoggedError

	// Debug is only set for records written in debug mode.
	Debug *DebugData
}

// DebugData is the extra payload of a debug-mode record. A nil slice means the
// block was not written at all, an empty slice means it was written without
// items.
type DebugData struct {
	ContextTheorems []string
	Chat            llm.ChatHistory
	GeneratedProofs []string
	Params          map[string]any
}

// NewRecord builds a record with a normalized timestamp.
func NewRecord(ts time.Time, modelID string, status Status, choices int, estimatedTokens *int, loggedErr *LoggedError) Record {
	return Record{
		Timestamp:       NormalizeTimestamp(ts),
		ModelID:         modelID,
		Status:          status,
		Choices:         choices,
		EstimatedTokens: estimatedTokens,
		Error:           loggedErr,
	}
}

// NormalizeTimestamp floors ts to the second and converts it to UTC.
func NormalizeTimestamp(ts time.Time) time.Time {
	return ts.Truncate(time.Second).UTC()
}

// IsSuccess reports whether the record logs a successful generation.
func (r *Record) IsSuccess() bool {
	return r.Status == StatusSuccess
}
