package models

import "time"

// EventType represents the type of orchestration event.
type EventType string

const (
	// EventRunStarted indicates an orchestration run has started.
	EventRunStarted EventType = "run_started"
	// EventPlanCreated indicates a plan was acquired.
	EventPlanCreated EventType = "plan_created"
	// EventSubtaskStarted indicates a subtask or roster worker started.
	EventSubtaskStarted EventType = "subtask_started"
	// EventSubtaskCompleted indicates a subtask completed successfully.
	EventSubtaskCompleted EventType = "subtask_completed"
	// EventSubtaskFailed indicates a subtask failed.
	EventSubtaskFailed EventType = "subtask_failed"
	// EventSynthesisStarted indicates synthesis has started.
	EventSynthesisStarted EventType = "synthesis_started"
	// EventSynthesisCompleted indicates synthesis has finished.
	EventSynthesisCompleted EventType = "synthesis_completed"
	// EventRunCompleted indicates the run has reached a terminal status.
	EventRunCompleted EventType = "run_completed"
)

// Event is emitted while an orchestration runs.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID is the orchestration run, if known.
	RunID string
	// SubtaskID is the related subtask or roster worker name.
	SubtaskID string
	// Role is the worker role for subtask events.
	Role string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Duration is the elapsed time for completion events.
	Duration time.Duration
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventSink receives events. Sinks must not block for long.
type EventSink func(Event)

// Emit delivers e to the sink, stamping the time. A nil sink drops the event.
func (s EventSink) Emit(e Event) {
	if s == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s(e)
}
