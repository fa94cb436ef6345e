package models

import (
	"sort"
	"sync"
)

// OutcomeStatus is the terminal state of one executed subtask.
type OutcomeStatus string

const (
	// OutcomeSucceeded indicates the worker produced a payload.
	OutcomeSucceeded OutcomeStatus = "succeeded"
	// OutcomeFailed indicates the worker returned an error.
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is the recorded result of one subtask.
type Outcome struct {
	// Status is succeeded or failed.
	Status OutcomeStatus `json:"status"`
	// Output is the worker payload on success.
	Output string `json:"output,omitempty"`
	// Err is the descriptive error payload on failure.
	Err string `json:"error,omitempty"`
}

// Text returns the payload for successes and the error payload for failures.
func (o Outcome) Text() string {
	if o.Status == OutcomeFailed {
		return o.Err
	}
	return o.Output
}

// ExecutionResult maps subtask ids to outcomes. It is safe for concurrent use.
type ExecutionResult struct {
	mu       sync.RWMutex
	outcomes map[string]Outcome
}

// NewExecutionResult creates an empty result set.
func NewExecutionResult() *ExecutionResult {
	return &ExecutionResult{outcomes: make(map[string]Outcome)}
}

// Succeed records a successful payload for id.
func (r *ExecutionResult) Succeed(id, output string) {
	r.Set(id, Outcome{Status: OutcomeSucceeded, Output: output})
}

// Fail records an error payload for id.
func (r *ExecutionResult) Fail(id, errText string) {
	r.Set(id, Outcome{Status: OutcomeFailed, Err: errText})
}

// Set records an outcome, replacing any previous entry.
func (r *ExecutionResult) Set(id string, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[id] = o
}

// Get returns the outcome for id.
func (r *ExecutionResult) Get(id string) (Outcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.outcomes[id]
	return o, ok
}

// Len returns the number of recorded outcomes.
func (r *ExecutionResult) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outcomes)
}

// Failed returns the sorted ids of failed subtasks.
func (r *ExecutionResult) Failed() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, o := range r.outcomes {
		if o.Status == OutcomeFailed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of all outcomes.
func (r *ExecutionResult) Snapshot() map[string]Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Outcome, len(r.outcomes))
	for id, o := range r.outcomes {
		out[id] = o
	}
	return out
}
