package orchestrator

import "context"

// Journal persists runs and their steps. Journal errors are logged and never
// change the outcome of a run.
type Journal interface {
	StartRun(ctx context.Context, runID, orchestrator, variant, task string) error
	RecordStep(ctx context.Context, runID string, step Step) error
	FinishRun(ctx context.Context, runID, status, output string) error
}
