package state

import (
	"context"
	"io"
)

// RunStore handles run journal persistence.
type RunStore interface {
	StartRun(ctx context.Context, r *Run) error
	RecordSubtask(ctx context.Context, runID string, rec *SubtaskRecord) error
	FinishRun(ctx context.Context, runID string, status RunStatus, output string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListSubtasks(ctx context.Context, runID string) ([]SubtaskRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate(ctx context.Context) error
}

// Store composes the journal interfaces implemented by DB.
type Store interface {
	io.Closer
	Migrator
	RunStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store    = (*DB)(nil)
	_ RunStore = (*DB)(nil)
)
