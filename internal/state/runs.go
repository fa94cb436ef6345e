package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunStatus is the stored state of a run. Terminal values mirror the
// orchestrator's result statuses.
type RunStatus string

// RunRunning marks a run that has started but not finished. A run left in
// this state was interrupted.
const RunRunning RunStatus = "running"

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// Run is one orchestration call.
type Run struct {
	ID           string     `json:"id"`
	Orchestrator string     `json:"orchestrator"`
	Variant      string     `json:"variant"`
	Task         string     `json:"task"`
	Status       RunStatus  `json:"status"`
	Output       string     `json:"output"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SubtaskRecord is the outcome of one worker execution within a run.
type SubtaskRecord struct {
	Index       int           `json:"index"`
	SubtaskID   string        `json:"subtask_id"`
	Role        string        `json:"role"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	Output      string        `json:"output"`
	Duration    time.Duration `json:"duration"`
	RecordedAt  time.Time     `json:"recorded_at"`
}

// StartRun inserts a run in the running state.
func (db *DB) StartRun(ctx context.Context, r *Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = RunRunning
	}
	_, err := db.Exec(ctx, `
		INSERT INTO runs (id, orchestrator, variant, task, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Orchestrator, r.Variant, r.Task, string(r.Status), formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// RecordSubtask stores a subtask outcome for runID. Recording the same
// index twice replaces the earlier record.
func (db *DB) RecordSubtask(ctx context.Context, runID string, rec *SubtaskRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	_, err := db.Exec(ctx, `
		INSERT OR REPLACE INTO subtask_results
			(run_id, idx, subtask_id, role, description, status, output, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, rec.Index, rec.SubtaskID, rec.Role, rec.Description, rec.Status, rec.Output,
		rec.Duration.Milliseconds(), formatTime(rec.RecordedAt))
	if err != nil {
		return fmt.Errorf("record subtask %s: %w", rec.SubtaskID, err)
	}
	return nil
}

// FinishRun sets the terminal status and output of a run.
func (db *DB) FinishRun(ctx context.Context, runID string, status RunStatus, output string) error {
	result, err := db.Exec(ctx, `
		UPDATE runs SET status = ?, output = ?, finished_at = ? WHERE id = ?
	`, string(status), output, formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// GetRun retrieves a run by id.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRow(ctx, `
		SELECT id, orchestrator, variant, task, status, output, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(ctx, `
		SELECT id, orchestrator, variant, task, status, output, started_at, finished_at
		FROM runs ORDER BY rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ListSubtasks returns the recorded subtask outcomes of a run in execution order.
func (db *DB) ListSubtasks(ctx context.Context, runID string) ([]SubtaskRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT idx, subtask_id, role, description, status, output, duration_ms, recorded_at
		FROM subtask_results WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	var records []SubtaskRecord
	for rows.Next() {
		var rec SubtaskRecord
		var description, output sql.NullString
		var durationMS int64
		var recordedAt string
		if err := rows.Scan(&rec.Index, &rec.SubtaskID, &rec.Role, &description, &rec.Status,
			&output, &durationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		rec.Description = description.String
		rec.Output = output.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.RecordedAt, _ = parseTime(recordedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var output, finishedAt sql.NullString
	var startedAt string
	if err := row.Scan(&r.ID, &r.Orchestrator, &r.Variant, &r.Task, &r.Status,
		&output, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.Output = output.String
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}
