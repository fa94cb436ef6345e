// Package decompose acquires a subtask plan for a task from the completion
// service and repairs malformed planner output.
package decompose

import (
	"context"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

// previewLen bounds how much of a planner response is logged.
const previewLen = 500

// Decomposer breaks a task into a plan of dependent subtasks.
type Decomposer struct {
	completer api.Completer
	logger    *slog.Logger
}

// New creates a Decomposer that plans with the given completer.
func New(completer api.Completer, logger *slog.Logger) *Decomposer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Decomposer{completer: completer, logger: logger}
}

// Plan asks the completer for a plan and extracts it. It always returns a
// non-nil Plan; collaborator errors and unrecoverable output both yield an
// empty one.
func (d *Decomposer) Plan(ctx context.Context, task string) *models.Plan {
	response, err := d.completer.Complete(ctx, BuildPlanningPrompt(task))
	if err != nil {
		d.logger.Warn("planning request failed", "error", err)
		return stamp(&models.Plan{Nodes: []*models.SubtaskNode{}}, task)
	}

	plan := stamp(ExtractPlan(response), task)
	if plan.IsEmpty() {
		d.logger.Warn("no actionable plan in planner response",
			"response_len", len(response), "preview", preview(response))
		return plan
	}

	d.logger.Info("plan acquired", "plan_id", plan.ID, "subtasks", plan.Len())
	return plan
}

func stamp(plan *models.Plan, task string) *models.Plan {
	plan.ID = uuid.New().String()
	plan.Task = task
	plan.CreatedAt = time.Now()
	return plan
}

// preview cuts s to previewLen bytes without splitting a rune.
func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}
