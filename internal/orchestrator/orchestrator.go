package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/taskforge/internal/config"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

// Fixed outputs for terminal statuses that carry no synthesized answer.
const (
	NoPlanMessage           = "No actionable plan could be generated for the task."
	NoWorkersMessage        = "None of the available workers are relevant to the task."
	SynthesisFailureMessage = "Orchestration failed: unable to synthesize a final result."
)

// ErrEmptyTask is returned when Orchestrate is called without a task.
var ErrEmptyTask = errors.New("task is empty")

// Variant identifies an orchestration strategy.
type Variant string

const (
	// VariantLinearChain pipes each worker's output into the next.
	VariantLinearChain Variant = config.VariantLinearChain
	// VariantFanOutFanIn runs selected roster workers in parallel and synthesizes.
	VariantFanOutFanIn Variant = config.VariantFanOutFanIn
	// VariantDependencyGraph plans subtasks, runs them in dependency order and synthesizes.
	VariantDependencyGraph Variant = config.VariantDependencyGraph
)

// ParseVariant converts a registry variant name.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case VariantLinearChain, VariantFanOutFanIn, VariantDependencyGraph:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// Status is the terminal state of a run.
type Status string

const (
	// StatusCompleted indicates the run produced a final answer.
	StatusCompleted Status = "completed"
	// StatusFailed indicates a chain step or synthesis failed.
	StatusFailed Status = "failed"
	// StatusNoPlan indicates planning produced no actionable subtasks.
	StatusNoPlan Status = "no_plan"
	// StatusNoWorkers indicates no roster worker was selected.
	StatusNoWorkers Status = "no_workers"
)

// Step records one worker execution within a run.
type Step struct {
	// Index is the 1-based position in execution order.
	Index int `json:"index"`
	// ID is the subtask id or roster worker name.
	ID          string               `json:"id"`
	Role        string               `json:"role"`
	Description string               `json:"description,omitempty"`
	Status      models.OutcomeStatus `json:"status"`
	// Output is the payload, or the error payload for failed steps.
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Result is the outcome of one Orchestrate call.
type Result struct {
	RunID   string  `json:"run_id"`
	Variant Variant `json:"variant"`
	Status  Status  `json:"status"`
	Output  string  `json:"output"`
	Steps   []Step  `json:"steps,omitempty"`
	// Plan is set by the DependencyGraph variant.
	Plan     *models.Plan  `json:"plan,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the run completed with an answer.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == StatusCompleted
}

// Orchestrator turns a task into a final answer.
// The error return is reserved for precondition failures such as an empty
// task or a worker that cannot be built; every worker or synthesis failure
// is reported through Result.Status.
type Orchestrator interface {
	Orchestrate(ctx context.Context, task string) (*Result, error)
	Variant() Variant
}

// run tracks one Orchestrate call.
type run struct {
	id      string
	variant Variant
	start   time.Time
	opts    *options
	logger  *Logger
	steps   []Step
}

func (o *options) begin(ctx context.Context, variant Variant, task string) *run {
	r := &run{
		id:      uuid.New().String(),
		variant: variant,
		start:   time.Now(),
		opts:    o,
	}
	r.logger = o.logger.WithRun(r.id).With("orchestrator", o.name, "variant", string(variant))
	r.logger.Info("run started", "task_len", len(task))
	r.emit(models.Event{Type: models.EventRunStarted, Message: task})

	if o.journal != nil {
		if err := o.journal.StartRun(ctx, r.id, o.name, string(variant), task); err != nil {
			r.logger.Warn("journal start failed", "error", err)
		}
	}
	return r
}

func (r *run) emit(e models.Event) {
	e.RunID = r.id
	r.opts.events.Emit(e)
}

// sink forwards engine events tagged with the run id.
func (r *run) sink() models.EventSink {
	if r.opts.events == nil {
		return nil
	}
	return r.emit
}

func (r *run) record(ctx context.Context, step Step) {
	step.Index = len(r.steps) + 1
	r.steps = append(r.steps, step)

	if r.opts.journal != nil {
		if err := r.opts.journal.RecordStep(ctx, r.id, step); err != nil {
			r.logger.Warn("journal step failed", "step", step.ID, "error", err)
		}
	}
}

// recordOutcomes appends one step per node in order from an execution result.
func (r *run) recordOutcomes(ctx context.Context, order []*models.SubtaskNode, result *models.ExecutionResult) {
	for _, node := range order {
		outcome, _ := result.Get(node.ID)
		role := node.AssignedRole
		if role == "" {
			role = models.DefaultRole
		}
		r.record(ctx, Step{
			ID:          node.ID,
			Role:        role,
			Description: node.Description,
			Status:      outcome.Status,
			Output:      outcome.Text(),
		})
	}
}

func (r *run) finish(ctx context.Context, status Status, output string) *Result {
	res := &Result{
		RunID:    r.id,
		Variant:  r.variant,
		Status:   status,
		Output:   output,
		Steps:    r.steps,
		Duration: time.Since(r.start),
	}

	r.logger.Info("run finished", "status", string(status), "steps", len(r.steps), "duration", res.Duration)
	r.emit(models.Event{Type: models.EventRunCompleted, Message: string(status), Duration: res.Duration})

	if r.opts.journal != nil {
		if err := r.opts.journal.FinishRun(ctx, r.id, string(status), output); err != nil {
			r.logger.Warn("journal finish failed", "error", err)
		}
	}
	return res
}

// abort closes the run after a precondition failure.
func (r *run) abort(ctx context.Context, err error) error {
	r.logger.Error("run aborted", "error", err)
	r.finish(ctx, StatusFailed, err.Error())
	return err
}
