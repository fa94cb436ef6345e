// Package engine executes scheduled subtasks with per-subtask failure isolation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/taskforge/internal/agent"
	"github.com/ShayCichocki/taskforge/internal/graph"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

// Delimiters around the dependency results appended to a subtask's instructions.
const (
	DependencyHeader = "--- Results from dependencies ---"
	DependencyFooter = "--- End of dependency results ---"
)

// ErrWorkerConstruction is returned when a worker cannot be built for a
// scheduled subtask. Execution does not start in that case.
var ErrWorkerConstruction = errors.New("worker construction failed")

// Mode selects how scheduled subtasks are executed.
type Mode string

const (
	// ModeSequential runs subtasks one at a time in topological order.
	ModeSequential Mode = "sequential"
	// ModeWaves runs each wave of independent subtasks concurrently.
	ModeWaves Mode = "waves"
)

// ParseMode converts a configuration string to a Mode. Empty means sequential.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSequential:
		return ModeSequential, nil
	case ModeWaves:
		return ModeWaves, nil
	default:
		return "", fmt.Errorf("unknown execution mode %q", s)
	}
}

// WorkerFactory builds workers from specifications.
// *agent.Factory satisfies it.
type WorkerFactory interface {
	New(spec models.WorkerSpec) (agent.Worker, error)
}

// Engine runs plan subtasks through workers and collects their outcomes.
type Engine struct {
	factory     WorkerFactory
	mode        Mode
	strict      bool
	maxParallel int
	logger      *slog.Logger
	events      models.EventSink
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the execution mode.
func WithMode(m Mode) Option {
	return func(e *Engine) {
		if m != "" {
			e.mode = m
		}
	}
}

// WithStrict makes scheduling reject cycles and dangling references.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithMaxParallel bounds concurrent workers in waves mode. Zero means no bound.
func WithMaxParallel(n int) Option {
	return func(e *Engine) { e.maxParallel = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEvents sets the sink for subtask events.
func WithEvents(sink models.EventSink) Option {
	return func(e *Engine) { e.events = sink }
}

// New creates an Engine that builds workers with factory.
func New(factory WorkerFactory, opts ...Option) *Engine {
	e := &Engine{
		factory: factory,
		mode:    ModeSequential,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the configured execution mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Run schedules the plan and executes it. It returns the subtasks in the
// order they were scheduled, which is the order synthesis reports them in.
func (e *Engine) Run(ctx context.Context, plan *models.Plan) ([]*models.SubtaskNode, *models.ExecutionResult, error) {
	opts := []graph.Option{graph.WithStrict(e.strict)}

	if e.mode == ModeWaves {
		waves, err := graph.ScheduleWaves(plan, e.logger, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("schedule plan: %w", err)
		}
		var order []*models.SubtaskNode
		for _, wave := range waves {
			order = append(order, wave...)
		}
		result, err := e.ExecuteWaves(ctx, waves)
		return order, result, err
	}

	order, err := graph.Schedule(plan, e.logger, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("schedule plan: %w", err)
	}
	result, err := e.Execute(ctx, order)
	return order, result, err
}

// Execute runs nodes one at a time in the given order. A worker error is
// recorded against its subtask and execution continues. Every worker is
// built before the first one runs, so a construction error leaves nothing
// executed.
func (e *Engine) Execute(ctx context.Context, nodes []*models.SubtaskNode) (*models.ExecutionResult, error) {
	workers, err := e.buildWorkers(nodes)
	if err != nil {
		return nil, err
	}

	result := models.NewExecutionResult()
	for _, node := range nodes {
		e.runNode(ctx, node, workers[node.ID], result)
	}
	return result, nil
}

// ExecuteWaves runs each wave concurrently and waits for it before starting
// the next. Failures are isolated per subtask.
func (e *Engine) ExecuteWaves(ctx context.Context, waves [][]*models.SubtaskNode) (*models.ExecutionResult, error) {
	var all []*models.SubtaskNode
	for _, wave := range waves {
		all = append(all, wave...)
	}
	workers, err := e.buildWorkers(all)
	if err != nil {
		return nil, err
	}

	result := models.NewExecutionResult()
	for i, wave := range waves {
		e.logger.Debug("executing wave", "wave", i+1, "subtasks", len(wave))

		var g errgroup.Group
		if e.maxParallel > 0 {
			g.SetLimit(e.maxParallel)
		}
		for _, node := range wave {
			node := node
			g.Go(func() error {
				e.runNode(ctx, node, workers[node.ID], result)
				return nil
			})
		}
		_ = g.Wait()
	}
	return result, nil
}

func (e *Engine) buildWorkers(nodes []*models.SubtaskNode) (map[string]agent.Worker, error) {
	workers := make(map[string]agent.Worker, len(nodes))
	for _, node := range nodes {
		w, err := e.factory.New(node.Spec())
		if err != nil {
			return nil, fmt.Errorf("%w: subtask %s: %v", ErrWorkerConstruction, node.ID, err)
		}
		workers[node.ID] = w
	}
	return workers, nil
}

// runNode executes one subtask and records exactly one outcome for it.
func (e *Engine) runNode(ctx context.Context, node *models.SubtaskNode, w agent.Worker, result *models.ExecutionResult) {
	role := w.Spec().Role
	instructions := e.composeInstructions(node, result)

	e.events.Emit(models.Event{
		Type:      models.EventSubtaskStarted,
		SubtaskID: node.ID,
		Role:      role,
		Message:   node.Description,
	})
	e.logger.Info("subtask started", "subtask", node.ID, "role", role)

	start := time.Now()
	out, err := w.Execute(ctx, instructions)
	elapsed := time.Since(start)

	if err != nil {
		result.Fail(node.ID, FailurePayload(node.ID, err))
		e.logger.Warn("subtask failed", "subtask", node.ID, "role", role, "error", err, "duration", elapsed)
		e.events.Emit(models.Event{
			Type:      models.EventSubtaskFailed,
			SubtaskID: node.ID,
			Role:      role,
			Error:     err,
			Duration:  elapsed,
		})
		return
	}

	result.Succeed(node.ID, out)
	e.logger.Info("subtask completed", "subtask", node.ID, "role", role, "duration", elapsed)
	e.events.Emit(models.Event{
		Type:      models.EventSubtaskCompleted,
		SubtaskID: node.ID,
		Role:      role,
		Duration:  elapsed,
	})
}

// FailurePayload is the text recorded for a subtask whose worker failed.
func FailurePayload(id string, err error) string {
	return fmt.Sprintf("Error executing subtask %s: %v", id, err)
}

// composeInstructions appends the results of the node's dependencies.
// Dependencies with no recorded result are logged and left out.
func (e *Engine) composeInstructions(node *models.SubtaskNode, result *models.ExecutionResult) string {
	instructions := node.Instructions
	if strings.TrimSpace(instructions) == "" {
		instructions = node.Description
	}
	if len(node.DependsOn) == 0 {
		return instructions
	}

	var entries []string
	for _, dep := range node.DependsOn {
		outcome, ok := result.Get(dep)
		if !ok {
			e.logger.Warn("dependency result missing", "subtask", node.ID, "depends_on", dep)
			continue
		}
		entries = append(entries, fmt.Sprintf("Result of %s:\n%s", dep, outcome.Text()))
	}
	if len(entries) == 0 {
		return instructions
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	b.WriteString(DependencyHeader)
	b.WriteString("\n")
	b.WriteString(strings.Join(entries, "\n\n"))
	b.WriteString("\n")
	b.WriteString(DependencyFooter)
	return b.String()
}
