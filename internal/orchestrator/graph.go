package orchestrator

import (
	"context"
	"strings"

	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/internal/decompose"
	"github.com/ShayCichocki/taskforge/internal/engine"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

// DependencyGraph plans the task into subtasks, runs them in dependency
// order with workers built per subtask, and synthesizes one answer.
type DependencyGraph struct {
	collaborator api.Completer
	factory      engine.WorkerFactory
	opts         *options
}

// NewDependencyGraph creates a planning orchestrator. The collaborator is
// used for both planning and synthesis.
func NewDependencyGraph(collaborator api.Completer, factory engine.WorkerFactory, opts ...Option) (*DependencyGraph, error) {
	if collaborator == nil {
		return nil, ErrMissingCollaborator
	}
	if factory == nil {
		return nil, ErrMissingWorkers
	}
	return &DependencyGraph{
		collaborator: collaborator,
		factory:      factory,
		opts:         newOptions(VariantDependencyGraph, opts),
	}, nil
}

// Variant returns VariantDependencyGraph.
func (d *DependencyGraph) Variant() Variant {
	return VariantDependencyGraph
}

// Plan acquires a plan for task without executing it.
func (d *DependencyGraph) Plan(ctx context.Context, task string) (*models.Plan, error) {
	if strings.TrimSpace(task) == "" {
		return nil, ErrEmptyTask
	}
	logger := d.opts.logger.With("orchestrator", d.opts.name).WithPhase("planning")
	return decompose.New(d.collaborator, logger.Slog()).Plan(ctx, task), nil
}

// Orchestrate plans, schedules, executes and synthesizes.
func (d *DependencyGraph) Orchestrate(ctx context.Context, task string) (*Result, error) {
	if strings.TrimSpace(task) == "" {
		return nil, ErrEmptyTask
	}
	r := d.opts.begin(ctx, VariantDependencyGraph, task)

	plan := decompose.New(d.collaborator, r.logger.WithPhase("planning").Slog()).Plan(ctx, task)
	r.emit(models.Event{Type: models.EventPlanCreated, Message: plan.ID})
	r.logger.Info("plan acquired", "plan_id", plan.ID, "subtasks", plan.Len())

	if plan.IsEmpty() {
		res := r.finish(ctx, StatusNoPlan, NoPlanMessage)
		res.Plan = plan
		return res, nil
	}

	eng := engine.New(d.factory,
		engine.WithMode(d.opts.mode),
		engine.WithStrict(d.opts.strict),
		engine.WithMaxParallel(d.opts.maxParallel),
		engine.WithLogger(r.logger.WithPhase("execution").Slog()),
		engine.WithEvents(r.sink()),
	)
	order, result, err := eng.Run(ctx, plan)
	if err != nil {
		return nil, r.abort(ctx, err)
	}
	r.recordOutcomes(ctx, order, result)

	output, status := synthesizeRun(ctx, r, d.collaborator, task, plan, order, result)
	res := r.finish(ctx, status, output)
	res.Plan = plan
	return res, nil
}
