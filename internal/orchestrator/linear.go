package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/taskforge/internal/agent"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

// LinearChain runs its roster in order, handing each worker the previous
// worker's output. The first failure stops the chain.
type LinearChain struct {
	workers []agent.Worker
	opts    *options
}

// NewLinearChain creates a chain over workers.
func NewLinearChain(workers []agent.Worker, opts ...Option) (*LinearChain, error) {
	if len(workers) == 0 {
		return nil, ErrMissingWorkers
	}
	return &LinearChain{
		workers: append([]agent.Worker(nil), workers...),
		opts:    newOptions(VariantLinearChain, opts),
	}, nil
}

// Variant returns VariantLinearChain.
func (c *LinearChain) Variant() Variant {
	return VariantLinearChain
}

// Orchestrate runs the chain on task.
func (c *LinearChain) Orchestrate(ctx context.Context, task string) (*Result, error) {
	if strings.TrimSpace(task) == "" {
		return nil, ErrEmptyTask
	}
	r := c.opts.begin(ctx, VariantLinearChain, task)
	logger := r.logger.WithPhase("execution")

	input := task
	for i, w := range c.workers {
		spec := w.Spec()
		id := spec.Name
		if id == "" {
			id = fmt.Sprintf("step%d", i+1)
		}

		r.emit(models.Event{Type: models.EventSubtaskStarted, SubtaskID: id, Role: spec.Role})
		logger.Info("chain step started", "step", i+1, "worker", id, "role", spec.Role)

		start := time.Now()
		out, err := w.Execute(ctx, input)
		elapsed := time.Since(start)

		if err != nil {
			msg := fmt.Sprintf("Step %d (%s) failed: %v", i+1, spec.Role, err)
			logger.Warn("chain step failed", "step", i+1, "worker", id, "error", err)
			r.emit(models.Event{Type: models.EventSubtaskFailed, SubtaskID: id, Role: spec.Role, Error: err, Duration: elapsed})
			r.record(ctx, Step{ID: id, Role: spec.Role, Status: models.OutcomeFailed, Output: msg, Duration: elapsed})
			return r.finish(ctx, StatusFailed, msg), nil
		}

		r.emit(models.Event{Type: models.EventSubtaskCompleted, SubtaskID: id, Role: spec.Role, Duration: elapsed})
		r.record(ctx, Step{ID: id, Role: spec.Role, Status: models.OutcomeSucceeded, Output: out, Duration: elapsed})
		input = out
	}

	return r.finish(ctx, StatusCompleted, input), nil
}
