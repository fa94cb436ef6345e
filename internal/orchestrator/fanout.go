package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/taskforge/internal/agent"
	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/internal/engine"
	"github.com/ShayCichocki/taskforge/internal/synthesize"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

var quotedName = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

// FanOutFanIn asks the collaborator which roster workers are relevant,
// runs them concurrently on the task and synthesizes their results.
type FanOutFanIn struct {
	collaborator api.Completer
	workers      []agent.Worker
	opts         *options
}

// NewFanOutFanIn creates a fan-out orchestrator over a roster. Worker names
// must be unique since selection refers to them by name.
func NewFanOutFanIn(collaborator api.Completer, workers []agent.Worker, opts ...Option) (*FanOutFanIn, error) {
	if collaborator == nil {
		return nil, ErrMissingCollaborator
	}
	if len(workers) == 0 {
		return nil, ErrMissingWorkers
	}
	seen := make(map[string]bool, len(workers))
	for _, w := range workers {
		name := w.Spec().Name
		if name == "" || seen[name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateWorker, name)
		}
		seen[name] = true
	}
	return &FanOutFanIn{
		collaborator: collaborator,
		workers:      append([]agent.Worker(nil), workers...),
		opts:         newOptions(VariantFanOutFanIn, opts),
	}, nil
}

// Variant returns VariantFanOutFanIn.
func (f *FanOutFanIn) Variant() Variant {
	return VariantFanOutFanIn
}

// Orchestrate selects, runs and synthesizes.
func (f *FanOutFanIn) Orchestrate(ctx context.Context, task string) (*Result, error) {
	if strings.TrimSpace(task) == "" {
		return nil, ErrEmptyTask
	}
	r := f.opts.begin(ctx, VariantFanOutFanIn, task)

	selected := f.selectWorkers(ctx, r, task)
	if len(selected) == 0 {
		return r.finish(ctx, StatusNoWorkers, NoWorkersMessage), nil
	}

	nodes, result := f.execute(ctx, r, task, selected)
	r.recordOutcomes(ctx, nodes, result)

	plan := &models.Plan{Task: task, Nodes: nodes}
	output, status := synthesizeRun(ctx, r, f.collaborator, task, plan, nodes, result)
	return r.finish(ctx, status, output), nil
}

// selectWorkers asks the collaborator for the relevant roster names.
// A failed request selects nobody.
func (f *FanOutFanIn) selectWorkers(ctx context.Context, r *run, task string) []agent.Worker {
	logger := r.logger.WithPhase("selection")

	names := make([]string, len(f.workers))
	for i, w := range f.workers {
		names[i] = w.Spec().Name
	}

	response, err := f.collaborator.Complete(ctx, BuildSelectionPrompt(task, f.workers))
	if err != nil {
		logger.Warn("worker selection failed", "error", err)
		return nil
	}

	chosen := make(map[string]bool)
	for _, name := range ParseSelection(response, names) {
		chosen[name] = true
	}

	var selected []agent.Worker
	for _, w := range f.workers {
		if chosen[w.Spec().Name] {
			selected = append(selected, w)
		}
	}
	logger.Info("workers selected", "selected", len(selected), "roster", len(f.workers))
	return selected
}

// execute runs the selected workers concurrently. Every worker gets an
// outcome; failures never cancel the others.
func (f *FanOutFanIn) execute(ctx context.Context, r *run, task string, selected []agent.Worker) ([]*models.SubtaskNode, *models.ExecutionResult) {
	logger := r.logger.WithPhase("execution")
	result := models.NewExecutionResult()
	nodes := make([]*models.SubtaskNode, len(selected))

	var g errgroup.Group
	if f.opts.maxParallel > 0 {
		g.SetLimit(f.opts.maxParallel)
	}
	for i, w := range selected {
		spec := w.Spec()
		nodes[i] = &models.SubtaskNode{
			ID:           spec.Name,
			Description:  firstNonEmpty(spec.Objective, spec.Role),
			AssignedRole: spec.Role,
			Objective:    spec.Objective,
		}

		w := w
		g.Go(func() error {
			r.emit(models.Event{Type: models.EventSubtaskStarted, SubtaskID: spec.Name, Role: spec.Role})
			start := time.Now()
			out, err := w.Execute(ctx, task)
			elapsed := time.Since(start)

			if err != nil {
				result.Fail(spec.Name, engine.FailurePayload(spec.Name, err))
				logger.Warn("worker failed", "worker", spec.Name, "error", err)
				r.emit(models.Event{Type: models.EventSubtaskFailed, SubtaskID: spec.Name, Role: spec.Role, Error: err, Duration: elapsed})
				return nil
			}
			result.Succeed(spec.Name, out)
			r.emit(models.Event{Type: models.EventSubtaskCompleted, SubtaskID: spec.Name, Role: spec.Role, Duration: elapsed})
			return nil
		})
	}
	_ = g.Wait()

	return nodes, result
}

// BuildSelectionPrompt asks which roster workers are relevant to task.
func BuildSelectionPrompt(task string, workers []agent.Worker) string {
	var b strings.Builder

	b.WriteString("Select the workers whose expertise is needed for the task below.\n\n")
	fmt.Fprintf(&b, "Task:\n%s\n\n", task)
	b.WriteString("Available workers:\n")
	for _, w := range workers {
		spec := w.Spec()
		fmt.Fprintf(&b, "- %s: %s", spec.Name, spec.Role)
		if spec.Objective != "" {
			fmt.Fprintf(&b, " (%s)", spec.Objective)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with a JSON array of the selected worker names only, for example [\"name1\", \"name2\"]. ")
	b.WriteString("Respond with [] if none are relevant.")

	return b.String()
}

// ParseSelection extracts roster names from a selection response. It reads
// the bracketed JSON array and falls back to the quoted names inside it when
// the array is malformed. A response without brackets selects nobody.
// Unknown names are ignored and matching is case-insensitive. The result
// keeps roster order.
func ParseSelection(response string, roster []string) []string {
	var candidates []string
	if start, end := strings.IndexByte(response, '['), strings.LastIndexByte(response, ']'); start != -1 && end > start {
		var items []any
		if err := json.Unmarshal([]byte(response[start:end+1]), &items); err == nil {
			for _, item := range items {
				switch v := item.(type) {
				case string:
					candidates = append(candidates, v)
				case map[string]any:
					if name, ok := v["name"].(string); ok {
						candidates = append(candidates, name)
					}
				}
			}
		} else {
			for _, m := range quotedName.FindAllStringSubmatch(response[start:end+1], -1) {
				candidates = append(candidates, m[1])
			}
		}
	}

	wanted := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		wanted[strings.ToLower(strings.TrimSpace(c))] = true
	}

	var out []string
	for _, name := range roster {
		if wanted[strings.ToLower(name)] {
			out = append(out, name)
		}
	}
	return out
}

// synthesizeRun produces the final output for a run, mapping synthesis
// failure to the generic failure message.
func synthesizeRun(ctx context.Context, r *run, collaborator api.Completer, task string, plan *models.Plan, order []*models.SubtaskNode, result *models.ExecutionResult) (string, Status) {
	logger := r.logger.WithPhase("synthesis")
	r.emit(models.Event{Type: models.EventSynthesisStarted})

	synth := synthesize.New(collaborator, logger.Slog(), r.opts.synthOpts...)
	output, err := synth.Synthesize(ctx, task, plan, order, result)
	if err != nil {
		r.emit(models.Event{Type: models.EventSynthesisCompleted, Error: err})
		return SynthesisFailureMessage, StatusFailed
	}
	r.emit(models.Event{Type: models.EventSynthesisCompleted})
	return output, StatusCompleted
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
