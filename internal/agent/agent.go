// Package agent provides the workers that execute individual units of work.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

// Worker executes one unit of work and returns its textual result.
type Worker interface {
	// Execute runs the worker against the given instructions.
	Execute(ctx context.Context, instructions string) (string, error)
	// Spec returns the specification the worker was built from.
	Spec() models.WorkerSpec
}

// Augmenter supplies external context (search results, retrieved documents)
// to augmented workers. Concrete capabilities live outside this module.
type Augmenter interface {
	Augment(ctx context.Context, query string) (string, error)
}

// AugmenterFunc adapts a function to the Augmenter interface.
type AugmenterFunc func(ctx context.Context, query string) (string, error)

// Augment calls f.
func (f AugmenterFunc) Augment(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// CompletionWorker answers instructions with a single completion call,
// framed by its role and objective.
type CompletionWorker struct {
	spec      models.WorkerSpec
	completer api.Completer
}

// NewCompletionWorker creates a completion-backed worker.
func NewCompletionWorker(spec models.WorkerSpec, completer api.Completer) *CompletionWorker {
	return &CompletionWorker{spec: spec, completer: completer}
}

// Spec returns the worker specification.
func (w *CompletionWorker) Spec() models.WorkerSpec {
	return w.spec
}

// Execute builds the worker prompt and submits it.
func (w *CompletionWorker) Execute(ctx context.Context, instructions string) (string, error) {
	return w.complete(ctx, buildWorkerPrompt(w.spec, instructions, ""))
}

func (w *CompletionWorker) complete(ctx context.Context, prompt string) (string, error) {
	out, err := w.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", w.spec.Role, err)
	}
	return out, nil
}

// AugmentedWorker consults an Augmenter before completing and hands the
// findings to the model alongside the instructions.
type AugmentedWorker struct {
	CompletionWorker
	augmenter Augmenter
	logger    *slog.Logger
}

// NewAugmentedWorker creates a worker that augments its prompt.
func NewAugmentedWorker(spec models.WorkerSpec, completer api.Completer, augmenter Augmenter, logger *slog.Logger) *AugmentedWorker {
	return &AugmentedWorker{
		CompletionWorker: CompletionWorker{spec: spec, completer: completer},
		augmenter:        augmenter,
		logger:           logger,
	}
}

// Execute gathers augmented context, then completes. Augmentation failures
// degrade to a plain completion.
func (w *AugmentedWorker) Execute(ctx context.Context, instructions string) (string, error) {
	var findings string
	if w.augmenter != nil {
		query := w.spec.Objective
		if query == "" {
			query = instructions
		}
		res, err := w.augmenter.Augment(ctx, query)
		if err != nil {
			w.logger.Warn("augmentation failed, continuing without it",
				"worker", w.spec.Name, "role", w.spec.Role, "error", err)
		} else {
			findings = res
		}
	}
	return w.complete(ctx, buildWorkerPrompt(w.spec, instructions, findings))
}

// buildWorkerPrompt frames instructions with the worker's role.
func buildWorkerPrompt(spec models.WorkerSpec, instructions, findings string) string {
	var b strings.Builder

	role := spec.Role
	if role == "" {
		role = models.DefaultRole
	}
	fmt.Fprintf(&b, "You are a %s.\n", role)
	if spec.Objective != "" {
		fmt.Fprintf(&b, "Your objective: %s\n", spec.Objective)
	}
	if spec.Instructions != "" && spec.Instructions != instructions {
		fmt.Fprintf(&b, "\n%s\n", spec.Instructions)
	}
	if findings != "" {
		fmt.Fprintf(&b, "\n## Reference material\n%s\n", findings)
	}
	fmt.Fprintf(&b, "\n## Task\n%s\n", instructions)
	b.WriteString("\nRespond with the result of the task only.")

	return b.String()
}

// Compile-time interface checks.
var (
	_ Worker = (*CompletionWorker)(nil)
	_ Worker = (*AugmentedWorker)(nil)
)
