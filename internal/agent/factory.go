package agent

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

var (
	// ErrUnknownKind is returned for a worker kind outside the closed set.
	ErrUnknownKind = errors.New("unknown worker kind")
	// ErrNoCompleter is returned when a factory has no completion service.
	ErrNoCompleter = errors.New("worker factory has no completer")
)

// Builder constructs a worker of one kind.
type Builder func(spec models.WorkerSpec, f *Factory) (Worker, error)

// Factory builds workers from specifications. Each kind in
// models.WorkerKind has exactly one builder.
type Factory struct {
	completer api.Completer
	models    func(model string) api.Completer
	augmenter Augmenter
	timeout   time.Duration
	logger    *slog.Logger
	builders  map[models.WorkerKind]Builder
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithAugmenter sets the capability used by augmented workers.
func WithAugmenter(a Augmenter) FactoryOption {
	return func(f *Factory) { f.augmenter = a }
}

// WithTimeout bounds every Execute call. Zero disables the bound.
func WithTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) { f.timeout = d }
}

// WithModelSelector lets workers with a Model override get their own completer.
func WithModelSelector(fn func(model string) api.Completer) FactoryOption {
	return func(f *Factory) { f.models = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFactory creates a Factory over the given completion service.
func NewFactory(completer api.Completer, opts ...FactoryOption) *Factory {
	f := &Factory{
		completer: completer,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		builders: map[models.WorkerKind]Builder{
			models.WorkerKindCompletion: buildCompletion,
			models.WorkerKindAugmented:  buildAugmented,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Validate checks a specification without building it.
func (f *Factory) Validate(spec models.WorkerSpec) error {
	kind := spec.EffectiveKind()
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if f.completer == nil {
		return ErrNoCompleter
	}
	return nil
}

// New builds a worker for spec.
func (f *Factory) New(spec models.WorkerSpec) (Worker, error) {
	if err := f.Validate(spec); err != nil {
		return nil, err
	}
	spec.Kind = spec.EffectiveKind()
	if spec.Role == "" {
		spec.Role = models.DefaultRole
	}

	w, err := f.builders[spec.Kind](spec, f)
	if err != nil {
		return nil, fmt.Errorf("build %s worker %q: %w", spec.Kind, spec.Name, err)
	}
	if f.timeout > 0 {
		w = &timedWorker{Worker: w, timeout: f.timeout}
	}
	return w, nil
}

// NewRoster builds workers for every spec, failing on the first invalid one.
func (f *Factory) NewRoster(specs []models.WorkerSpec) ([]Worker, error) {
	roster := make([]Worker, 0, len(specs))
	for i, spec := range specs {
		w, err := f.New(spec)
		if err != nil {
			return nil, fmt.Errorf("roster entry %d: %w", i, err)
		}
		roster = append(roster, w)
	}
	return roster, nil
}

func (f *Factory) completerFor(spec models.WorkerSpec) api.Completer {
	if spec.Model != "" && f.models != nil {
		if c := f.models(spec.Model); c != nil {
			return c
		}
	}
	return f.completer
}

func buildCompletion(spec models.WorkerSpec, f *Factory) (Worker, error) {
	return NewCompletionWorker(spec, f.completerFor(spec)), nil
}

func buildAugmented(spec models.WorkerSpec, f *Factory) (Worker, error) {
	if f.augmenter == nil {
		f.logger.Debug("no augmenter configured, augmented worker runs as completion",
			"worker", spec.Name, "role", spec.Role)
	}
	return NewAugmentedWorker(spec, f.completerFor(spec), f.augmenter, f.logger), nil
}
