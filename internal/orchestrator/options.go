package orchestrator

import (
	"github.com/ShayCichocki/taskforge/internal/engine"
	"github.com/ShayCichocki/taskforge/internal/synthesize"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

// Option configures an orchestrator. Use With* functions to create Options.
type Option func(*options)

// options holds all optional configuration shared by the variants.
type options struct {
	name        string
	logger      *Logger
	events      models.EventSink
	journal     Journal
	mode        engine.Mode
	strict      bool
	maxParallel int
	synthOpts   []synthesize.Option
}

func newOptions(variant Variant, opts []Option) *options {
	o := &options{
		name:   string(variant),
		logger: NopLogger(),
		mode:   engine.ModeSequential,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithName sets the registry name reported in logs and the journal.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEvents sets the sink that receives run and subtask events.
func WithEvents(sink models.EventSink) Option {
	return func(o *options) { o.events = sink }
}

// WithJournal sets the run journal.
func WithJournal(j Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithExecutionMode sets how DependencyGraph runs its subtasks.
func WithExecutionMode(m engine.Mode) Option {
	return func(o *options) {
		if m != "" {
			o.mode = m
		}
	}
}

// WithStrict makes DependencyGraph reject cyclic plans and dangling dependencies.
func WithStrict(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithMaxParallel bounds concurrent workers. Zero means no bound.
func WithMaxParallel(n int) Option {
	return func(o *options) { o.maxParallel = n }
}

// WithMinAnswerLength overrides the synthesizer's degenerate-answer threshold.
func WithMinAnswerLength(n int) Option {
	return func(o *options) {
		o.synthOpts = append(o.synthOpts, synthesize.WithMinAnswerLength(n))
	}
}
