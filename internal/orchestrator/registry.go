package orchestrator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ShayCichocki/taskforge/internal/agent"
	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/internal/config"
)

// Registry configuration errors. They are always wrapped in a ConfigError.
var (
	ErrUnknownOrchestrator = errors.New("unknown orchestrator")
	ErrUnknownVariant      = errors.New("unknown orchestrator variant")
	ErrMissingWorkers      = errors.New("orchestrator has no workers")
	ErrMissingCollaborator = errors.New("orchestrator has no collaborator")
	ErrDuplicateWorker     = errors.New("duplicate or empty worker name")
)

// ConfigError reports an invalid or unknown registry entry.
type ConfigError struct {
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("orchestrator %q: %v", e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Registry maps orchestrator names to their configuration and builds
// orchestrators on demand. The table is read-only after NewRegistry.
type Registry struct {
	configs      map[string]config.OrchestratorConfig
	completer    api.Completer
	collaborator func(config.CollaboratorConfig) api.Completer
	factoryOpts  []agent.FactoryOption
	orchOpts     []Option
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCollaboratorSelector derives the completer for an entry from its
// collaborator overrides. A nil return falls back to the default completer.
func WithCollaboratorSelector(fn func(config.CollaboratorConfig) api.Completer) RegistryOption {
	return func(r *Registry) { r.collaborator = fn }
}

// WithFactoryOptions sets options for every worker factory the registry creates.
func WithFactoryOptions(opts ...agent.FactoryOption) RegistryOption {
	return func(r *Registry) { r.factoryOpts = append(r.factoryOpts, opts...) }
}

// WithOrchestratorOptions sets options applied to every resolved orchestrator.
func WithOrchestratorOptions(opts ...Option) RegistryOption {
	return func(r *Registry) { r.orchOpts = append(r.orchOpts, opts...) }
}

// NewRegistry validates every entry and returns a registry over them.
// The first invalid entry, in name order, is returned as a ConfigError.
func NewRegistry(configs map[string]config.OrchestratorConfig, completer api.Completer, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		configs:   make(map[string]config.OrchestratorConfig, len(configs)),
		completer: completer,
	}
	for _, opt := range opts {
		opt(r)
	}
	for name, oc := range configs {
		oc.Workers = append(oc.Workers[:0:0], oc.Workers...)
		r.configs[name] = oc
	}

	for _, name := range r.Names() {
		if err := r.validate(r.configs[name]); err != nil {
			return nil, &ConfigError{Name: name, Err: err}
		}
	}
	return r, nil
}

func (r *Registry) validate(oc config.OrchestratorConfig) error {
	variant, err := ParseVariant(oc.Variant)
	if err != nil {
		return err
	}
	if r.completer == nil {
		return ErrMissingCollaborator
	}
	if variant == VariantDependencyGraph {
		return nil
	}
	if len(oc.Workers) == 0 {
		return ErrMissingWorkers
	}

	factory := agent.NewFactory(r.completer, r.factoryOpts...)
	seen := make(map[string]bool, len(oc.Workers))
	for i, spec := range oc.Workers {
		if err := factory.Validate(spec); err != nil {
			return fmt.Errorf("worker %d: %w", i, err)
		}
		if variant == VariantFanOutFanIn {
			if spec.Name == "" || seen[spec.Name] {
				return fmt.Errorf("%w: %q", ErrDuplicateWorker, spec.Name)
			}
			seen[spec.Name] = true
		}
	}
	return nil
}

// Names returns the registered orchestrator names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config returns the configuration of a registered orchestrator.
func (r *Registry) Config(name string) (config.OrchestratorConfig, bool) {
	oc, ok := r.configs[name]
	return oc, ok
}

// Resolve builds a new orchestrator for name. Every call returns a fresh
// instance; rosters are rebuilt from configuration.
func (r *Registry) Resolve(name string, opts ...Option) (Orchestrator, error) {
	oc, ok := r.configs[name]
	if !ok {
		return nil, &ConfigError{Name: name, Err: ErrUnknownOrchestrator}
	}
	variant, err := ParseVariant(oc.Variant)
	if err != nil {
		return nil, &ConfigError{Name: name, Err: err}
	}

	collaborator := r.completer
	if r.collaborator != nil {
		if c := r.collaborator(oc.Collaborator); c != nil {
			collaborator = c
		}
	}

	all := make([]Option, 0, len(r.orchOpts)+len(opts)+2)
	all = append(all, r.orchOpts...)
	all = append(all, WithName(name))
	if oc.Strict {
		all = append(all, WithStrict(true))
	}
	all = append(all, opts...)

	factory := agent.NewFactory(r.completer, r.factoryOpts...)

	var orch Orchestrator
	switch variant {
	case VariantLinearChain:
		roster, rerr := factory.NewRoster(oc.Workers)
		if rerr != nil {
			return nil, &ConfigError{Name: name, Err: rerr}
		}
		orch, err = NewLinearChain(roster, all...)
	case VariantFanOutFanIn:
		roster, rerr := factory.NewRoster(oc.Workers)
		if rerr != nil {
			return nil, &ConfigError{Name: name, Err: rerr}
		}
		orch, err = NewFanOutFanIn(collaborator, roster, all...)
	case VariantDependencyGraph:
		orch, err = NewDependencyGraph(collaborator, factory, all...)
	}
	if err != nil {
		return nil, &ConfigError{Name: name, Err: err}
	}
	return orch, nil
}
