package models

// WorkerKind identifies how a worker is built.
type WorkerKind string

const (
	// WorkerKindCompletion is a worker backed by a plain completion call.
	WorkerKindCompletion WorkerKind = "completion"
	// WorkerKindAugmented is a completion worker that first consults an
	// external capability (for example search) and folds its findings into
	// the instructions.
	WorkerKindAugmented WorkerKind = "augmented"
)

// Valid returns true if the kind is a known value.
func (k WorkerKind) Valid() bool {
	switch k {
	case WorkerKindCompletion, WorkerKindAugmented:
		return true
	default:
		return false
	}
}

// WorkerSpec describes a worker to be constructed by a factory.
type WorkerSpec struct {
	// Kind selects the builder.
	Kind WorkerKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	// Name identifies the worker within a roster. For plan-built workers this
	// is the subtask id.
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	// Role is the capability label, e.g. "Market Analyst".
	Role string `json:"role" yaml:"role" mapstructure:"role"`
	// Objective is the worker's goal.
	Objective string `json:"objective,omitempty" yaml:"objective" mapstructure:"objective"`
	// Instructions are standing instructions prepended to every execution.
	Instructions string `json:"instructions,omitempty" yaml:"instructions" mapstructure:"instructions"`
	// Augmented enables the augmented capability for completion workers.
	Augmented bool `json:"augmented,omitempty" yaml:"augmented" mapstructure:"augmented"`
	// Model overrides the collaborator model for this worker.
	Model string `json:"model,omitempty" yaml:"model" mapstructure:"model"`
}

// EffectiveKind returns the kind, defaulting to completion and upgrading to
// augmented when the flag is set.
func (s WorkerSpec) EffectiveKind() WorkerKind {
	if s.Kind == "" {
		if s.Augmented {
			return WorkerKindAugmented
		}
		return WorkerKindCompletion
	}
	return s.Kind
}
