package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/taskforge/pkg/models"
)

// Variant names accepted in the registry table.
const (
	VariantLinearChain     = "LinearChain"
	VariantFanOutFanIn     = "FanOutFanIn"
	VariantDependencyGraph = "DependencyGraph"
)

// OrchestratorConfig describes one named orchestrator in the registry.
type OrchestratorConfig struct {
	// Variant is LinearChain, FanOutFanIn or DependencyGraph.
	Variant string `yaml:"variant" json:"variant"`
	// Description is shown by `taskforge list` and used as the tool description.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Workers is the roster for LinearChain and FanOutFanIn, in order.
	Workers []models.WorkerSpec `yaml:"workers,omitempty" json:"workers,omitempty"`
	// Collaborator overrides the model used for planning, selection and synthesis.
	Collaborator CollaboratorConfig `yaml:"collaborator,omitempty" json:"collaborator,omitempty"`
	// Strict turns plan cycles and dangling dependencies into errors.
	Strict bool `yaml:"strict,omitempty" json:"strict,omitempty"`
}

// CollaboratorConfig overrides completion settings for an orchestrator.
type CollaboratorConfig struct {
	Model     string `yaml:"model,omitempty" json:"model,omitempty"`
	MaxTokens int64  `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// registryFile is the on-disk shape of a registry table.
type registryFile struct {
	Orchestrators map[string]OrchestratorConfig `yaml:"orchestrators"`
}

// LoadRegistryFile reads the orchestrators table from a YAML file.
// A file without the table yields an empty map.
func LoadRegistryFile(path string) (map[string]OrchestratorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}
	table, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	return table, nil
}

// ParseRegistry decodes the orchestrators table from YAML.
func ParseRegistry(data []byte) (map[string]OrchestratorConfig, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Orchestrators == nil {
		return map[string]OrchestratorConfig{}, nil
	}
	return f.Orchestrators, nil
}

// MarshalRegistry encodes a registry table as YAML.
func MarshalRegistry(table map[string]OrchestratorConfig) ([]byte, error) {
	return yaml.Marshal(registryFile{Orchestrators: table})
}

// DefaultOrchestrators returns the built-in registry: a single
// DependencyGraph orchestrator that plans its own workers.
func DefaultOrchestrators() map[string]OrchestratorConfig {
	return map[string]OrchestratorConfig{
		DefaultOrchestratorName: {
			Variant:     VariantDependencyGraph,
			Description: "Plans the task into dependent subtasks, runs them and synthesizes one answer.",
		},
	}
}
