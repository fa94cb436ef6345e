// Package config handles configuration loading and management for taskforge.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DefaultOrchestratorName is the registry entry used when none is named.
const DefaultOrchestratorName = "default"

// Config holds all configuration for taskforge.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	State     StateConfig     `mapstructure:"state"`
	// Orchestrators is the registry table. It is decoded separately from the
	// config files so that orchestrator names keep their case.
	Orchestrators map[string]OrchestratorConfig `mapstructure:"-"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	Bedrock    bool   `mapstructure:"bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// ExecutionConfig holds execution engine settings.
type ExecutionConfig struct {
	// Mode is "sequential" or "waves".
	Mode string `mapstructure:"mode"`
	// Strict rejects cyclic plans and dangling dependencies.
	Strict bool `mapstructure:"strict"`
	// MaxParallel bounds concurrent workers in waves mode and fan-out. Zero is unbounded.
	MaxParallel int `mapstructure:"max_parallel"`
}

// TimeoutsConfig holds timeout settings.
type TimeoutsConfig struct {
	// Worker bounds each worker call. Zero disables the bound.
	Worker time.Duration `mapstructure:"worker"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// StateConfig holds run journal settings.
type StateConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.taskforge.yaml in current directory or parent)
// 3. User config (~/.config/taskforge/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}
	sources := []string{v.ConfigFileUsed()}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
			sources = append(sources, projectConfig)
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	orchestrators, err := loadOrchestrators(sources...)
	if err != nil {
		return nil, err
	}
	cfg.Orchestrators = orchestrators

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	orchestrators, err := loadOrchestrators(path)
	if err != nil {
		return nil, err
	}
	cfg.Orchestrators = orchestrators

	return cfg, nil
}

// loadOrchestrators merges the registry tables of the given config files.
// Later files replace same-named entries from earlier ones. With no entries
// at all the built-in default registry is returned.
func loadOrchestrators(paths ...string) (map[string]OrchestratorConfig, error) {
	merged := make(map[string]OrchestratorConfig)
	for _, path := range paths {
		if path == "" {
			continue
		}
		table, err := LoadRegistryFile(path)
		if err != nil {
			return nil, err
		}
		for name, oc := range table {
			merged[name] = oc
		}
	}
	if len(merged) == 0 {
		return DefaultOrchestrators(), nil
	}
	return merged, nil
}

// Save writes the current configuration to the user config file.
// The registry table is not written; it is maintained by hand.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading existing config: %w", err)
		}
	}

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.bedrock", cfg.Anthropic.Bedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("execution.mode", cfg.Execution.Mode)
	v.Set("execution.strict", cfg.Execution.Strict)
	v.Set("execution.max_parallel", cfg.Execution.MaxParallel)
	v.Set("timeouts.worker", cfg.Timeouts.Worker.String())
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.dir", cfg.Logging.Dir)
	v.Set("state.enabled", cfg.State.Enabled)
	v.Set("state.path", cfg.State.Path)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("execution.mode", d.Execution.Mode)
	v.SetDefault("execution.strict", false)
	v.SetDefault("execution.max_parallel", 0)

	v.SetDefault("timeouts.worker", d.Timeouts.Worker.String())

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.dir", d.Logging.Dir)

	v.SetDefault("state.enabled", d.State.Enabled)
	v.SetDefault("state.path", d.State.Path)
}

// getUserConfigDir returns the XDG config directory for taskforge.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "taskforge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "taskforge")
	}
	return filepath.Join(home, ".config", "taskforge")
}

// findProjectConfig searches for .taskforge.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".taskforge.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Execution: ExecutionConfig{
			Mode: "sequential",
		},
		Timeouts: TimeoutsConfig{
			Worker: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   filepath.Join(".taskforge", "logs"),
		},
		State: StateConfig{
			Enabled: true,
			Path:    filepath.Join(".taskforge", "state.db"),
		},
		Orchestrators: DefaultOrchestrators(),
	}
}
