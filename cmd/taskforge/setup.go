package main

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/taskforge/internal/agent"
	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/internal/config"
	"github.com/ShayCichocki/taskforge/internal/engine"
	"github.com/ShayCichocki/taskforge/internal/orchestrator"
	"github.com/ShayCichocki/taskforge/internal/state"
)

// loadConfig loads configuration and applies the --registry override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if registryPath != "" {
		table, err := config.LoadRegistryFile(registryPath)
		if err != nil {
			return nil, err
		}
		cfg.Orchestrators = table
	}
	return cfg, nil
}

// selectedOrchestrator returns the --orchestrator name or the default.
func selectedOrchestrator() string {
	if orchestratorName != "" {
		return orchestratorName
	}
	return config.DefaultOrchestratorName
}

// newClient creates the Anthropic client described by cfg.
func newClient(cfg *config.Config) (*api.Client, error) {
	clientCfg := api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.Bedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if !cfg.Anthropic.Bedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or anthropic.api_key", err)
		}
		clientCfg.APIKey = key
	}

	client, err := api.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// newRegistry builds the orchestrator registry over client.
func newRegistry(cfg *config.Config, client *api.Client, logger *orchestrator.Logger, opts ...orchestrator.Option) (*orchestrator.Registry, error) {
	mode, err := engine.ParseMode(cfg.Execution.Mode)
	if err != nil {
		return nil, err
	}

	base := []orchestrator.Option{
		orchestrator.WithExecutionMode(mode),
		orchestrator.WithStrict(cfg.Execution.Strict),
		orchestrator.WithMaxParallel(cfg.Execution.MaxParallel),
	}

	base = append(base, orchestrator.WithLogger(logger))
	base = append(base, opts...)

	return orchestrator.NewRegistry(cfg.Orchestrators, client,
		orchestrator.WithCollaboratorSelector(func(cc config.CollaboratorConfig) api.Completer {
			return client.WithModel(cc.Model).WithMaxTokens(cc.MaxTokens)
		}),
		orchestrator.WithFactoryOptions(
			agent.WithTimeout(cfg.Timeouts.Worker),
			agent.WithLogger(logger.Slog()),
			agent.WithModelSelector(func(model string) api.Completer {
				return client.WithModel(model)
			}),
		),
		orchestrator.WithOrchestratorOptions(base...),
	)
}

// openJournal opens the run journal, or returns nil when it is disabled.
func openJournal(cfg *config.Config) (*state.DB, error) {
	if !cfg.State.Enabled || cfg.State.Path == "" {
		return nil, nil
	}
	db, err := state.Open(cfg.State.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return db, nil
}

// runJournal records orchestrator runs in the state database.
type runJournal struct {
	db *state.DB
}

func (j runJournal) StartRun(ctx context.Context, runID, orch, variant, task string) error {
	return j.db.StartRun(ctx, &state.Run{ID: runID, Orchestrator: orch, Variant: variant, Task: task})
}

func (j runJournal) RecordStep(ctx context.Context, runID string, step orchestrator.Step) error {
	return j.db.RecordSubtask(ctx, runID, &state.SubtaskRecord{
		Index:       step.Index,
		SubtaskID:   step.ID,
		Role:        step.Role,
		Description: step.Description,
		Status:      string(step.Status),
		Output:      step.Output,
		Duration:    step.Duration,
	})
}

func (j runJournal) FinishRun(ctx context.Context, runID, status, output string) error {
	return j.db.FinishRun(ctx, runID, state.RunStatus(status), output)
}

var _ orchestrator.Journal = runJournal{}
