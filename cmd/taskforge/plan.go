package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/taskforge/internal/orchestrator"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

var planYAML bool

var planCmd = &cobra.Command{
	Use:   "plan <task>",
	Short: "Print the plan a DependencyGraph orchestrator would execute",
	Long: `Acquire a plan for the task without running any worker.

The selected orchestrator must be a DependencyGraph. The plan is printed as
JSON, or as YAML with --yaml.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cfg)
		if err != nil {
			return err
		}

		logger := orchestrator.NewLoggerForDir(cfg.Logging.Dir, cfg.Logging.Level)
		defer logger.Close()

		registry, err := newRegistry(cfg, client, logger)
		if err != nil {
			return err
		}
		name := selectedOrchestrator()
		orch, err := registry.Resolve(name)
		if err != nil {
			return err
		}
		planner, ok := orch.(*orchestrator.DependencyGraph)
		if !ok {
			return fmt.Errorf("orchestrator %q is a %s and does not plan", name, orch.Variant())
		}

		plan, err := planner.Plan(context.Background(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if plan.IsEmpty() {
			fmt.Fprintln(os.Stderr, orchestrator.NoPlanMessage)
		}
		return writePlan(os.Stdout, plan, planYAML)
	},
}

func init() {
	planCmd.Flags().BoolVar(&planYAML, "yaml", false, "Print the plan as YAML")
}

// writePlan encodes plan as indented JSON or YAML.
func writePlan(w io.Writer, plan *models.Plan, asYAML bool) error {
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}
