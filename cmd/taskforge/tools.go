package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskforge/internal/config"
	"github.com/ShayCichocki/taskforge/internal/orchestrator"
	"github.com/ShayCichocki/taskforge/internal/tool"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool definitions of every registered orchestrator",
	Long: `Print the Messages API tool definitions for the registry as JSON.

Each orchestrator becomes a tool with a single required "task" argument,
ready to hand to a tool-calling host.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		registry, err := newRegistry(cfg, client, orchestrator.NopLogger())
		if err != nil {
			return err
		}
		tools, err := tool.FromRegistry(registry)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tool.Definitions(tools))
	},
}

func sortedNames(table map[string]config.OrchestratorConfig) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
