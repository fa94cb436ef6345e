package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	registryPath     string
	orchestratorName string
)

var rootCmd = &cobra.Command{
	Use:   "taskforge",
	Short: "Task orchestration over worker agents",
	Long: `taskforge coordinates a complex task across worker agents.

A task is handed to a named orchestrator from the registry:
- LinearChain pipes each worker's output into the next
- FanOutFanIn consults the relevant workers in parallel and combines their answers
- DependencyGraph plans subtasks with dependencies, runs them in order and
  synthesizes one answer

Orchestrators are configured under "orchestrators" in
~/.config/taskforge/config.yaml or .taskforge.yaml, or in a standalone
registry file passed with --registry.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "Registry YAML file replacing the configured orchestrators")
	rootCmd.PersistentFlags().StringVarP(&orchestratorName, "orchestrator", "o", "", "Orchestrator to use (default \"default\")")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
