package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskforge/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered orchestrators",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printRegistry(cfg.Orchestrators)
		return nil
	},
}

// printRegistry prints one line per orchestrator in name order.
func printRegistry(table map[string]config.OrchestratorConfig) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range sortedNames(table) {
		oc := table[name]
		workers := "-"
		if len(oc.Workers) > 0 {
			workers = fmt.Sprintf("%d workers", len(oc.Workers))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", color.New(color.Bold).Sprint(name), oc.Variant, workers, oc.Description)
	}
	w.Flush()
}
