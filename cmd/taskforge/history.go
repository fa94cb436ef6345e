package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskforge/internal/state"
)

var (
	historyLimit int
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent runs from the journal",
	Long: `Without arguments, list the most recent runs.
With a run id, show that run's subtask outcomes and final output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openJournal(cfg)
		if err != nil {
			return err
		}
		if db == nil {
			return errors.New("run journal is disabled (state.enabled: false)")
		}
		defer db.Close()

		ctx := context.Background()
		if historyPurge > 0 {
			n, err := db.PurgeOldRuns(ctx, historyPurge)
			if err != nil {
				return err
			}
			fmt.Printf("Purged %d runs older than %s.\n", n, historyPurge)
			return nil
		}
		if len(args) == 1 {
			return showRun(ctx, db, args[0])
		}
		runs, err := db.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		printRuns(runs)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete runs older than this duration (e.g. 720h) instead of listing")
}

func printRuns(runs []state.Run) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID[:min(8, len(r.ID))],
			r.StartedAt.Local().Format(time.DateTime),
			r.Orchestrator,
			statusColor(string(r.Status)),
			r.Duration().Round(time.Second),
			truncate(r.Task, 60))
	}
	w.Flush()
}

func showRun(ctx context.Context, db *state.DB, id string) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	subtasks, err := db.ListSubtasks(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (%s, %s) %s\n", run.ID, run.Orchestrator, run.Variant, statusColor(string(run.Status)))
	fmt.Printf("Task: %s\n\n", run.Task)
	for _, s := range subtasks {
		fmt.Printf("%d. %s [%s] %s %s\n", s.Index, s.SubtaskID, s.Role, statusColor(s.Status), s.Duration)
		if s.Description != "" {
			fmt.Printf("   %s\n", s.Description)
		}
		fmt.Printf("   %s\n", truncate(s.Output, 200))
	}
	if run.Output != "" {
		fmt.Printf("\n%s\n", run.Output)
	}
	return nil
}

func statusColor(status string) string {
	switch status {
	case "completed", "succeeded":
		return color.GreenString(status)
	case "failed":
		return color.RedString(status)
	case string(state.RunRunning):
		return color.CyanString(status)
	default:
		return color.YellowString(status)
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
