package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskforge/internal/orchestrator"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

var (
	runVerbose bool
	runJSON    bool
	runMode    string
	runStrict  bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task through an orchestrator",
	Long: `Run a task through a registered orchestrator and print the final answer.

The orchestrator is chosen with --orchestrator (default "default").
Use --verbose to follow subtasks as they start and finish.

Examples:
  taskforge run "Compare PostgreSQL and SQLite for an embedded analytics tool"
  taskforge run -o review --verbose "Review this design: ..."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print run and subtask events")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the full result as JSON")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Override execution mode: sequential or waves")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "Reject cyclic plans and dangling dependencies")
}

func runTask(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runMode != "" {
		cfg.Execution.Mode = runMode
	}
	if runStrict {
		cfg.Execution.Strict = true
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	logger := orchestrator.NewLoggerForDir(cfg.Logging.Dir, cfg.Logging.Level)
	defer logger.Close()

	var opts []orchestrator.Option

	db, err := openJournal(cfg)
	if err != nil {
		logger.Warn("run journal unavailable", "error", err)
	}
	if db != nil {
		defer db.Close()
		opts = append(opts, orchestrator.WithJournal(runJournal{db: db}))
	}

	var printer sync.WaitGroup
	if runVerbose {
		emitter := orchestrator.NewEventEmitter(64, logger.Slog())
		opts = append(opts, orchestrator.WithEvents(emitter.Sink()))
		printer.Add(1)
		go func() {
			defer printer.Done()
			for e := range emitter.Events() {
				fmt.Fprintln(os.Stderr, formatEvent(e))
			}
		}()
		defer func() {
			emitter.Close()
			printer.Wait()
		}()
	}

	registry, err := newRegistry(cfg, client, logger, opts...)
	if err != nil {
		return err
	}
	orch, err := registry.Resolve(selectedOrchestrator())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := orch.Orchestrate(ctx, task)
	if err != nil {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Println(res.Output)
	fmt.Fprintln(os.Stderr)
	printStatus(res)

	in, out := client.Tracker().Total()
	fmt.Fprintf(os.Stderr, "Tokens: %d in / %d out across %d calls (~$%.4f)\n",
		in, out, client.Tracker().Calls(), client.Tracker().Cost())

	if !res.Succeeded() {
		return fmt.Errorf("run %s ended with status %s", res.RunID, res.Status)
	}
	return nil
}

// printStatus prints a one-line colored summary of a run.
func printStatus(res *orchestrator.Result) {
	var c *color.Color
	symbol := "✓"
	switch res.Status {
	case orchestrator.StatusCompleted:
		c = color.New(color.FgGreen)
	case orchestrator.StatusFailed:
		c = color.New(color.FgRed)
		symbol = "✗"
	default:
		c = color.New(color.FgYellow)
		symbol = "⚠"
	}

	failed := 0
	for _, s := range res.Steps {
		if s.Status == models.OutcomeFailed {
			failed++
		}
	}

	c.Fprintf(os.Stderr, "%s %s", symbol, res.Status)
	fmt.Fprintf(os.Stderr, " (%s, %d steps, %d failed, %s) run %s\n",
		res.Variant, len(res.Steps), failed, res.Duration.Round(time.Millisecond), res.RunID)
}

// formatEvent renders an event as one colored line.
func formatEvent(e models.Event) string {
	dim := color.New(color.Faint).SprintFunc()
	ts := dim(e.Timestamp.Format("15:04:05"))

	switch e.Type {
	case models.EventRunStarted:
		return fmt.Sprintf("%s %s run %s", ts, color.CyanString("▶"), e.RunID)
	case models.EventPlanCreated:
		return fmt.Sprintf("%s %s plan %s", ts, color.CyanString("◆"), e.Message)
	case models.EventSubtaskStarted:
		return fmt.Sprintf("%s %s %s (%s)", ts, color.BlueString("→"), e.SubtaskID, e.Role)
	case models.EventSubtaskCompleted:
		return fmt.Sprintf("%s %s %s %s", ts, color.GreenString("✓"), e.SubtaskID, dim(e.Duration.Round(time.Millisecond)))
	case models.EventSubtaskFailed:
		return fmt.Sprintf("%s %s %s: %v", ts, color.RedString("✗"), e.SubtaskID, e.Error)
	case models.EventSynthesisStarted:
		return fmt.Sprintf("%s %s synthesizing", ts, color.CyanString("◆"))
	case models.EventSynthesisCompleted:
		if e.Error != nil {
			return fmt.Sprintf("%s %s synthesis failed: %v", ts, color.RedString("✗"), e.Error)
		}
		return fmt.Sprintf("%s %s synthesis done", ts, color.GreenString("✓"))
	case models.EventRunCompleted:
		return fmt.Sprintf("%s %s run %s %s", ts, color.CyanString("■"), e.Message, dim(e.Duration.Round(time.Millisecond)))
	default:
		return fmt.Sprintf("%s %s", ts, e.Type)
	}
}
