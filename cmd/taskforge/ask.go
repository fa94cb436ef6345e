package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/internal/orchestrator"
	"github.com/ShayCichocki/taskforge/internal/tool"
)

const askSystemPrompt = `You can delegate work to orchestrators exposed as tools.
Call a tool when the question needs research, analysis or several perspectives.
Answer directly when it does not.`

var (
	askMaxTurns int
	askQuiet    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the model a question with every orchestrator available as a tool",
	Long: `Ask sends the question to the model together with the tool definitions of
the whole registry. The model decides which orchestrators to call; each call
runs a full orchestration and its result is handed back to the model.`,
	Args: cobra.MinimumNArgs(1),
	RunE: askQuestion,
}

func init() {
	askCmd.Flags().IntVar(&askMaxTurns, "max-turns", api.DefaultMaxIterations, "Maximum model turns")
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "Do not print tool calls")
}

func askQuestion(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

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

	var opts []orchestrator.Option
	db, err := openJournal(cfg)
	if err != nil {
		logger.Warn("run journal unavailable", "error", err)
	}
	if db != nil {
		defer db.Close()
		opts = append(opts, orchestrator.WithJournal(runJournal{db: db}))
	}

	registry, err := newRegistry(cfg, client, logger, opts...)
	if err != nil {
		return err
	}
	tools, err := tool.FromRegistry(registry)
	if err != nil {
		return err
	}
	set := tool.NewSet(tools...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loop := api.NewToolLoop(client, set.Invoke, askMaxTurns)
	if !askQuiet {
		dim := color.New(color.Faint)
		loop.SetStreamHandler(func(e api.StreamEvent) {
			switch e.Type {
			case "tool_use":
				dim.Fprintf(os.Stderr, "-> %s %s\n", e.Tool, string(e.Input))
			case "tool_result":
				dim.Fprintf(os.Stderr, "<- %s %s\n", e.Tool, truncate(e.Content, 120))
			}
		})
	}

	res, err := loop.Run(ctx, askSystemPrompt, question, tool.Definitions(tools))
	if err != nil {
		return err
	}

	fmt.Println(res.Output)
	in, out := client.Tracker().Total()
	fmt.Fprintf(os.Stderr, "\n%d tool calls over %d turns. Tokens: %d in / %d out (~$%.4f)\n",
		res.ToolCalls, res.Iterations, in, out, client.Tracker().Cost())
	return nil
}
