// Package synthesize combines subtask outcomes into one final answer.
package synthesize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

// MinAnswerLength is the shortest answer, in runes after trimming, accepted
// from the collaborator before falling back to the raw transcript.
const MinAnswerLength = 20

// formattingChars are characters that carry no content on their own.
const formattingChars = "#*-_=`>| \t\r\n"

// ErrSynthesisFailed is returned when the collaborator cannot produce an answer.
var ErrSynthesisFailed = errors.New("synthesis failed")

// Synthesizer produces the final answer for an orchestration run.
type Synthesizer struct {
	completer api.Completer
	logger    *slog.Logger
	minLen    int
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithMinAnswerLength overrides MinAnswerLength.
func WithMinAnswerLength(n int) Option {
	return func(s *Synthesizer) { s.minLen = n }
}

// New creates a Synthesizer over the given completer.
func New(completer api.Completer, logger *slog.Logger, opts ...Option) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Synthesizer{completer: completer, logger: logger, minLen: MinAnswerLength}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize asks the collaborator for one coherent answer to task built
// from the outcomes of order. A missing or degenerate answer falls back to
// the transcript itself.
func (s *Synthesizer) Synthesize(ctx context.Context, task string, plan *models.Plan, order []*models.SubtaskNode, result *models.ExecutionResult) (string, error) {
	transcript := Transcript(order, result)

	answer, err := s.completer.Complete(ctx, BuildPrompt(task, plan, transcript))
	if err != nil {
		s.logger.Error("synthesis request failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	if s.degenerate(answer) {
		s.logger.Warn("synthesis answer degenerate, returning transcript",
			"answer_len", len(answer))
		return transcript, nil
	}
	return strings.TrimSpace(answer), nil
}

func (s *Synthesizer) degenerate(answer string) bool {
	trimmed := strings.TrimSpace(answer)
	if utf8.RuneCountInString(trimmed) < s.minLen {
		return true
	}
	return strings.Trim(trimmed, formattingChars) == ""
}

// Transcript lists each subtask with its result, in execution order.
func Transcript(order []*models.SubtaskNode, result *models.ExecutionResult) string {
	entries := make([]string, 0, len(order))
	for _, node := range order {
		role := node.AssignedRole
		if role == "" {
			role = models.DefaultRole
		}
		text := "(no result recorded)"
		if result != nil {
			if outcome, ok := result.Get(node.ID); ok {
				text = outcome.Text()
			}
		}
		entries = append(entries, fmt.Sprintf("Subtask %s (%s): %s\nResult: %s",
			node.ID, role, node.Description, text))
	}
	return strings.Join(entries, "\n\n")
}

// BuildPrompt returns the synthesis request.
func BuildPrompt(task string, plan *models.Plan, transcript string) string {
	var b strings.Builder

	b.WriteString("Combine the results below into a single, coherent answer to the original task.\n\n")
	fmt.Fprintf(&b, "Original task:\n%s\n\n", task)

	if plan != nil && len(plan.Nodes) > 0 {
		if data, err := json.MarshalIndent(plan.Nodes, "", "  "); err == nil {
			fmt.Fprintf(&b, "Plan:\n%s\n\n", data)
		}
	}

	fmt.Fprintf(&b, "Results:\n%s\n\n", transcript)

	b.WriteString("Instructions:\n")
	b.WriteString("1. Answer the original task directly using the results\n")
	b.WriteString("2. Reconcile or note conflicting information\n")
	b.WriteString("3. If a result reports an error, work around the missing information\n")
	b.WriteString("4. Do not mention subtasks, workers, plans or how the answer was produced\n\n")
	b.WriteString("Provide the final answer:")

	return b.String()
}
