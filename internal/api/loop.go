package api

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultMaxIterations bounds the number of Messages calls in one loop run.
const DefaultMaxIterations = 10

// ToolHandler executes a named tool call and returns its textual result.
type ToolHandler func(ctx context.Context, name string, input json.RawMessage) (string, error)

// StreamEvent reports loop progress to an optional handler.
type StreamEvent struct {
	Type    string // "text", "tool_use", "tool_result", "done", "error"
	Content string
	Tool    string
	Input   json.RawMessage
}

// LoopResult contains the results of a tool loop run.
type LoopResult struct {
	Output     string
	TokensIn   int64
	TokensOut  int64
	ToolCalls  int
	Iterations int
}

// ToolLoop lets the model call tools until it produces a final answer.
type ToolLoop struct {
	client        *Client
	handler       ToolHandler
	onStream      func(StreamEvent)
	maxIterations int
}

// NewToolLoop creates a loop that dispatches tool calls to handler.
// Non-positive maxIterations uses DefaultMaxIterations.
func NewToolLoop(client *Client, handler ToolHandler, maxIterations int) *ToolLoop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &ToolLoop{
		client:        client,
		handler:       handler,
		maxIterations: maxIterations,
	}
}

// SetStreamHandler sets a callback for streaming events during execution.
func (l *ToolLoop) SetStreamHandler(fn func(StreamEvent)) {
	l.onStream = fn
}

func (l *ToolLoop) emit(event StreamEvent) {
	if l.onStream != nil {
		l.onStream(event)
	}
}

// Run sends userPrompt with the given tools and keeps answering tool calls
// until the model ends its turn. An empty systemPrompt uses the client's.
// Tool errors are returned to the model as error results rather than
// aborting the loop.
func (l *ToolLoop) Run(ctx context.Context, systemPrompt, userPrompt string, tools []anthropic.ToolUnionParam) (*LoopResult, error) {
	result := &LoopResult{}
	if systemPrompt == "" {
		systemPrompt = l.client.system
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
	}

	for result.Iterations < l.maxIterations {
		result.Iterations++

		params := anthropic.MessageNewParams{
			Model:     l.client.model,
			MaxTokens: l.client.maxTokens,
			Messages:  messages,
			Tools:     tools,
		}
		if systemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
		}

		resp, err := l.client.inner.Messages.New(ctx, params)
		if err != nil {
			l.emit(StreamEvent{Type: "error", Content: err.Error()})
			return result, fmt.Errorf("API call failed: %w", err)
		}

		result.TokensIn += resp.Usage.InputTokens
		result.TokensOut += resp.Usage.OutputTokens
		l.client.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion
		var textOutput string

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				textOutput += variant.Text
				l.emit(StreamEvent{Type: "text", Content: variant.Text})
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				result.ToolCalls++
				l.emit(StreamEvent{Type: "tool_use", Tool: variant.Name, Input: variant.Input})
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				content, isError := l.call(ctx, variant.Name, variant.Input)
				l.emit(StreamEvent{Type: "tool_result", Tool: variant.Name, Content: truncateForDisplay(content)})
				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, content, isError))
			}
		}

		if len(toolResultBlocks) == 0 {
			result.Output = textOutput
			l.emit(StreamEvent{Type: "done"})
			return result, nil
		}

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
	}

	return result, fmt.Errorf("max iterations (%d) reached", l.maxIterations)
}

func (l *ToolLoop) call(ctx context.Context, name string, input json.RawMessage) (string, bool) {
	if l.handler == nil {
		return fmt.Sprintf("tool %s is not available", name), true
	}
	out, err := l.handler(ctx, name, input)
	if err != nil {
		return err.Error(), true
	}
	return out, false
}

// truncateForDisplay shortens s to at most 500 bytes for stream events,
// cutting on a rune boundary.
func truncateForDisplay(s string) string {
	const maxLen = 500
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}
