// Package tool exposes orchestrators as callable tools with a single
// required text argument.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/taskforge/internal/orchestrator"
)

// Primary argument names.
const (
	FieldTask  = "task"
	FieldTopic = "topic"
)

var (
	// ErrInvalidInput is returned when the primary argument is missing,
	// not a string or blank.
	ErrInvalidInput = errors.New("invalid tool input")
	// ErrUnknownTool is returned by Set.Invoke for an unregistered name.
	ErrUnknownTool = errors.New("unknown tool")
)

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Tool wraps an orchestrator behind a name, a description and an input
// schema with one required string field.
type Tool struct {
	name        string
	description string
	field       string
	orch        orchestrator.Orchestrator
}

// Option configures a Tool.
type Option func(*Tool)

// WithPrimaryField sets the name of the required argument. Default "task".
func WithPrimaryField(field string) Option {
	return func(t *Tool) {
		if field != "" {
			t.field = field
		}
	}
}

// New creates a tool for orch. The name is reduced to the characters tool
// hosts accept.
func New(name, description string, orch orchestrator.Orchestrator, opts ...Option) *Tool {
	t := &Tool{
		name:        SanitizeName(name),
		description: description,
		field:       FieldTask,
		orch:        orch,
	}
	if t.description == "" {
		t.description = defaultDescription(orch.Variant())
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the tool name.
func (t *Tool) Name() string { return t.name }

// Description returns the tool description.
func (t *Tool) Description() string { return t.description }

// PrimaryField returns the name of the required argument.
func (t *Tool) PrimaryField() string { return t.field }

// Schema returns the JSON schema of the tool input.
func (t *Tool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": t.properties(),
		"required":   []string{t.field},
	}
}

func (t *Tool) properties() map[string]any {
	return map[string]any{
		t.field: map[string]any{
			"type":        "string",
			"description": fmt.Sprintf("The %s to hand to the orchestrator", t.field),
		},
	}
}

// Param returns the tool definition for the Messages API.
func (t *Tool) Param() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        t.name,
			Description: anthropic.String(t.description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.properties(),
				Required:   []string{t.field},
			},
		},
	}
}

// Output is the JSON payload returned by Invoke.
type Output struct {
	RunID  string              `json:"runId"`
	Status orchestrator.Status `json:"status"`
	Output string              `json:"output"`
}

// Invoke validates the input, runs the orchestrator and returns its result
// serialized as JSON. The orchestrator is not called for invalid input.
func (t *Tool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	task, err := t.primary(input)
	if err != nil {
		return "", err
	}

	res, err := t.orch.Orchestrate(ctx, task)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", t.name, err)
	}

	data, err := json.Marshal(Output{RunID: res.RunID, Status: res.Status, Output: res.Output})
	if err != nil {
		return "", fmt.Errorf("tool %s: encode result: %w", t.name, err)
	}
	return string(data), nil
}

func (t *Tool) primary(input json.RawMessage) (string, error) {
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	raw, ok := args[t.field]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidInput, t.field)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", ErrInvalidInput, t.field)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %q is empty", ErrInvalidInput, t.field)
	}
	return s, nil
}

// SanitizeName replaces characters outside [a-zA-Z0-9_-] with underscores
// and truncates to 64 characters.
func SanitizeName(name string) string {
	s := invalidNameChars.ReplaceAllString(name, "_")
	if len(s) > 64 {
		s = s[:64]
	}
	if s == "" {
		s = "orchestrator"
	}
	return s
}

func defaultDescription(v orchestrator.Variant) string {
	switch v {
	case orchestrator.VariantLinearChain:
		return "Runs a fixed pipeline of specialists over the task and returns the last result."
	case orchestrator.VariantFanOutFanIn:
		return "Consults the relevant specialists in parallel and combines their answers."
	default:
		return "Breaks the task into dependent subtasks, runs them and combines the results."
	}
}

// Set is a collection of tools addressed by name.
type Set struct {
	tools map[string]*Tool
	order []string
}

// NewSet creates a set. Later tools replace earlier ones with the same name.
func NewSet(tools ...*Tool) *Set {
	s := &Set{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if _, ok := s.tools[t.name]; !ok {
			s.order = append(s.order, t.name)
		}
		s.tools[t.name] = t
	}
	return s
}

// Lookup returns the tool with the given name.
func (s *Set) Lookup(name string) (*Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// Tools returns the tools in insertion order.
func (s *Set) Tools() []*Tool {
	out := make([]*Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name])
	}
	return out
}

// Invoke dispatches to the named tool.
func (s *Set) Invoke(ctx context.Context, name string, input json.RawMessage) (string, error) {
	t, ok := s.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.Invoke(ctx, input)
}

// Definitions returns the Messages API definitions of tools.
func Definitions(tools []*Tool) []anthropic.ToolUnionParam {
	defs := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, t.Param())
	}
	return defs
}

// FromRegistry builds one tool per registered orchestrator, in name order,
// using each entry's description.
func FromRegistry(r *orchestrator.Registry, opts ...orchestrator.Option) ([]*Tool, error) {
	names := r.Names()
	tools := make([]*Tool, 0, len(names))
	for _, name := range names {
		orch, err := r.Resolve(name, opts...)
		if err != nil {
			return nil, err
		}
		oc, _ := r.Config(name)
		tools = append(tools, New(name, oc.Description, orch))
	}
	return tools, nil
}
