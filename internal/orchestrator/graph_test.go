package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/taskforge/internal/engine"
	"github.com/ShayCichocki/taskforge/internal/graph"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

const researchPlanReply = "Here is the plan.\n```json\n" + `{
  "subTasks": [
    {"id": "t2", "taskDescription": "Summarize", "agentRole": "Writer", "agentTaskPrompt": "Summarize the research", "dependsOn": ["t1"]},
    {"id": "t1", "taskDescription": "Research A", "agentRole": "Researcher", "agentTaskPrompt": "Research A", "dependsOn": []}
  ]
}` + "\n```"

func TestDependencyGraph_PlansExecutesAndSynthesizes(t *testing.T) {
	c := &scriptedCompleter{plan: researchPlanReply, synthesis: "A is well researched and summarized."}
	events := &eventLog{}
	j := newMemJournal()

	d, err := NewDependencyGraph(c, &planFactory{}, WithEvents(events.sink), WithJournal(j), WithName("research"))
	if err != nil {
		t.Fatalf("NewDependencyGraph: %v", err)
	}

	res, err := d.Orchestrate(context.Background(), "Research A and summarize it")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %q", res.Status)
	}
	if res.Output != "A is well researched and summarized." {
		t.Errorf("output = %q", res.Output)
	}
	if res.Plan == nil || res.Plan.Len() != 2 {
		t.Fatalf("plan = %+v", res.Plan)
	}
	if len(res.Steps) != 2 || res.Steps[0].ID != "t1" || res.Steps[1].ID != "t2" {
		t.Errorf("steps not in dependency order: %+v", res.Steps)
	}

	prompt := c.last("Combine the results")
	if !strings.Contains(prompt, "Subtask t1 (Researcher): Research A\nResult: result of t1") {
		t.Errorf("synthesis transcript missing t1:\n%s", prompt)
	}
	if events.count(models.EventPlanCreated) != 1 || events.count(models.EventSubtaskStarted) != 2 {
		t.Errorf("unexpected events: %+v", events.events)
	}
	for _, e := range events.events {
		if e.RunID != res.RunID {
			t.Errorf("event %s has run id %q, want %q", e.Type, e.RunID, res.RunID)
		}
	}
	if len(j.steps[res.RunID]) != 2 {
		t.Errorf("journal steps = %d", len(j.steps[res.RunID]))
	}
}

func TestDependencyGraph_NoisePlanGivesNoPlan(t *testing.T) {
	c := &scriptedCompleter{plan: "I'm sorry, I cannot help with that."}

	d, _ := NewDependencyGraph(c, &planFactory{})
	res, err := d.Orchestrate(context.Background(), "do something")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if res.Status != StatusNoPlan || res.Output != NoPlanMessage {
		t.Errorf("result = %q / %q", res.Status, res.Output)
	}
	if c.last("Combine the results") != "" {
		t.Error("synthesis should not run for an empty plan")
	}
}

func TestDependencyGraph_PlanningErrorGivesNoPlan(t *testing.T) {
	c := &scriptedCompleter{planErr: errors.New("connection reset")}

	d, _ := NewDependencyGraph(c, &planFactory{})
	res, err := d.Orchestrate(context.Background(), "do something")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if res.Status != StatusNoPlan {
		t.Errorf("status = %q, want no_plan", res.Status)
	}
}

func TestDependencyGraph_FailedSubtaskPlaceholderReachesSynthesis(t *testing.T) {
	c := &scriptedCompleter{plan: researchPlanReply, synthesis: "Research could not be completed, summary is partial."}
	boom := errors.New("boom")

	d, _ := NewDependencyGraph(c, &planFactory{fail: map[string]error{"t1": boom}})
	res, err := d.Orchestrate(context.Background(), "Research A and summarize it")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", res.Status)
	}

	prompt := c.last("Combine the results")
	if !strings.Contains(prompt, engine.FailurePayload("t1", boom)) {
		t.Errorf("synthesis prompt missing failure placeholder:\n%s", prompt)
	}
	if !strings.Contains(prompt, "result of t2") {
		t.Error("dependent subtask should still run after a failed dependency")
	}
}

func TestDependencyGraph_WorkerConstructionIsPrecondition(t *testing.T) {
	c := &scriptedCompleter{plan: researchPlanReply}
	j := newMemJournal()

	d, _ := NewDependencyGraph(c, &planFactory{buildErr: errors.New("no such kind")}, WithJournal(j))
	res, err := d.Orchestrate(context.Background(), "Research A")
	if !errors.Is(err, engine.ErrWorkerConstruction) {
		t.Fatalf("err = %v, want ErrWorkerConstruction", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	for _, status := range j.finished {
		if status != string(StatusFailed) {
			t.Errorf("journal status = %q, want failed", status)
		}
	}
}

func TestDependencyGraph_StrictRejectsCycles(t *testing.T) {
	cyclic := "```json\n" + `{"subTasks": [
  {"id": "a", "taskDescription": "A", "dependsOn": ["b"]},
  {"id": "b", "taskDescription": "B", "dependsOn": ["a"]}
]}` + "\n```"
	c := &scriptedCompleter{plan: cyclic, synthesis: "Both parts were handled in order."}

	lenient, _ := NewDependencyGraph(c, &planFactory{})
	res, err := lenient.Orchestrate(context.Background(), "cycle")
	if err != nil || res.Status != StatusCompleted {
		t.Fatalf("lenient run = %+v, %v", res, err)
	}
	if res.Steps[0].ID != "a" || res.Steps[1].ID != "b" {
		t.Errorf("cycle fallback should keep declaration order, got %+v", res.Steps)
	}

	strict, _ := NewDependencyGraph(c, &planFactory{}, WithStrict(true))
	if _, err := strict.Orchestrate(context.Background(), "cycle"); !errors.Is(err, graph.ErrCycleDetected) {
		t.Errorf("strict err = %v, want ErrCycleDetected", err)
	}
}

func TestDependencyGraph_WavesMode(t *testing.T) {
	c := &scriptedCompleter{plan: researchPlanReply, synthesis: "A is well researched and summarized."}

	d, _ := NewDependencyGraph(c, &planFactory{}, WithExecutionMode(engine.ModeWaves), WithMaxParallel(2))
	res, err := d.Orchestrate(context.Background(), "Research A and summarize it")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if res.Status != StatusCompleted || len(res.Steps) != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestDependencyGraph_PlanOnly(t *testing.T) {
	c := &scriptedCompleter{plan: researchPlanReply}
	d, _ := NewDependencyGraph(c, &planFactory{})

	plan, err := d.Plan(context.Background(), "Research A")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Len() != 2 || plan.ID == "" || plan.Task != "Research A" {
		t.Errorf("plan = %+v", plan)
	}
	if _, err := d.Plan(context.Background(), ""); !errors.Is(err, ErrEmptyTask) {
		t.Errorf("empty task err = %v", err)
	}
	if c.last("Combine the results") != "" {
		t.Error("Plan must not synthesize")
	}
}

func TestNewDependencyGraph_Preconditions(t *testing.T) {
	if _, err := NewDependencyGraph(nil, &planFactory{}); !errors.Is(err, ErrMissingCollaborator) {
		t.Errorf("nil collaborator err = %v", err)
	}
}
