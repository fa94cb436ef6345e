package state

import (
	"errors"
	"testing"
	"time"
)

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)

	run := &Run{ID: "run-1", Orchestrator: "research", Variant: "DependencyGraph", Task: "explain tides"}
	if err := db.StartRun(ctx, run); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	got, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunRunning || got.FinishedAt != nil || got.Task != "explain tides" {
		t.Errorf("started run = %+v", got)
	}

	records := []*SubtaskRecord{
		{Index: 1, SubtaskID: "t1", Role: "Researcher", Description: "Research", Status: "succeeded", Output: "moon", Duration: 1500 * time.Millisecond},
		{Index: 2, SubtaskID: "t2", Role: "Writer", Status: "failed", Output: "Error executing subtask t2: boom"},
	}
	for _, rec := range records {
		if err := db.RecordSubtask(ctx, "run-1", rec); err != nil {
			t.Fatalf("RecordSubtask: %v", err)
		}
	}

	if err := db.FinishRun(ctx, "run-1", "completed", "Tides follow the moon."); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err = db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != "completed" || got.Output != "Tides follow the moon." || got.FinishedAt == nil {
		t.Errorf("finished run = %+v", got)
	}

	subtasks, err := db.ListSubtasks(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListSubtasks: %v", err)
	}
	if len(subtasks) != 2 {
		t.Fatalf("len(subtasks) = %d, want 2", len(subtasks))
	}
	if subtasks[0].SubtaskID != "t1" || subtasks[0].Duration != 1500*time.Millisecond {
		t.Errorf("subtasks[0] = %+v", subtasks[0])
	}
	if subtasks[1].Status != "failed" || subtasks[1].Description != "" {
		t.Errorf("subtasks[1] = %+v", subtasks[1])
	}
}

func TestRecordSubtask_ReplacesSameIndex(t *testing.T) {
	db := setupTestDB(t)
	if err := db.StartRun(ctx, &Run{ID: "r", Orchestrator: "o", Variant: "LinearChain", Task: "t"}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	_ = db.RecordSubtask(ctx, "r", &SubtaskRecord{Index: 1, SubtaskID: "a", Role: "A", Status: "failed"})
	_ = db.RecordSubtask(ctx, "r", &SubtaskRecord{Index: 1, SubtaskID: "a", Role: "A", Status: "succeeded"})

	subtasks, err := db.ListSubtasks(ctx, "r")
	if err != nil {
		t.Fatalf("ListSubtasks: %v", err)
	}
	if len(subtasks) != 1 || subtasks[0].Status != "succeeded" {
		t.Errorf("subtasks = %+v", subtasks)
	}
}

func TestListRuns_MostRecentFirst(t *testing.T) {
	db := setupTestDB(t)
	for _, id := range []string{"first", "second", "third"} {
		if err := db.StartRun(ctx, &Run{ID: id, Orchestrator: "o", Variant: "FanOutFanIn", Task: id}); err != nil {
			t.Fatalf("StartRun(%s): %v", id, err)
		}
	}

	runs, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		t.Errorf("runs = %+v", runs)
	}

	all, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}

func TestRunNotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun err = %v, want ErrRunNotFound", err)
	}
	if err := db.FinishRun(ctx, "missing", "completed", ""); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun err = %v, want ErrRunNotFound", err)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)

	old := &Run{ID: "old", Orchestrator: "o", Variant: "LinearChain", Task: "t", StartedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &Run{ID: "fresh", Orchestrator: "o", Variant: "LinearChain", Task: "t"}
	for _, r := range []*Run{old, fresh} {
		if err := db.StartRun(ctx, r); err != nil {
			t.Fatalf("StartRun: %v", err)
		}
	}
	_ = db.RecordSubtask(ctx, "old", &SubtaskRecord{Index: 1, SubtaskID: "a", Role: "A", Status: "succeeded"})

	n, err := db.PurgeOldRuns(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if _, err := db.GetRun(ctx, "fresh"); err != nil {
		t.Errorf("fresh run missing: %v", err)
	}
	subtasks, _ := db.ListSubtasks(ctx, "old")
	if len(subtasks) != 0 {
		t.Errorf("old subtasks not purged: %+v", subtasks)
	}
}

func TestRun_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)

	if d := (&Run{StartedAt: start}).Duration(); d != 0 {
		t.Errorf("unfinished duration = %v", d)
	}
	if d := (&Run{StartedAt: start, FinishedAt: &end}).Duration(); d != 3*time.Second {
		t.Errorf("duration = %v", d)
	}
}
