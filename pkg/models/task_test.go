package models

import (
	"testing"
)

func TestAutoID(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "task1"},
		{1, "task2"},
		{9, "task10"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := AutoID(tt.index); got != tt.want {
				t.Errorf("AutoID(%d) = %q, want %q", tt.index, got, tt.want)
			}
		})
	}
}

func TestSubtaskNode_Spec(t *testing.T) {
	node := &SubtaskNode{
		ID:                     "t1",
		AssignedRole:           "Researcher",
		Objective:              "Find sources",
		Instructions:           "Search for sources",
		UseAugmentedCapability: true,
	}

	spec := node.Spec()
	if spec.Kind != WorkerKindAugmented {
		t.Errorf("Kind = %q, want %q", spec.Kind, WorkerKindAugmented)
	}
	if spec.Name != "t1" {
		t.Errorf("Name = %q, want %q", spec.Name, "t1")
	}
	if spec.Role != "Researcher" {
		t.Errorf("Role = %q, want %q", spec.Role, "Researcher")
	}
	if !spec.Augmented {
		t.Error("Augmented should be true")
	}
}

func TestSubtaskNode_SpecDefaultsRole(t *testing.T) {
	node := &SubtaskNode{ID: "t1"}

	spec := node.Spec()
	if spec.Role != DefaultRole {
		t.Errorf("Role = %q, want %q", spec.Role, DefaultRole)
	}
	if spec.Kind != WorkerKindCompletion {
		t.Errorf("Kind = %q, want %q", spec.Kind, WorkerKindCompletion)
	}
}

func TestSubtaskNode_CloneIsDeep(t *testing.T) {
	node := &SubtaskNode{ID: "t2", DependsOn: []string{"t1"}}

	clone := node.Clone()
	clone.DependsOn[0] = "changed"
	clone.Instructions = "changed"

	if node.DependsOn[0] != "t1" {
		t.Errorf("original DependsOn mutated: %v", node.DependsOn)
	}
	if node.Instructions != "" {
		t.Errorf("original Instructions mutated: %q", node.Instructions)
	}
}

func TestPlan_EmptyIsValid(t *testing.T) {
	var nilPlan *Plan
	if !nilPlan.IsEmpty() {
		t.Error("nil plan should be empty")
	}
	if nilPlan.Len() != 0 {
		t.Errorf("nil plan Len = %d, want 0", nilPlan.Len())
	}

	plan := &Plan{}
	if !plan.IsEmpty() {
		t.Error("plan with no nodes should be empty")
	}
}

func TestPlan_NodeAndIDs(t *testing.T) {
	plan := &Plan{Nodes: []*SubtaskNode{{ID: "a"}, {ID: "b"}}}

	if got := plan.Node("b"); got == nil || got.ID != "b" {
		t.Errorf("Node(b) = %v, want node b", got)
	}
	if got := plan.Node("missing"); got != nil {
		t.Errorf("Node(missing) = %v, want nil", got)
	}

	ids := plan.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs() = %v, want [a b]", ids)
	}
}
