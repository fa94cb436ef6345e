package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ShayCichocki/taskforge/pkg/models"
)

func node(id string, deps ...string) *models.SubtaskNode {
	return &models.SubtaskNode{ID: id, Description: "do " + id, DependsOn: deps}
}

func TestTopologicalSort(t *testing.T) {
	tests := []struct {
		name  string
		nodes []*models.SubtaskNode
		want  []string
	}{
		{
			name:  "dependency declared after dependent",
			nodes: []*models.SubtaskNode{node("B", "A"), node("A")},
			want:  []string{"A", "B"},
		},
		{
			name:  "independent nodes keep declaration order",
			nodes: []*models.SubtaskNode{node("c"), node("a"), node("b")},
			want:  []string{"c", "a", "b"},
		},
		{
			name: "diamond",
			nodes: []*models.SubtaskNode{
				node("d", "b", "c"), node("b", "a"), node("c", "a"), node("a"),
			},
			want: []string{"a", "b", "c", "d"},
		},
		{
			name:  "dangling dependency dropped",
			nodes: []*models.SubtaskNode{node("t1"), node("t2", "t1", "ghost")},
			want:  []string{"t1", "t2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			if err := g.Build(tt.nodes); err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			got, err := g.TopologicalSort()
			if err != nil {
				t.Fatalf("TopologicalSort failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TopologicalSort = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopologicalSort_CycleFallsBackToDeclarationOrder(t *testing.T) {
	g := New()
	nodes := []*models.SubtaskNode{node("x", "z"), node("y", "x"), node("z", "y")}
	if err := g.Build(nodes); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !g.HasCycle() {
		t.Fatal("expected cycle")
	}

	got, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("lenient sort should not fail: %v", err)
	}
	want := []string{"x", "y", "z"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopologicalSort = %v, want %v", got, want)
	}
}

func TestStrictMode(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		g := New(WithStrict(true))
		if err := g.Build([]*models.SubtaskNode{node("a", "b"), node("b", "a")}); err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if _, err := g.TopologicalSort(); !errors.Is(err, ErrCycleDetected) {
			t.Errorf("err = %v, want ErrCycleDetected", err)
		}
		if _, err := g.Waves(); !errors.Is(err, ErrCycleDetected) {
			t.Errorf("Waves err = %v, want ErrCycleDetected", err)
		}
	})

	t.Run("unresolved", func(t *testing.T) {
		g := New(WithStrict(true))
		err := g.Build([]*models.SubtaskNode{node("a", "missing")})
		if !errors.Is(err, ErrUnresolvedDependency) {
			t.Errorf("err = %v, want ErrUnresolvedDependency", err)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		g := New(WithStrict(true))
		err := g.Build([]*models.SubtaskNode{node("a"), node("a")})
		if !errors.Is(err, ErrDuplicateID) {
			t.Errorf("err = %v, want ErrDuplicateID", err)
		}
	})
}

func TestSelfDependencyIsCycle(t *testing.T) {
	g := New()
	if err := g.Build([]*models.SubtaskNode{node("a", "a"), node("b")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got, _ := g.TopologicalSort()
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("TopologicalSort = %v, want declaration order", got)
	}
}

func TestWaves(t *testing.T) {
	g := New()
	nodes := []*models.SubtaskNode{
		node("research"), node("outline"), node("draft", "research", "outline"), node("review", "draft"),
	}
	if err := g.Build(nodes); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	got, err := g.Waves()
	if err != nil {
		t.Fatalf("Waves failed: %v", err)
	}
	want := [][]string{{"research", "outline"}, {"draft"}, {"review"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Waves = %v, want %v", got, want)
	}
}

func TestWaves_CycleOneNodePerWave(t *testing.T) {
	g := New()
	if err := g.Build([]*models.SubtaskNode{node("a", "b"), node("b", "a"), node("c")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got, err := g.Waves()
	if err != nil {
		t.Fatalf("Waves failed: %v", err)
	}
	want := [][]string{{"a"}, {"b"}, {"c"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Waves = %v, want %v", got, want)
	}
}

func TestDependenciesAndDependents(t *testing.T) {
	g := New()
	if err := g.Build([]*models.SubtaskNode{node("a"), node("b", "a", "a"), node("c", "a")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := g.Dependencies("b"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Dependencies(b) = %v, want [a]", got)
	}
	if got := g.Dependents("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Dependents(a) = %v, want [b c]", got)
	}
	if g.Size() != 3 {
		t.Errorf("Size = %d, want 3", g.Size())
	}
	if g.Node("c") == nil || g.Node("nope") != nil {
		t.Error("Node lookup mismatch")
	}
}

func TestBuild_RenamesDuplicateIDs(t *testing.T) {
	first, second, third := node("a"), node("a"), node("a-2")
	plan := &models.Plan{Nodes: []*models.SubtaskNode{first, second, third, node("b", "a")}}

	nodes, err := Schedule(plan, nil)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	var got []string
	for _, n := range nodes {
		got = append(got, n.ID)
	}
	want := []string{"a", "a-3", "a-2", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
	if second.ID != "a" {
		t.Errorf("caller's node was mutated: ID = %q", second.ID)
	}
	if nodes[0] != first || nodes[2] != third {
		t.Error("declared ids should keep their nodes")
	}
}

func TestSchedule(t *testing.T) {
	plan := &models.Plan{Nodes: []*models.SubtaskNode{node("t2", "t1"), node("t1")}}

	nodes, err := Schedule(plan, nil)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(nodes) != 2 || nodes[0].ID != "t1" || nodes[1].ID != "t2" {
		t.Errorf("Schedule order wrong: %v", []string{nodes[0].ID, nodes[1].ID})
	}

	empty, err := Schedule(&models.Plan{}, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty plan: nodes=%v err=%v", empty, err)
	}
}

func TestScheduleWaves(t *testing.T) {
	plan := &models.Plan{Nodes: []*models.SubtaskNode{node("a"), node("b"), node("c", "a")}}

	waves, err := ScheduleWaves(plan, nil)
	if err != nil {
		t.Fatalf("ScheduleWaves failed: %v", err)
	}
	if len(waves) != 2 || len(waves[0]) != 2 || waves[1][0].ID != "c" {
		t.Errorf("unexpected waves shape: %d", len(waves))
	}
}
