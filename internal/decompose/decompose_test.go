package decompose

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

// fence swaps ''' for a markdown code fence so fixtures stay readable.
func fence(s string) string {
	return strings.ReplaceAll(s, "'''", "```")
}

func ids(plan *models.Plan) []string {
	return plan.IDs()
}

func TestExtractPlan_ValidBlock(t *testing.T) {
	response := fence(`Here is the plan:

'''json
{
  "subTasks": [
    {
      "id": "t1",
      "taskDescription": "Research A",
      "agentRole": "Researcher",
      "agentObjective": "Find facts about A",
      "agentTaskPrompt": "Research A thoroughly",
      "enableAugmentedCapability": true,
      "dependsOn": []
    },
    {
      "id": "t2",
      "taskDescription": "Summarize",
      "agentRole": "Writer",
      "agentObjective": "Summarize the research",
      "agentTaskPrompt": "Write a summary",
      "enableAugmentedCapability": false,
      "dependsOn": ["t1"]
    }
  ]
}
'''

Let me know if you need changes.`)

	plan := ExtractPlan(response)
	if plan.Len() != 2 {
		t.Fatalf("Len = %d, want 2", plan.Len())
	}

	t1 := plan.Node("t1")
	if t1 == nil {
		t.Fatal("t1 missing")
	}
	if t1.AssignedRole != "Researcher" || !t1.UseAugmentedCapability {
		t.Errorf("t1 = %+v", t1)
	}
	if t1.Instructions != "Research A thoroughly" || t1.Objective != "Find facts about A" {
		t.Errorf("t1 text fields wrong: %+v", t1)
	}

	t2 := plan.Node("t2")
	if !reflect.DeepEqual(t2.DependsOn, []string{"t1"}) {
		t.Errorf("t2.DependsOn = %v, want [t1]", t2.DependsOn)
	}
}

func TestExtractPlan_Noise(t *testing.T) {
	for _, response := range []string{
		"",
		"I'm sorry, I can't break that task down.",
		fence("'''\nno json here\n'''"),
	} {
		plan := ExtractPlan(response)
		if plan == nil {
			t.Fatalf("ExtractPlan(%q) returned nil", response)
		}
		if !plan.IsEmpty() {
			t.Errorf("ExtractPlan(%q) = %v, want empty", response, ids(plan))
		}
	}
}

func TestExtractPlan_BareObjectWithProse(t *testing.T) {
	response := `Sure! {"subTasks": [{"id": "a", "taskDescription": "Handle {braces} in text"}]} Hope this helps {not json}`

	plan := ExtractPlan(response)
	if plan.Len() != 1 {
		t.Fatalf("Len = %d, want 1", plan.Len())
	}
	if plan.Nodes[0].Description != "Handle {braces} in text" {
		t.Errorf("Description = %q", plan.Nodes[0].Description)
	}
}

func TestExtractPlan_CommentsAndTrailingCommas(t *testing.T) {
	response := fence(`'''json
{
  // planner notes
  "subTasks": [
    {"id": "a", "taskDescription": "Fetch http://example.com/data", "dependsOn": [],},
    {"id": "b", "taskDescription": "Parse it", "dependsOn": ["a",],}, // last
  ],
}
'''`)

	plan := ExtractPlan(response)
	if !reflect.DeepEqual(ids(plan), []string{"a", "b"}) {
		t.Fatalf("IDs = %v, want [a b]", ids(plan))
	}
	if plan.Nodes[0].Description != "Fetch http://example.com/data" {
		t.Errorf("comment stripping touched a string: %q", plan.Nodes[0].Description)
	}
	if !reflect.DeepEqual(plan.Nodes[1].DependsOn, []string{"a"}) {
		t.Errorf("b.DependsOn = %v", plan.Nodes[1].DependsOn)
	}
}

func TestExtractPlan_RegexRepair(t *testing.T) {
	response := fence(`'''json
{"subTasks": [
  {"id": "a", "taskDescription": "Research the market" "agentRole": "Analyst", "dependsOn": []}
  {"id": "b", "taskDescription": "Write the summary", "dependsOn": ["a"]}
]}
'''`)

	plan := ExtractPlan(response)
	if !reflect.DeepEqual(ids(plan), []string{"a", "b"}) {
		t.Fatalf("IDs = %v, want [a b]", ids(plan))
	}

	a := plan.Node("a")
	if a.AssignedRole != "Analyst" {
		t.Errorf("a.AssignedRole = %q, want Analyst", a.AssignedRole)
	}
	if a.Objective != "Research the market" || a.Instructions != "Research the market" {
		t.Errorf("a defaults wrong: %+v", a)
	}

	b := plan.Node("b")
	if b.AssignedRole != models.DefaultRole {
		t.Errorf("b.AssignedRole = %q, want default", b.AssignedRole)
	}
	if !reflect.DeepEqual(b.DependsOn, []string{"a"}) {
		t.Errorf("b.DependsOn = %v, want [a]", b.DependsOn)
	}
}

func TestExtractPlan_Unbalanced(t *testing.T) {
	response := `{"subTasks": [{"id": "a", "taskDescription": "Only task", "dependsOn": []}`

	plan := ExtractPlan(response)
	if !reflect.DeepEqual(ids(plan), []string{"a"}) {
		t.Fatalf("IDs = %v, want [a]", ids(plan))
	}
}

func TestExtractPlan_DependsOnCoercion(t *testing.T) {
	response := `{"subTasks": [
		{"id": "t1", "taskDescription": "one"},
		{"id": "t2", "taskDescription": "two", "dependsOn": "t1"},
		{"id": "t3", "taskDescription": "three", "dependsOn": "t1, t2"},
		{"id": "t4", "taskDescription": "four", "dependsOn": [1, 2]},
		{"id": "t5", "taskDescription": "five", "depends_on": ["t4"]},
		{"id": "t6", "taskDescription": "six", "dependsOn": {"bad": true}}
	]}`

	plan := ExtractPlan(response)
	want := map[string][]string{
		"t1": nil,
		"t2": {"t1"},
		"t3": {"t1", "t2"},
		"t4": {"task1", "task2"},
		"t5": {"t4"},
		"t6": nil,
	}
	for id, deps := range want {
		n := plan.Node(id)
		if n == nil {
			t.Fatalf("%s missing", id)
		}
		if !reflect.DeepEqual(n.DependsOn, deps) {
			t.Errorf("%s.DependsOn = %v, want %v", id, n.DependsOn, deps)
		}
	}
}

func TestExtractPlan_MissingAndDuplicateIDs(t *testing.T) {
	response := `{"tasks": [
		{"taskDescription": "first"},
		{"id": "a", "taskDescription": "second"},
		{"id": "a", "taskDescription": "third"},
		{"id": "a", "taskDescription": "fourth"},
		{"taskDescription": "fifth"}
	]}`

	plan := ExtractPlan(response)
	want := []string{"task1", "a", "a-2", "a-3", "task5"}
	if !reflect.DeepEqual(ids(plan), want) {
		t.Errorf("IDs = %v, want %v", ids(plan), want)
	}
}

func TestExtractPlan_NumericIDsAndStringFlags(t *testing.T) {
	response := `{"subtasks": [
		{"id": 1, "taskDescription": "one", "enableAugmentedCapability": "true"},
		{"id": 2, "taskDescription": "two", "dependsOn": [1]}
	]}`

	plan := ExtractPlan(response)
	if !reflect.DeepEqual(ids(plan), []string{"task1", "task2"}) {
		t.Fatalf("IDs = %v", ids(plan))
	}
	if !plan.Nodes[0].UseAugmentedCapability {
		t.Error("string flag \"true\" should enable augmentation")
	}
	if !reflect.DeepEqual(plan.Nodes[1].DependsOn, []string{"task1"}) {
		t.Errorf("DependsOn = %v", plan.Nodes[1].DependsOn)
	}
}

func TestExtractPlan_KeepsNodesWithoutDescription(t *testing.T) {
	plan := ExtractPlan(`{"subTasks": [{"id": "a"}, {"id": "b", "taskDescription": "real"}, {}]}`)
	if !reflect.DeepEqual(ids(plan), []string{"a", "b"}) {
		t.Fatalf("IDs = %v, want [a b]", ids(plan))
	}

	a := plan.Node("a")
	if a.Description != "Subtask a" {
		t.Errorf("Description = %q, want %q", a.Description, "Subtask a")
	}
	if a.AssignedRole != models.DefaultRole {
		t.Errorf("AssignedRole = %q, want %q", a.AssignedRole, models.DefaultRole)
	}
	if a.Objective != a.Description || a.Instructions != a.Description {
		t.Errorf("Objective/Instructions = %q/%q, want description", a.Objective, a.Instructions)
	}
}

func TestExtractPlan_RoleAndDependenciesOnly(t *testing.T) {
	response := fence(`'''json
{"subTasks":[{"id":"t1","agentRole":"R","dependsOn":[]},{"id":"t2","agentRole":"R","dependsOn":["t1"]}]}
'''`)

	plan := ExtractPlan(response)
	if !reflect.DeepEqual(ids(plan), []string{"t1", "t2"}) {
		t.Fatalf("IDs = %v, want [t1 t2]", ids(plan))
	}
	if got := plan.Node("t2").DependsOn; !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("t2 DependsOn = %v, want [t1]", got)
	}
	for _, n := range plan.Nodes {
		if n.AssignedRole != "R" {
			t.Errorf("%s AssignedRole = %q, want R", n.ID, n.AssignedRole)
		}
		if n.Description == "" {
			t.Errorf("%s has empty description", n.ID)
		}
	}
}

func TestExtractPlan_GeneratedIDsAvoidDeclaredIDs(t *testing.T) {
	response := `{"subTasks": [
		{"taskDescription": "anon"},
		{"id": "task1", "taskDescription": "explicit"},
		{"id": "t3", "dependsOn": ["task1"]}
	]}`

	plan := ExtractPlan(response)
	if len(plan.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(plan.Nodes))
	}
	if n := plan.Node("task1"); n == nil || n.Description != "explicit" {
		t.Fatalf("task1 = %+v, want the explicit node", n)
	}
	if plan.Nodes[0].ID == "task1" {
		t.Errorf("anonymous node took declared id task1")
	}
	if got := plan.Node("t3").DependsOn; !reflect.DeepEqual(got, []string{"task1"}) {
		t.Errorf("t3 DependsOn = %v, want [task1]", got)
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short"); got != "short" {
		t.Errorf("preview = %q", got)
	}

	long := strings.Repeat("日本", previewLen)
	got := preview(long)
	if !utf8.ValidString(got) {
		t.Error("preview split a multi-byte rune")
	}
	if !strings.HasSuffix(got, "... (truncated)") || len(got) > previewLen+len("... (truncated)") {
		t.Errorf("preview length = %d", len(got))
	}
}

func TestLocateBlock_Preference(t *testing.T) {
	text := fence("'''\n{\"other\": 1}\n'''\n'''json\n{\"subTasks\": []}\n'''")
	block, ok := LocateBlock(text)
	if !ok || block != `{"subTasks": []}` {
		t.Errorf("LocateBlock = %q, %v; want json-tagged fence", block, ok)
	}

	block, ok = LocateBlock(fence("'''\n{\"a\": 1}\n'''"))
	if !ok || block != `{"a": 1}` {
		t.Errorf("LocateBlock = %q, %v; want untagged fence", block, ok)
	}

	if _, ok := LocateBlock("no braces"); ok {
		t.Error("LocateBlock should fail without braces")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"comment", "{\"a\": 1 // one\n}", "{\"a\": 1 \n}"},
		{"string keeps slashes", `{"u": "http://x"}`, `{"u": "http://x"}`},
		{"trailing comma", `{"a": [1, 2,]}`, `{"a": [1, 2]}`},
		{"unbalanced trimmed", `noise {"a": {"b": 1}`, `{"a": {"b": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildPlanningPrompt(t *testing.T) {
	prompt := BuildPlanningPrompt("Compare A and B")
	for _, want := range []string{"Compare A and B", "subTasks", "agentTaskPrompt", "dependsOn", "```json"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDecomposer_Plan(t *testing.T) {
	var gotPrompt string
	completer := api.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return `{"subTasks": [{"id": "t1", "taskDescription": "Research A"}]}`, nil
	})

	plan := New(completer, nil).Plan(context.Background(), "Research A")
	if plan.Len() != 1 {
		t.Fatalf("Len = %d, want 1", plan.Len())
	}
	if plan.ID == "" || plan.Task != "Research A" || plan.CreatedAt.IsZero() {
		t.Errorf("plan not stamped: %+v", plan)
	}
	if !strings.Contains(gotPrompt, "Research A") {
		t.Error("planning prompt should include the task")
	}
}

func TestDecomposer_PlanCompleterError(t *testing.T) {
	completer := api.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("service unavailable")
	})

	plan := New(completer, nil).Plan(context.Background(), "anything")
	if plan == nil {
		t.Fatal("Plan returned nil")
	}
	if !plan.IsEmpty() {
		t.Errorf("Len = %d, want 0", plan.Len())
	}
}
