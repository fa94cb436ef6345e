package models

import (
	"fmt"
	"time"
)

// DefaultRole is the role assigned to a subtask whose plan entry names none.
const DefaultRole = "Specialist Agent"

// SubtaskNode represents one unit of decomposed work.
type SubtaskNode struct {
	// ID is unique within a plan. Assigned as task<N> when the planner omits it.
	ID string `json:"id" yaml:"id"`
	// Description is the human-readable summary of the subtask.
	Description string `json:"taskDescription" yaml:"taskDescription"`
	// AssignedRole is the capability label used to construct a worker.
	AssignedRole string `json:"agentRole" yaml:"agentRole"`
	// Objective is what the worker is trying to achieve.
	Objective string `json:"agentObjective" yaml:"agentObjective,omitempty"`
	// Instructions is the text handed to the worker. The execution engine
	// augments it with dependency results before execution.
	Instructions string `json:"agentTaskPrompt" yaml:"agentTaskPrompt,omitempty"`
	// UseAugmentedCapability marks subtasks that may consult an external
	// capability such as search.
	UseAugmentedCapability bool `json:"enableAugmentedCapability" yaml:"enableAugmentedCapability,omitempty"`
	// DependsOn lists ids of subtasks that must run before this one.
	DependsOn []string `json:"dependsOn" yaml:"dependsOn,flow"`
}

// Spec returns the worker specification for this subtask. Instructions are
// left out since the engine passes them to Execute along with dependency results.
func (n *SubtaskNode) Spec() WorkerSpec {
	kind := WorkerKindCompletion
	if n.UseAugmentedCapability {
		kind = WorkerKindAugmented
	}
	role := n.AssignedRole
	if role == "" {
		role = DefaultRole
	}
	return WorkerSpec{
		Kind:      kind,
		Name:      n.ID,
		Role:      role,
		Objective: n.Objective,
		Augmented: n.UseAugmentedCapability,
	}
}

// Clone returns a deep copy of the node.
func (n *SubtaskNode) Clone() *SubtaskNode {
	c := *n
	if n.DependsOn != nil {
		c.DependsOn = append([]string(nil), n.DependsOn...)
	}
	return &c
}

// AutoID returns the id assigned to the subtask at zero-based position i
// when the planner leaves it empty.
func AutoID(i int) string {
	return fmt.Sprintf("task%d", i+1)
}

// Plan is the ordered set of subtasks for one orchestration call.
// A plan with no nodes is valid and means no actionable plan was produced.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	// Task is the top-level task the plan was generated for.
	Task string `json:"task,omitempty" yaml:"task,omitempty"`
	// Nodes are the subtasks in declaration order.
	Nodes []*SubtaskNode `json:"subTasks" yaml:"subTasks"`
	// CreatedAt is when the plan was acquired.
	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// Len returns the number of subtasks in the plan.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Nodes)
}

// IsEmpty reports whether the plan has no actionable subtasks.
func (p *Plan) IsEmpty() bool {
	return p.Len() == 0
}

// Node returns the subtask with the given id, or nil.
func (p *Plan) Node(id string) *SubtaskNode {
	if p == nil {
		return nil
	}
	for _, n := range p.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// IDs returns node ids in declaration order.
func (p *Plan) IDs() []string {
	if p == nil {
		return nil
	}
	ids := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}
	return ids
}
