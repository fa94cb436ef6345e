// Package graph provides the dependency graph used to order plan subtasks.
package graph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ShayCichocki/taskforge/pkg/models"
)

var (
	// ErrCycleDetected indicates a circular dependency was found in strict mode.
	ErrCycleDetected = errors.New("circular dependency detected")
	// ErrUnresolvedDependency indicates a dependsOn entry names no node in the
	// plan. Only returned in strict mode.
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	// ErrDuplicateID indicates two nodes share an id. Only returned in strict mode.
	ErrDuplicateID = errors.New("duplicate subtask id")
)

// DependencyGraph is a directed graph of subtask dependencies.
// Nodes are subtasks, and edges represent "depends on" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// order holds node ids in declaration order.
	order []string
	// nodes maps id to the subtask itself.
	nodes map[string]*models.SubtaskNode
	// edges maps id to ids of the nodes it depends on.
	edges map[string][]string
	// dependents maps id to ids of the nodes that depend on it, in declaration order.
	dependents map[string][]string

	strict bool
	logger *slog.Logger
}

// Option configures a DependencyGraph.
type Option func(*DependencyGraph)

// WithStrict turns dangling references and cycles into errors instead of
// warnings.
func WithStrict(strict bool) Option {
	return func(g *DependencyGraph) { g.strict = strict }
}

// WithLogger sets the logger used for dropped references and cycle fallback.
func WithLogger(l *slog.Logger) Option {
	return func(g *DependencyGraph) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a new empty dependency graph.
func New(opts ...Option) *DependencyGraph {
	g := &DependencyGraph{
		nodes:      make(map[string]*models.SubtaskNode),
		edges:      make(map[string][]string),
		dependents: make(map[string][]string),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Strict reports whether the graph runs in strict mode.
func (g *DependencyGraph) Strict() bool {
	return g.strict
}

// Build constructs the graph from nodes in declaration order.
// References to unknown ids are dropped with a warning, or rejected in strict mode.
// A repeated id is renamed to id-2, id-3, ... on a copy of the node so every
// node is scheduled; dependencies on the id resolve to its first declaration.
// Strict mode rejects repeated ids instead.
func (g *DependencyGraph) Build(nodes []*models.SubtaskNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.order = g.order[:0]
	g.nodes = make(map[string]*models.SubtaskNode, len(nodes))
	g.edges = make(map[string][]string, len(nodes))
	g.dependents = make(map[string][]string, len(nodes))

	declared := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n != nil {
			declared[n.ID] = true
		}
	}

	// First pass: register all nodes.
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if _, exists := g.nodes[n.ID]; exists {
			if g.strict {
				return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
			}
			renamed := *n
			renamed.ID = g.freeIDLocked(n.ID, declared)
			g.logger.Warn("duplicate subtask id renamed", "id", n.ID, "renamed", renamed.ID)
			n = &renamed
		}
		g.nodes[n.ID] = n
		g.edges[n.ID] = nil
		g.order = append(g.order, n.ID)
	}

	// Second pass: build edges from DependsOn.
	for _, id := range g.order {
		seen := make(map[string]bool)
		for _, depID := range g.nodes[id].DependsOn {
			if seen[depID] {
				continue
			}
			seen[depID] = true
			if _, exists := g.nodes[depID]; !exists {
				if g.strict {
					return fmt.Errorf("%w: subtask %s depends on unknown subtask %s",
						ErrUnresolvedDependency, id, depID)
				}
				g.logger.Warn("dropping unresolved dependency", "id", id, "depends_on", depID)
				continue
			}
			g.edges[id] = append(g.edges[id], depID)
			g.dependents[depID] = append(g.dependents[depID], id)
		}
	}

	g.logger.Debug("dependency graph built", "nodes", len(g.order))
	return nil
}

// freeIDLocked returns id suffixed with the first -N that is neither
// registered nor declared by another node.
func (g *DependencyGraph) freeIDLocked(id string, declared map[string]bool) string {
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", id, n)
		if _, exists := g.nodes[candidate]; !exists && !declared[candidate] {
			return candidate
		}
	}
}

// kahnLocked runs Kahn's algorithm with a FIFO queue seeded in declaration
// order. It returns the order and each node's level; the order is shorter
// than the node count when the graph has a cycle.
func (g *DependencyGraph) kahnLocked() ([]string, map[string]int) {
	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		inDegree[id] = len(g.edges[id])
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	level := make(map[string]int, len(g.order))
	result := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		for _, dep := range g.dependents[id] {
			if level[id]+1 > level[dep] {
				level[dep] = level[id] + 1
			}
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	return result, level
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	order, _ := g.kahnLocked()
	return len(order) < len(g.order)
}

// TopologicalSort returns node ids so that every node comes after the nodes
// it depends on. Ties keep declaration order. If the graph has a cycle the
// declaration order is returned with a warning, or ErrCycleDetected in strict mode.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	order, _ := g.kahnLocked()
	if len(order) < len(g.order) {
		if g.strict {
			return nil, ErrCycleDetected
		}
		g.logger.Warn("cycle detected, falling back to declaration order",
			"sorted", len(order), "nodes", len(g.order))
		return append([]string(nil), g.order...), nil
	}
	return order, nil
}

// Waves groups the topological order into levels. Nodes in the same wave
// depend only on nodes in earlier waves, so a wave can run in parallel.
// With a cycle in lenient mode each node gets its own wave in declaration order.
func (g *DependencyGraph) Waves() ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	order, level := g.kahnLocked()
	if len(order) < len(g.order) {
		if g.strict {
			return nil, ErrCycleDetected
		}
		g.logger.Warn("cycle detected, running one subtask per wave",
			"sorted", len(order), "nodes", len(g.order))
		waves := make([][]string, len(g.order))
		for i, id := range g.order {
			waves[i] = []string{id}
		}
		return waves, nil
	}

	var waves [][]string
	for _, id := range order {
		l := level[id]
		for len(waves) <= l {
			waves = append(waves, nil)
		}
		waves[l] = append(waves[l], id)
	}
	return waves, nil
}

// Node returns the subtask for a given id, or nil if not found.
func (g *DependencyGraph) Node(id string) *models.SubtaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of nodes in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Dependencies returns the resolved ids the given node depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the ids of nodes that depend on the given node.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[id]...)
}

// Schedule builds a graph for plan and returns its nodes in execution order.
func Schedule(plan *models.Plan, logger *slog.Logger, opts ...Option) ([]*models.SubtaskNode, error) {
	if plan.IsEmpty() {
		return nil, nil
	}
	g := New(append([]Option{WithLogger(logger)}, opts...)...)
	if err := g.Build(plan.Nodes); err != nil {
		return nil, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	return g.resolve(order), nil
}

// ScheduleWaves is Schedule grouped into parallel waves.
func ScheduleWaves(plan *models.Plan, logger *slog.Logger, opts ...Option) ([][]*models.SubtaskNode, error) {
	if plan.IsEmpty() {
		return nil, nil
	}
	g := New(append([]Option{WithLogger(logger)}, opts...)...)
	if err := g.Build(plan.Nodes); err != nil {
		return nil, err
	}
	waves, err := g.Waves()
	if err != nil {
		return nil, err
	}
	out := make([][]*models.SubtaskNode, len(waves))
	for i, wave := range waves {
		out[i] = g.resolve(wave)
	}
	return out, nil
}

func (g *DependencyGraph) resolve(ids []string) []*models.SubtaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodes := make([]*models.SubtaskNode, len(ids))
	for i, id := range ids {
		nodes[i] = g.nodes[id]
	}
	return nodes
}
