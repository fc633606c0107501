// Package graph provides a dependency graph used to group work into stages.
package graph

import (
	"errors"
	"fmt"
)

// ErrCycleDetected indicates a circular dependency was found in the graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// Node is a graph vertex and the IDs of the nodes it depends on.
type Node struct {
	ID        string
	DependsOn []string
}

// DependencyGraph is a directed acyclic graph of "blocked by" edges.
// Insertion order is kept so every traversal is deterministic.
type DependencyGraph struct {
	// order lists node IDs in insertion order.
	order []string
	// index maps a node ID to its position in order.
	index map[string]int
	// edges maps node ID to IDs of nodes it depends on.
	edges map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		index:    make(map[string]int),
		edges:    make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from nodes.
// Returns an error for duplicate nodes, dependencies on unknown nodes, or cycles.
func (g *DependencyGraph) Build(nodes []Node) error {
	g.debugLog("[graph.Build] building graph from %d nodes", len(nodes))

	// First pass: register all nodes.
	for _, n := range nodes {
		if _, dup := g.index[n.ID]; dup {
			return fmt.Errorf("duplicate node %s", n.ID)
		}
		g.index[n.ID] = len(g.order)
		g.order = append(g.order, n.ID)
		g.edges[n.ID] = nil
	}

	// Second pass: build edges, dropping repeated dependencies.
	for _, n := range nodes {
		seen := make(map[string]bool, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			if _, ok := g.index[dep]; !ok {
				return fmt.Errorf("%s depends on unknown node %s", n.ID, dep)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			g.edges[n.ID] = append(g.edges[n.ID], dep)
		}
	}

	g.debugLog("[graph.Build] edges: %v", g.edges)

	if g.HasCycle() {
		return ErrCycleDetected
	}
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) HasCycle() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.order))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// Levels groups nodes by dependency depth. Level 0 holds nodes with no
// dependencies; every other node sits one level after its deepest
// dependency. Within a level nodes keep insertion order.
func (g *DependencyGraph) Levels() ([][]string, error) {
	if g.HasCycle() {
		return nil, ErrCycleDetected
	}

	depth := make(map[string]int, len(g.order))
	var visit func(id string) int
	visit = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, dep := range g.edges[id] {
			if dd := visit(dep) + 1; dd > d {
				d = dd
			}
		}
		depth[id] = d
		return d
	}

	var levels [][]string
	for _, id := range g.order {
		d := visit(id)
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], id)
	}

	g.debugLog("[graph.Levels] %v", levels)
	return levels, nil
}

// TopologicalSort returns node IDs so that every dependency comes before
// its dependents: the levels flattened in order.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(g.order))
	for _, l := range levels {
		out = append(out, l...)
	}
	return out, nil
}

// DependenciesOf returns the direct dependencies of a node.
func (g *DependencyGraph) DependenciesOf(id string) []string {
	return append([]string(nil), g.edges[id]...)
}

// Size returns the number of nodes in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.order)
}
