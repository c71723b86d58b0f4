// Package graph provides the dependency graph for task scheduling.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"tequio/pkg/models"
)

// DuplicateTaskError indicates two task definitions share a name.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task name %q", e.Name)
}

// UnknownDependencyError indicates a task depends on an undefined task.
type UnknownDependencyError struct {
	Task    string
	Missing string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.Task, e.Missing)
}

// CycleError indicates a circular dependency. Path holds the cycle in
// dependency order, starting and ending at the same task.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

// Graph is a validated, read-only directed acyclic graph of task
// dependencies. Tasks are nodes, and edges represent "blocked by"
// relationships. Build it once; all query methods are safe for concurrent
// use because nothing mutates after Build returns.
type Graph struct {
	// nodes maps task name to its definition.
	nodes map[string]*models.TaskDefinition
	// edges maps task name to names of tasks it depends on.
	edges map[string][]string
	// reverse maps task name to names of tasks that depend on it.
	reverse map[string][]string
}

// Build constructs a dependency graph from task definitions and validates
// it: no duplicate names, every dependency resolves, no cycles.
func Build(defs []*models.TaskDefinition) (*Graph, error) {
	g := &Graph{
		nodes:   make(map[string]*models.TaskDefinition, len(defs)),
		edges:   make(map[string][]string, len(defs)),
		reverse: make(map[string][]string, len(defs)),
	}

	// First pass: register all tasks as nodes.
	for _, def := range defs {
		if _, exists := g.nodes[def.Name]; exists {
			return nil, &DuplicateTaskError{Name: def.Name}
		}
		g.nodes[def.Name] = def
		g.edges[def.Name] = nil
	}

	// Second pass: build forward and reverse edges from DependsOn fields.
	for _, def := range defs {
		for _, dep := range def.DependsOn {
			if _, exists := g.nodes[dep]; !exists {
				return nil, &UnknownDependencyError{Task: def.Name, Missing: dep}
			}
			g.edges[def.Name] = append(g.edges[def.Name], dep)
			g.reverse[dep] = append(g.reverse[dep], def.Name)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	return g, nil
}

// findCycle returns one dependency cycle as a path, or nil if the graph is
// acyclic. Uses depth-first search with coloring to detect back edges.
func (g *Graph) findCycle() []string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		colors[name] = 1
		stack = append(stack, name)

		for _, dep := range g.edges[name] {
			switch colors[dep] {
			case 1:
				// Back edge: slice the stack from the first occurrence of dep.
				for i, n := range stack {
					if n == dep {
						return append(append([]string{}, stack[i:]...), dep)
					}
				}
			case 0:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		colors[name] = 2
		stack = stack[:len(stack)-1]
		return nil
	}

	// Iterate in sorted order so the reported cycle is deterministic.
	for _, name := range g.Names() {
		if colors[name] == 0 {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Definition returns the definition for a task, or nil if not defined.
func (g *Graph) Definition(name string) *models.TaskDefinition {
	return g.nodes[name]
}

// Exists returns true if the task is defined in the graph.
func (g *Graph) Exists(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Dependencies returns the names of tasks the given task depends on.
func (g *Graph) Dependencies(name string) []string {
	return g.edges[name]
}

// Dependents returns the names of tasks that depend on the given task.
func (g *Graph) Dependents(name string) []string {
	return g.reverse[name]
}

// Names returns all task names in the graph, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the number of tasks in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// TopologicalSort returns task names in an order where all dependencies
// come before the tasks that depend on them. The graph is validated acyclic
// at build time, so this cannot fail.
func (g *Graph) TopologicalSort() []string {
	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range g.edges[name] {
			visit(dep)
		}
		result = append(result, name)
	}

	for _, name := range g.Names() {
		visit(name)
	}
	return result
}
