// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dag represents a single run's dependency sub-graph over an
// action.Registry: a breadth-first slice of the registry rooted at an
// entrypoint, queried for its ready set as jobs finish.
package dag

import (
	"fmt"

	"github.com/byggbuild/bygg/internal/action"
)

// ErrCycle is returned when the remaining graph has no ready node even
// though it is non-empty and nothing is in flight — the fatal cycle
// condition.
type ErrCycle struct{ Remaining []string }

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("dag: cycle detected among remaining actions: %v", e.Remaining)
}

// Graph is name -> set of remaining dependency names for the current run.
type Graph struct {
	nodes map[string]map[string]struct{}
}

// BuildFrom performs a breadth-first traversal over registry starting at
// entry, populating a Graph with every reachable action and its (still
// unresolved) dependency set. Missing dependencies surface as
// *action.ErrNotFound.
func BuildFrom(registry *action.Registry, entry string) (*Graph, error) {
	g := &Graph{nodes: make(map[string]map[string]struct{})}

	queue := []string{entry}
	visited := map[string]bool{entry: true}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		a, err := registry.MustGet(name)
		if err != nil {
			return nil, err
		}

		deps := make(map[string]struct{}, len(a.Dependencies))
		for _, d := range a.Dependencies {
			deps[d] = struct{}{}
			if !visited[d] {
				visited[d] = true
				queue = append(queue, d)
			}
		}
		g.nodes[name] = deps
	}

	if err := detectCycle(g); err != nil {
		return nil, err
	}
	return g, nil
}

// detectCycle simulates repeatedly removing ready nodes; if nodes remain
// once no further node is ready, the remainder forms at least one cycle.
func detectCycle(g *Graph) error {
	remaining := make(map[string]map[string]struct{}, len(g.nodes))
	for n, deps := range g.nodes {
		cp := make(map[string]struct{}, len(deps))
		for d := range deps {
			cp[d] = struct{}{}
		}
		remaining[n] = cp
	}

	for len(remaining) > 0 {
		var ready []string
		for n, deps := range remaining {
			if len(deps) == 0 {
				ready = append(ready, n)
			}
		}
		if len(ready) == 0 {
			names := make([]string, 0, len(remaining))
			for n := range remaining {
				names = append(names, n)
			}
			return &ErrCycle{Remaining: names}
		}
		for _, n := range ready {
			delete(remaining, n)
		}
		for _, deps := range remaining {
			for _, n := range ready {
				delete(deps, n)
			}
		}
	}
	return nil
}

// Remove drops name from the graph, along with its entry from every other
// node's dependency set. Called when a job finishes (success or skip).
func (g *Graph) Remove(name string) {
	delete(g.nodes, name)
	for _, deps := range g.nodes {
		delete(deps, name)
	}
}

// Ready returns every remaining node whose dependency set is empty — out-
// degree zero in the remaining graph. The result is unordered.
//
// If Ready returns empty while the graph is non-empty, the caller (the
// Scheduler) must treat that as ErrCycle only once it has confirmed no job
// is in flight. Ready does not exclude a node that is running but not yet
// Removed; the caller tracks and skips those itself.
func (g *Graph) Ready() []string {
	var ready []string
	for n, deps := range g.nodes {
		if len(deps) == 0 {
			ready = append(ready, n)
		}
	}
	return ready
}

// All enumerates every node remaining in the graph, in no particular order.
func (g *Graph) All() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	return names
}

// Len reports the number of nodes remaining in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Contains reports whether name is still present in the graph.
func (g *Graph) Contains(name string) bool {
	_, ok := g.nodes[name]
	return ok
}
