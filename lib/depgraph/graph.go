// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package depgraph models the workspace package graph: nodes are
// package or task names, edges point from dependent to dependency.
// Graphs are immutable once built and safe for concurrent queries.
// Cycles are structurally permitted — workspaces do contain them, and
// every traversal is visited-set guarded so it terminates and visits
// each node at most once. All query output is in canonical
// (lexicographic) order so repeated calls are byte-identical.
package depgraph

import (
	"fmt"
	"sort"
)

// UnknownNodeError reports a query that referenced a node absent from
// the graph. Silently dropping the reference would hide a caller bug,
// so it is always an error (never a skip).
type UnknownNodeError struct {
	Name string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("depgraph: unknown node %q", e.Name)
}

// Graph is an immutable directed dependency graph.
type Graph struct {
	// names holds every node in canonical sorted order. A node's
	// position in this slice is its index everywhere else.
	names []string

	// index maps a name back to its canonical index.
	index map[string]int

	// deps[i] lists the canonical indexes of node i's direct
	// dependencies, sorted ascending.
	deps [][]int
}

// New builds a graph from an edge map: each key is a node, each value
// its direct dependencies. Nodes appearing only as dependencies are
// added with no outgoing edges, so the node set is the union of keys
// and targets. Empty names are rejected; duplicate edges collapse to
// one. Self-edges and cycles are allowed — validation here is about
// well-formed input, not acyclicity.
func New(edges map[string][]string) (*Graph, error) {
	nameSet := make(map[string]struct{}, len(edges))
	for name, dependencies := range edges {
		if name == "" {
			return nil, fmt.Errorf("depgraph: empty node name")
		}
		nameSet[name] = struct{}{}
		for _, dependency := range dependencies {
			if dependency == "" {
				return nil, fmt.Errorf("depgraph: node %q has an empty dependency name", name)
			}
			nameSet[dependency] = struct{}{}
		}
	}

	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}

	deps := make([][]int, len(names))
	for name, dependencies := range edges {
		from := index[name]
		seen := make(map[int]struct{}, len(dependencies))
		for _, dependency := range dependencies {
			to := index[dependency]
			if _, duplicate := seen[to]; duplicate {
				continue
			}
			seen[to] = struct{}{}
			deps[from] = append(deps[from], to)
		}
		sort.Ints(deps[from])
	}

	return &Graph{names: names, index: index, deps: deps}, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.names)
}

// Nodes returns every node name in canonical order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Dependencies returns the direct dependencies of name in canonical
// order.
func (g *Graph) Dependencies(name string) ([]string, error) {
	i, known := g.index[name]
	if !known {
		return nil, &UnknownNodeError{Name: name}
	}
	out := make([]string, len(g.deps[i]))
	for j, dep := range g.deps[i] {
		out[j] = g.names[dep]
	}
	return out, nil
}

// Edges exports the graph as an edge map in the shape New accepts.
// Every node appears as a key, including leaves with no dependencies.
func (g *Graph) Edges() map[string][]string {
	out := make(map[string][]string, len(g.names))
	for i, name := range g.names {
		dependencies := make([]string, len(g.deps[i]))
		for j, dep := range g.deps[i] {
			dependencies[j] = g.names[dep]
		}
		out[name] = dependencies
	}
	return out
}

// TransitiveClosure returns the seeds plus every node reachable from
// them by following dependency edges, in canonical order. Unknown
// seeds fail with UnknownNodeError. The traversal is an explicit
// stack with a visited set, so cyclic graphs terminate and each node
// is expanded at most once.
func (g *Graph) TransitiveClosure(seeds []string) ([]string, error) {
	visited := make([]bool, len(g.names))
	stack := make([]int, 0, len(seeds))

	for _, seed := range seeds {
		i, known := g.index[seed]
		if !known {
			return nil, &UnknownNodeError{Name: seed}
		}
		if !visited[i] {
			visited[i] = true
			stack = append(stack, i)
		}
	}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range g.deps[current] {
			if !visited[dep] {
				visited[dep] = true
				stack = append(stack, dep)
			}
		}
	}

	// Canonical order falls out of scanning the visited array in
	// index order.
	var closure []string
	for i, in := range visited {
		if in {
			closure = append(closure, g.names[i])
		}
	}
	return closure, nil
}

// Subgraph returns the induced subgraph over the given node set:
// exactly those nodes, and only the edges with both endpoints in the
// set. Unknown nodes fail with UnknownNodeError.
func (g *Graph) Subgraph(nodes []string) (*Graph, error) {
	retained := make(map[string]struct{}, len(nodes))
	for _, name := range nodes {
		if _, known := g.index[name]; !known {
			return nil, &UnknownNodeError{Name: name}
		}
		retained[name] = struct{}{}
	}

	edges := make(map[string][]string, len(retained))
	for name := range retained {
		edges[name] = nil
		for _, dep := range g.deps[g.index[name]] {
			depName := g.names[dep]
			if _, keep := retained[depName]; keep {
				edges[name] = append(edges[name], depName)
			}
		}
	}
	return New(edges)
}

// GlobalChange compares two graphs and returns the nodes whose
// presence or direct dependency set differs: added nodes, removed
// nodes, and nodes whose edges changed. This is the "everything with
// this node in its closure may rebuild" trigger set. Result is in
// canonical order.
func GlobalChange(before, after *Graph) []string {
	affected := make(map[string]struct{})

	beforeEdges := before.Edges()
	afterEdges := after.Edges()

	for name, beforeDeps := range beforeEdges {
		afterDeps, present := afterEdges[name]
		if !present {
			affected[name] = struct{}{}
			continue
		}
		if !equalSorted(beforeDeps, afterDeps) {
			affected[name] = struct{}{}
		}
	}
	for name := range afterEdges {
		if _, present := beforeEdges[name]; !present {
			affected[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(affected))
	for name := range affected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func equalSorted(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
