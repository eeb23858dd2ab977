// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graph materializes the file dependency graph from stored
// relations and answers traversal queries over it: dependents and
// dependencies, transitive closure, affected sets, cycles and fan
// metrics.
package graph

import (
	"sort"
)

// Graph is a directed graph over project-relative file paths. Immutable
// once built; adjacency lists are sorted and deduplicated.
type Graph struct {
	adj  map[string][]string
	radj map[string][]string
}

// FanMetrics counts a file's direct dependents and dependencies.
type FanMetrics struct {
	File   string `json:"file"`
	FanIn  int    `json:"fan_in"`
	FanOut int    `json:"fan_out"`
}

// build constructs a graph from (src, dst) edge pairs plus edge-less
// nodes. Self-edges are retained; a file importing itself is a cycle of
// length one.
func build(edges [][2]string, nodes []string) *Graph {
	adjSet := make(map[string]map[string]bool)
	radjSet := make(map[string]map[string]bool)
	touch := func(m map[string]map[string]bool, k string) map[string]bool {
		s, ok := m[k]
		if !ok {
			s = make(map[string]bool)
			m[k] = s
		}
		return s
	}
	for _, e := range edges {
		src, dst := e[0], e[1]
		touch(adjSet, src)[dst] = true
		touch(radjSet, dst)[src] = true
		// Ensure both endpoints exist as nodes.
		touch(adjSet, dst)
		touch(radjSet, src)
	}
	for _, n := range nodes {
		touch(adjSet, n)
		touch(radjSet, n)
	}

	g := &Graph{
		adj:  make(map[string][]string, len(adjSet)),
		radj: make(map[string][]string, len(radjSet)),
	}
	for k, set := range adjSet {
		g.adj[k] = sortedKeys(set)
	}
	for k, set := range radjSet {
		g.radj[k] = sortedKeys(set)
	}
	return g
}

// Dependencies returns the files that file directly depends on. A missing
// node yields an empty set, never an error.
func (g *Graph) Dependencies(file string) []string {
	return append([]string(nil), g.adj[file]...)
}

// Dependents returns the files that directly depend on file.
func (g *Graph) Dependents(file string) []string {
	return append([]string(nil), g.radj[file]...)
}

// TransitiveDependencies returns every file reachable from file,
// excluding file itself. A visited set bounds the walk so cycles
// terminate.
func (g *Graph) TransitiveDependencies(file string) []string {
	visited := map[string]bool{file: true}
	var out []string
	stack := append([]string(nil), g.adj[file]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		out = append(out, cur)
		stack = append(stack, g.adj[cur]...)
	}
	sort.Strings(out)
	return out
}

// Affected returns the transitive dependents of every file in changed,
// inclusive of the changed files themselves.
func (g *Graph) Affected(changed []string) []string {
	visited := make(map[string]bool)
	var stack []string
	for _, f := range changed {
		if !visited[f] {
			visited[f] = true
			stack = append(stack, f)
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range g.radj[cur] {
			if !visited[dep] {
				visited[dep] = true
				stack = append(stack, dep)
			}
		}
	}
	return sortedKeys(visited)
}

// HasCycle reports whether the graph contains any directed cycle.
func (g *Graph) HasCycle() bool {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(g.adj))
	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = grey
		for _, next := range g.adj[n] {
			switch color[next] {
			case grey:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}
	for _, n := range sortedKeys2(g.adj) {
		if color[n] == white && visit(n) {
			return true
		}
	}
	return false
}

// CyclePaths enumerates simple cycles. Each cycle is reported once, with
// its lexicographically smallest node first. Enumeration is depth-first
// from nodes in ascending order over sorted adjacency, so the order is
// stable for a fixed graph. maxCycles <= 0 means unbounded.
func (g *Graph) CyclePaths(maxCycles int) [][]string {
	nodes := sortedKeys2(g.adj)
	rank := make(map[string]int, len(nodes))
	for i, n := range nodes {
		rank[n] = i
	}

	var cycles [][]string
	var path []string
	onPath := make(map[string]bool)

	var dfs func(start, cur string) bool
	dfs = func(start, cur string) bool {
		path = append(path, cur)
		onPath[cur] = true
		defer func() {
			path = path[:len(path)-1]
			delete(onPath, cur)
		}()

		for _, next := range g.adj[cur] {
			if next == start {
				cycles = append(cycles, append([]string(nil), path...))
				if maxCycles > 0 && len(cycles) >= maxCycles {
					return true
				}
				continue
			}
			// Restricting the walk to nodes after start makes start the
			// canonical smallest node of every cycle found here.
			if rank[next] <= rank[start] || onPath[next] {
				continue
			}
			if dfs(start, next) {
				return true
			}
		}
		return false
	}

	for _, start := range nodes {
		if dfs(start, start) {
			break
		}
	}
	return cycles
}

// Adjacency returns a copy of the outgoing adjacency, never the internal
// structure.
func (g *Graph) Adjacency() map[string][]string {
	out := make(map[string][]string, len(g.adj))
	for k, v := range g.adj {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Fan returns the fan-in/fan-out counts for a file.
func (g *Graph) Fan(file string) FanMetrics {
	return FanMetrics{
		File:   file,
		FanIn:  len(g.radj[file]),
		FanOut: len(g.adj[file]),
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeys2(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
