// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"reflect"
	"testing"
)

func chainGraph() *Graph {
	// a -> b -> c
	return build([][2]string{
		{"src/a.ts", "src/b.ts"},
		{"src/b.ts", "src/c.ts"},
	}, nil)
}

func cycleGraph() *Graph {
	// a -> b -> c -> a
	return build([][2]string{
		{"src/a.ts", "src/b.ts"},
		{"src/b.ts", "src/c.ts"},
		{"src/c.ts", "src/a.ts"},
	}, nil)
}

func TestDependenciesAndDependents(t *testing.T) {
	g := chainGraph()

	if got := g.Dependencies("src/a.ts"); !reflect.DeepEqual(got, []string{"src/b.ts"}) {
		t.Errorf("dependencies(a) = %v", got)
	}
	if got := g.Dependents("src/c.ts"); !reflect.DeepEqual(got, []string{"src/b.ts"}) {
		t.Errorf("dependents(c) = %v", got)
	}
	if got := g.Dependencies("src/missing.ts"); len(got) != 0 {
		t.Errorf("missing node must yield an empty set, got %v", got)
	}
}

func TestTransitiveDependencies(t *testing.T) {
	g := chainGraph()
	got := g.TransitiveDependencies("src/a.ts")
	want := []string{"src/b.ts", "src/c.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transitive(a) = %v, want %v", got, want)
	}

	// Cycles terminate and never include the start node.
	cg := cycleGraph()
	got = cg.TransitiveDependencies("src/a.ts")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transitive(a) in cycle = %v, want %v", got, want)
	}
}

func TestAffected(t *testing.T) {
	g := chainGraph()
	got := g.Affected([]string{"src/c.ts"})
	want := []string{"src/a.ts", "src/b.ts", "src/c.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("affected(c) = %v, want %v", got, want)
	}

	got = g.Affected([]string{"src/a.ts"})
	if !reflect.DeepEqual(got, []string{"src/a.ts"}) {
		t.Errorf("affected(a) must be inclusive of the change itself, got %v", got)
	}
}

func TestHasCycle(t *testing.T) {
	if chainGraph().HasCycle() {
		t.Error("chain has no cycle")
	}
	if !cycleGraph().HasCycle() {
		t.Error("a->b->c->a is a cycle")
	}
}

func TestCyclePaths(t *testing.T) {
	cycles := cycleGraph().CyclePaths(0)
	if len(cycles) != 1 {
		t.Fatalf("expected exactly one cycle, got %v", cycles)
	}
	want := []string{"src/a.ts", "src/b.ts", "src/c.ts"}
	if !reflect.DeepEqual(cycles[0], want) {
		t.Errorf("cycle = %v, want %v", cycles[0], want)
	}

	// has_cycle agrees with cycle_paths.
	g := chainGraph()
	if g.HasCycle() != (len(g.CyclePaths(0)) > 0) {
		t.Error("HasCycle and CyclePaths disagree")
	}
}

func TestCyclePathsMaxCycles(t *testing.T) {
	// Two independent cycles.
	g := build([][2]string{
		{"a", "b"}, {"b", "a"},
		{"c", "d"}, {"d", "c"},
	}, nil)

	all := g.CyclePaths(0)
	if len(all) != 2 {
		t.Fatalf("expected 2 cycles, got %v", all)
	}
	limited := g.CyclePaths(1)
	if len(limited) != 1 {
		t.Fatalf("expected 1 cycle with max_cycles=1, got %v", limited)
	}
	// Enumeration is stable across calls.
	if !reflect.DeepEqual(limited[0], all[0]) {
		t.Error("bounded enumeration must be a prefix of the full one")
	}
}

func TestSelfImportIsLengthOneCycle(t *testing.T) {
	g := build([][2]string{{"src/a.ts", "src/a.ts"}}, nil)

	if !g.HasCycle() {
		t.Error("self-edge is a cycle")
	}
	cycles := g.CyclePaths(0)
	if len(cycles) != 1 || !reflect.DeepEqual(cycles[0], []string{"src/a.ts"}) {
		t.Errorf("self-import cycle = %v", cycles)
	}
}

func TestAdjacencyReturnsCopy(t *testing.T) {
	g := chainGraph()
	adj := g.Adjacency()
	adj["src/a.ts"][0] = "mutated"
	delete(adj, "src/b.ts")

	if got := g.Dependencies("src/a.ts"); got[0] != "src/b.ts" {
		t.Error("mutating the returned adjacency must not affect the graph")
	}
	if len(g.Adjacency()) != 3 {
		t.Error("successive calls must return fresh maps")
	}
}

func TestFanMetrics(t *testing.T) {
	g := cycleGraph()
	fan := g.Fan("src/b.ts")
	if fan.FanIn != 1 || fan.FanOut != 1 {
		t.Errorf("fan(b) = %+v", fan)
	}

	fan = g.Fan("src/never.ts")
	if fan.FanIn != 0 || fan.FanOut != 0 {
		t.Errorf("fan of a missing node = %+v", fan)
	}
}

func TestEdgelessNodesAreNotCycles(t *testing.T) {
	g := build([][2]string{{"a", "b"}}, []string{"lonely"})
	if g.HasCycle() {
		t.Error("registered nodes without edges must not create cycles")
	}
	if got := g.Dependencies("lonely"); len(got) != 0 {
		t.Errorf("lonely node has no dependencies, got %v", got)
	}
	if _, ok := g.Adjacency()["lonely"]; !ok {
		t.Error("registered node must appear in the adjacency")
	}
}
