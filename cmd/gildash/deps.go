// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/gildash/internal/ui"
	"github.com/kraklabs/gildash/pkg/graph"
)

// runDeps answers dependency graph queries against the existing index.
func runDeps(args []string, configPath string, globals GlobalFlags) int {
	flags := flag.NewFlagSet("deps", flag.ExitOnError)
	dependents := flags.Bool("dependents", false, "Show dependents instead of dependencies")
	transitive := flags.Bool("transitive", false, "Show the transitive closure")
	cycles := flags.Bool("cycles", false, "Enumerate import cycles")
	maxCycles := flags.Int("max-cycles", 0, "Stop after N cycles (0 = all)")
	fan := flags.Bool("fan", false, "Show fan-in/fan-out for the file")
	typeRefs := flags.Bool("type-refs", false, "Merge type-ref edges into the graph")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	env, ok := openQueryEnv(globals)
	if !ok {
		return 1
	}
	defer env.close()

	engine := graph.NewEngine(env.st, *typeRefs, newLogger(globals))
	ctx := context.Background()
	g, err := engine.Get(ctx, env.project)
	if err != nil {
		ui.Error("build graph: %v", err)
		return 1
	}

	if *cycles {
		paths := g.CyclePaths(*maxCycles)
		if globals.JSON {
			return printJSON(paths)
		}
		if len(paths) == 0 {
			ui.Success("no cycles")
			return 0
		}
		for _, cycle := range paths {
			ui.Plain("%s -> %s", strings.Join(cycle, " -> "), cycle[0])
		}
		ui.Dim("%d cycle(s)", len(paths))
		return 0
	}

	rest := flags.Args()
	if len(rest) == 0 {
		ui.Error("deps: file argument required (or use --cycles)")
		return 1
	}
	file := rest[0]

	if *fan {
		metrics := g.Fan(file)
		if globals.JSON {
			return printJSON(metrics)
		}
		ui.Plain("%s", metrics.File)
		ui.Plain("  fan-in:  %d", metrics.FanIn)
		ui.Plain("  fan-out: %d", metrics.FanOut)
		return 0
	}

	var out []string
	switch {
	case *dependents:
		out = g.Dependents(file)
	case *transitive:
		out = g.TransitiveDependencies(file)
	default:
		out = g.Dependencies(file)
	}
	if globals.JSON {
		return printJSON(out)
	}
	for _, f := range out {
		ui.Plain("%s", f)
	}
	ui.Dim("%d file(s)", len(out))
	return 0
}
