// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/gildash/internal/ui"
	"github.com/kraklabs/gildash/pkg/resolve"
)

// runResolve follows a symbol through its re-export chain, or prints a
// heritage tree with --heritage.
func runResolve(args []string, configPath string, globals GlobalFlags) int {
	flags := flag.NewFlagSet("resolve", flag.ExitOnError)
	heritage := flags.Bool("heritage", false, "Print the extends/implements tree instead")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	rest := flags.Args()
	if len(rest) < 2 {
		ui.Error("resolve: usage: gildash resolve [--heritage] <symbol> <file>")
		return 1
	}
	name, file := rest[0], rest[1]

	env, ok := openQueryEnv(globals)
	if !ok {
		return 1
	}
	defer env.close()

	ctx := context.Background()
	logger := newLogger(globals)

	if *heritage {
		walker := resolve.NewHeritageWalker(env.st.Relations(), logger)
		node, err := walker.Walk(ctx, name, file, env.project)
		if err != nil {
			ui.Error("heritage: %v", err)
			return 1
		}
		if globals.JSON {
			return printJSON(node)
		}
		printHeritage(node, 0)
		return 0
	}

	resolver := resolve.NewResolver(env.st.Relations(), logger)
	res, err := resolver.Resolve(ctx, name, file, env.project)
	if err != nil {
		ui.Error("resolve: %v", err)
		return 1
	}
	if globals.JSON {
		return printJSON(res)
	}

	ui.Plain("%s declared as %s in %s", name, res.OriginalName, res.OriginalFilePath)
	for i, link := range res.ReExportChain {
		ui.Dim("  %d. %s exports it as %s", i+1, link.FilePath, link.ExportedAs)
	}
	if res.Circular {
		ui.Error("re-export chain is circular")
	}
	return 0
}

func printHeritage(node *resolve.HeritageNode, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	label := node.SymbolName
	if node.Kind != "" {
		label = node.Kind + " " + label
	}
	ui.Plain("%s%s (%s)", indent, label, node.FilePath)
	for _, child := range node.Children {
		printHeritage(child, depth+1)
	}
}
