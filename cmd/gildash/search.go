// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/gildash/internal/ui"
	"github.com/kraklabs/gildash/pkg/store"
)

// runSearch queries indexed symbols (default) or relations.
func runSearch(args []string, configPath string, globals GlobalFlags) int {
	flags := flag.NewFlagSet("search", flag.ExitOnError)
	exact := flags.Bool("exact", false, "Match the symbol name exactly")
	file := flags.String("file", "", "Restrict to one file (project-relative)")
	kind := flags.String("kind", "", "Restrict to a symbol kind (function, class, ...)")
	exported := flags.Bool("exported", false, "Only exported symbols")
	relations := flags.Bool("relations", false, "Search relations instead of symbols")
	relType := flags.String("type", "", "Relation type filter (imports, calls, ...)")
	limit := flags.Int("limit", 50, "Maximum results")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	env, ok := openQueryEnv(globals)
	if !ok {
		return 1
	}
	defer env.close()

	ctx := context.Background()

	if *relations {
		rels, err := env.st.Relations().Search(ctx, store.RelationQuery{
			Project:     env.project,
			Type:        store.RelationType(*relType),
			SrcFilePath: *file,
			Limit:       *limit,
		})
		if err != nil {
			ui.Error("search relations: %v", err)
			return 1
		}
		if globals.JSON {
			return printJSON(rels)
		}
		for _, rel := range rels {
			ui.Plain("%-12s %s -> %s %s", rel.Type, rel.SrcFilePath, rel.DstFilePath, rel.DstSymbolName)
		}
		ui.Dim("%d relation(s)", len(rels))
		return 0
	}

	text := ""
	if rest := flags.Args(); len(rest) > 0 {
		text = rest[0]
	}
	q := store.SymbolQuery{
		Project:  env.project,
		Text:     text,
		Exact:    *exact,
		FilePath: *file,
		Kind:     *kind,
		Limit:    *limit,
	}
	if *exported {
		t := true
		q.IsExported = &t
	}
	symbols, err := env.st.Symbols().Search(ctx, q)
	if err != nil {
		ui.Error("search symbols: %v", err)
		return 1
	}
	if globals.JSON {
		return printJSON(symbols)
	}
	for _, sym := range symbols {
		marker := " "
		if sym.IsExported {
			marker = "*"
		}
		ui.Plain("%s %-10s %-30s %s:%d", marker, sym.Kind, sym.Name, sym.FilePath, sym.Span.StartLine)
	}
	ui.Dim("%d symbol(s)", len(symbols))
	return 0
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		ui.Error("encode: %v", err)
		return 1
	}
	return 0
}
