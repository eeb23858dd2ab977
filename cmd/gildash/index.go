// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/gildash/internal/ui"
	"github.com/kraklabs/gildash/pkg/gildash"
	"github.com/kraklabs/gildash/pkg/indexer"
)

// runIndex performs a one-shot full index of the current repository.
func runIndex(args []string, configPath string, globals GlobalFlags) int {
	flags := flag.NewFlagSet("index", flag.ExitOnError)
	cleanup := flags.Bool("cleanup", false, "Delete the store files after indexing (dry-run style)")
	_ = flags.Parse(args)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		ui.Error("load config: %v", err)
		return 1
	}
	root, err := projectRoot()
	if err != nil {
		ui.Error("%v", err)
		return 1
	}

	opts := cfg.openOptions(globals)
	opts.NoWatch = true
	opts.CleanupOnClose = *cleanup

	var bar *progressbar.ProgressBar
	if !globals.Quiet && ui.IsTerminal() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("indexing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		done := make(chan struct{})
		defer close(done)
		go func() {
			for {
				select {
				case <-done:
					return
				case <-time.After(120 * time.Millisecond):
					_ = bar.Add(1)
				}
			}
		}()
	}

	start := time.Now()
	var result *indexer.Result
	g, err := gildash.Open(context.Background(), root, opts)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		ui.Error("index: %v", err)
		return 1
	}
	defer func() {
		if closeErr := g.Close(); closeErr != nil {
			ui.Error("close: %v", closeErr)
		}
	}()

	// Open already ran the full index; a second run reports the state
	// of the reconciled tree (cheap: everything unchanged).
	result, err = g.Reindex(context.Background())
	if err != nil {
		ui.Error("index: %v", err)
		return 1
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return 0
	}

	stats, err := g.Stats(context.Background(), "")
	if err != nil {
		ui.Error("stats: %v", err)
		return 1
	}
	ui.Success("indexed %s", g.DefaultProject())
	ui.Plain("  files:     %d", stats.FileCount)
	ui.Plain("  symbols:   %d", stats.SymbolCount)
	ui.Plain("  relations: %d", result.TotalRelations)
	if len(result.FailedFiles) > 0 {
		ui.Error("failed files: %d", len(result.FailedFiles))
		for _, f := range result.FailedFiles {
			ui.Dim("  %s", f)
		}
	}
	ui.Dim("  took %s", time.Since(start).Round(time.Millisecond))
	return 0
}

// printResult renders one index result for humans.
func printResult(res *indexer.Result) {
	fmt.Printf("run %s: %d indexed, %d removed, +%d/~%d/-%d symbols (%dms)\n",
		res.RunID[:8], res.IndexedFiles, res.RemovedFiles,
		res.ChangedSymbols.Added, res.ChangedSymbols.Modified, res.ChangedSymbols.Removed,
		res.DurationMS)
}
