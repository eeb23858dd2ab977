// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/gildash/internal/ui"
	"github.com/kraklabs/gildash/pkg/gildash"
	"github.com/kraklabs/gildash/pkg/store"
)

// statusReport is the machine-readable status payload.
type statusReport struct {
	Project    string `json:"project"`
	Root       string `json:"root"`
	StorePath  string `json:"store_path"`
	StoreBytes int64  `json:"store_bytes"`
	FileCount  int    `json:"file_count"`
	Symbols    int    `json:"symbol_count"`
	Relations  int    `json:"relation_count"`
	OwnerPID   int    `json:"owner_pid,omitempty"`
}

// runStatus reports the index state without acquiring a role.
func runStatus(args []string, configPath string, globals GlobalFlags) int {
	flags := flag.NewFlagSet("status", flag.ExitOnError)
	_ = flags.Parse(args)

	root, err := projectRoot()
	if err != nil {
		ui.Error("%v", err)
		return 1
	}
	storePath := filepath.Join(root, gildash.MetaDirName, gildash.StoreFileName)
	if _, err := os.Stat(storePath); err != nil {
		ui.Error("no index found at %s (run `gildash index` first)", storePath)
		return 1
	}

	st, err := store.Open(storePath, newLogger(globals))
	if err != nil {
		ui.Error("open store: %v", err)
		return 1
	}
	defer st.Close()

	ctx := context.Background()
	projects, err := st.Files().Projects(ctx)
	if err != nil {
		ui.Error("list projects: %v", err)
		return 1
	}
	project := filepath.Base(root)
	if len(projects) > 0 {
		project = projects[0]
	}

	stats, err := st.Symbols().GetStats(ctx, project)
	if err != nil {
		ui.Error("load stats: %v", err)
		return 1
	}
	relCount, err := st.Relations().Count(ctx, project)
	if err != nil {
		ui.Error("count relations: %v", err)
		return 1
	}

	report := statusReport{
		Project:   project,
		Root:      root,
		StorePath: storePath,
		FileCount: stats.FileCount,
		Symbols:   stats.SymbolCount,
		Relations: relCount,
	}
	if info, err := os.Stat(storePath); err == nil {
		report.StoreBytes = info.Size()
	}
	if owner, err := st.Owner().Select(ctx); err == nil && owner != nil {
		report.OwnerPID = owner.PID
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return 0
	}

	ui.Header("Project %s", report.Project)
	ui.Plain("  root:      %s", report.Root)
	ui.Plain("  files:     %d", report.FileCount)
	ui.Plain("  symbols:   %d", report.Symbols)
	ui.Plain("  relations: %d", report.Relations)
	ui.Plain("  store:     %s (%d bytes)", report.StorePath, report.StoreBytes)
	if report.OwnerPID != 0 {
		ui.Plain("  owner pid: %d", report.OwnerPID)
	} else {
		ui.Dim("  no live owner")
	}
	return 0
}
