// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the gildash CLI for indexing TypeScript and
// JavaScript repositories and querying the structural index.
//
// Usage:
//
//	gildash index                 Index the current repository once
//	gildash status [--json]       Show project status
//	gildash search <text>         Search indexed symbols
//	gildash deps <file>           Dependency graph queries
//	gildash resolve <name> <file> Follow re-export chains
//	gildash watch                 Run as the long-lived index owner
package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/gildash/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the CLI flags that apply to all commands.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

// newLogger builds the slog handler for the selected verbosity. Logs go
// to stderr so JSON output on stdout stays machine-readable.
func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose == 1:
		level = slog.LevelInfo
	case globals.Quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .zipbul/project.yaml (default: ./.zipbul/project.yaml)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	// Stop parsing at the first non-flag argument so subcommand flags
	// reach the subcommand handlers.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `gildash - persistent TypeScript/JavaScript source index

Usage:
  gildash <command> [options]

Commands:
  index         Index the current repository once and exit
  status        Show project status
  search        Search indexed symbols and relations
  deps          Dependency graph queries (deps, dependents, cycles, fan)
  resolve       Follow a symbol through its re-export chain
  watch         Run as the long-lived index owner with file watching

Global Options:
  --json            Output in JSON format (for applicable commands)
  --no-color        Disable color output (respects NO_COLOR env var)
  -v, --verbose     Increase verbosity (-v for info, -vv for debug)
  -q, --quiet       Suppress non-essential output
  -c, --config      Path to .zipbul/project.yaml
  -V, --version     Show version and exit

Examples:
  gildash index                      Index the current repository
  gildash status --json              Project status as JSON
  gildash search UserService         Find symbols named UserService
  gildash deps src/app.ts            Direct dependencies of a file
  gildash deps --cycles              Enumerate import cycles
  gildash resolve Foo src/index.ts   Resolve a re-exported symbol
  gildash watch --metrics-addr :9135 Serve Prometheus metrics while watching

Data Storage:
  The index lives in .zipbul/gildash.db under the project root,
  alongside its -wal and -shm sidecars.

For detailed command help: gildash <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("gildash version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintf(os.Stderr, "Error: cannot use --quiet and --verbose together\n")
		os.Exit(1)
	}
	// JSON mode keeps stdout clean of progress output.
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{
		JSON:    *jsonOutput,
		NoColor: *noColor,
		Verbose: *verbose,
		Quiet:   *quiet,
	}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "index":
		os.Exit(runIndex(cmdArgs, *configPath, globals))
	case "status":
		os.Exit(runStatus(cmdArgs, *configPath, globals))
	case "search":
		os.Exit(runSearch(cmdArgs, *configPath, globals))
	case "deps":
		os.Exit(runDeps(cmdArgs, *configPath, globals))
	case "resolve":
		os.Exit(runResolve(cmdArgs, *configPath, globals))
	case "watch":
		os.Exit(runWatch(cmdArgs, *configPath, globals))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
