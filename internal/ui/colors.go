// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui holds small terminal output helpers for the CLI: color
// initialization and tagged line printers (Error writes to stderr, the
// others to stdout).
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// InitColors decides whether color output is active: disabled by flag,
// by NO_COLOR, or when stdout is not a terminal.
func InitColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
		return
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// IsTerminal reports whether stderr is an interactive terminal, used to
// decide whether progress output is worth rendering.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
)

// Success prints a green confirmation line to stdout.
func Success(format string, args ...any) {
	successColor.Printf("✓ "+format+"\n", args...)
}

// Error prints a red error line to stderr.
func Error(format string, args ...any) {
	errorColor.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

// Header prints a bold section header.
func Header(format string, args ...any) {
	headerColor.Printf(format+"\n", args...)
}

// Dim prints a faint detail line.
func Dim(format string, args ...any) {
	dimColor.Printf(format+"\n", args...)
}

// Plain prints an unstyled line to stdout.
func Plain(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}
