// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package gildash

import (
	"log/slog"
	"time"
)

// Timing constants for the role protocol.
const (
	// HeartbeatInterval is how often an owner touches its row.
	HeartbeatInterval = 30 * time.Second
	// HealthcheckInterval is how often a reader re-runs acquisition.
	HealthcheckInterval = 60 * time.Second
	// StaleOwnerAfter is the liveness window: an owner row older than
	// this is considered dead and may be replaced.
	StaleOwnerAfter = 3 * HeartbeatInterval
	// MaxHealthcheckRetries closes the instance after this many
	// consecutive healthcheck failures.
	MaxHealthcheckRetries = 10
)

// MetaDirName is the per-project metadata directory under the root.
const MetaDirName = ".zipbul"

// StoreFileName is the main database file inside the metadata
// directory; SQLite adds the -wal and -shm sidecars next to it.
const StoreFileName = "gildash.db"

// DefaultExtensions are the source extensions indexed when the caller
// does not configure any.
var DefaultExtensions = []string{".ts", ".mts", ".cts"}

// Options configures Open. The zero value is a watching, non-semantic
// instance with default extensions.
type Options struct {
	// Extensions lists accepted source extensions (with leading dot).
	Extensions []string

	// IgnorePatterns are extra glob patterns excluded from discovery
	// and watching, unioned with the built-in floor.
	IgnorePatterns []string

	// NoWatch disables watch mode: no role is acquired, no watcher or
	// heartbeat runs and no signal handlers are registered. The
	// instance performs one full index and then serves as a snapshot.
	NoWatch bool

	// Semantic constructs the semantic bridge before the first full
	// index.
	Semantic bool

	// CleanupOnClose deletes the store files after Close.
	CleanupOnClose bool

	// Debounce overrides the incremental-run debounce window.
	Debounce time.Duration

	// Logger receives structured runtime logs; defaults to
	// slog.Default().
	Logger *slog.Logger

	// BridgeFactory overrides semantic bridge construction; used to
	// inject fakes in tests.
	BridgeFactory BridgeFactory
}

func (o *Options) withDefaults() Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if len(out.Extensions) == 0 {
		out.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}
