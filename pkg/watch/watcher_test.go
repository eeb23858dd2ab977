// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collectEvents(t *testing.T, root string) (*Watcher, chan Event) {
	t.Helper()
	w, err := New(Config{Root: root, Extensions: []string{".ts"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	events := make(chan Event, 64)
	w.Start(func(err error, evs []Event) {
		for _, ev := range evs {
			events <- ev
		}
	})
	return w, events
}

func waitFor(t *testing.T, events chan Event, want Event) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev == want {
				return
			}
		case <-deadline:
			t.Fatalf("event %+v never arrived", want)
		}
	}
}

func TestWatcherDeliversNormalizedEvents(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	_, events := collectEvents(t, root)

	path := filepath.Join(root, "src", "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const x = 1;\n"), 0o644))
	waitFor(t, events, Event{Type: EventCreate, FilePath: "src/a.ts"})

	require.NoError(t, os.WriteFile(path, []byte("export const x = 2;\n"), 0o644))
	waitFor(t, events, Event{Type: EventChange, FilePath: "src/a.ts"})

	require.NoError(t, os.Remove(path))
	waitFor(t, events, Event{Type: EventDelete, FilePath: "src/a.ts"})
}

func TestWatcherFiltersRejectedPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	_, events := collectEvents(t, root)

	// A filtered extension and a declaration file never surface.
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "notes.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "api.d.ts"), []byte("x"), 0o644))
	// The accepted file arrives, proving the others were dropped rather
	// than still queued.
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "ok.ts"), []byte("x"), 0o644))

	waitFor(t, events, Event{Type: EventCreate, FilePath: "src/ok.ts"})
	// Drain: nothing for the rejected paths may have surfaced.
	for {
		select {
		case ev := <-events:
			if ev.FilePath != "src/ok.ts" {
				t.Fatalf("unexpected event %+v", ev)
			}
		default:
			return
		}
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	_, events := collectEvents(t, root)

	dir := filepath.Join(root, "lib")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// Give the watcher a beat to register the new directory.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ts"), []byte("x"), 0o644))
	waitFor(t, events, Event{Type: EventCreate, FilePath: "lib/b.ts"})
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	w, err := New(Config{Root: t.TempDir(), Extensions: []string{".ts"}})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
