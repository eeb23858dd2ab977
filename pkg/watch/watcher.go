// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch adapts raw filesystem notifications into normalized
// project events: create, change and delete, with project-relative
// forward-slash paths, filtered by extension and ignore globs.
package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventType classifies a normalized event.
type EventType string

const (
	EventCreate EventType = "create"
	EventChange EventType = "change"
	EventDelete EventType = "delete"
)

// Event is one normalized filesystem event.
type Event struct {
	Type     EventType
	FilePath string
}

// Callback receives event batches. A non-nil error reports a delivery
// failure; the watcher stays alive either way.
type Callback func(err error, events []Event)

// Config configures a watcher.
type Config struct {
	Root       string // absolute project root
	Extensions []string
	Ignore     []string
	Logger     *slog.Logger
}

// Watcher watches a project tree recursively and delivers normalized
// events. Consumer panics and subscription errors are logged, never
// propagated: a broken callback must not tear the watcher down.
type Watcher struct {
	root   string
	filter *Filter
	logger *slog.Logger
	fs     *fsnotify.Watcher

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// New creates a watcher rooted at cfg.Root and registers every
// directory under it, skipping ignored subtrees.
func New(cfg Config) (*Watcher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:   cfg.Root,
		filter: NewFilter(cfg.Extensions, cfg.Ignore),
		logger: logger,
		fs:     fsw,
		done:   make(chan struct{}),
	}

	count := 0
	walkErr := filepath.Walk(cfg.Root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, ok := Rel(cfg.Root, p)
		if !ok {
			return filepath.SkipDir
		}
		if rel != "." {
			base := filepath.Base(p)
			if w.filter.SkipDir(rel) || (strings.HasPrefix(base, ".") && base != ".") {
				return filepath.SkipDir
			}
		}
		if err := fsw.Add(p); err != nil {
			logger.Warn("watcher.add_dir", "path", p, "err", err)
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		count++
		return nil
	})
	if walkErr != nil {
		fsw.Close()
		return nil, fmt.Errorf("register watch dirs: %w", walkErr)
	}
	logger.Debug("watcher.start", "root", cfg.Root, "dirs", count)
	return w, nil
}

// Start begins delivering events to cb. One callback invocation carries
// the events observed in one notification; ordering per file follows
// arrival order.
func (w *Watcher) Start(cb Callback) {
	go w.loop(cb)
}

func (w *Watcher) loop(cb Callback) {
	deliver := func(err error, events []Event) {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("watcher.callback_panic", "recovered", r)
			}
		}()
		cb(err, events)
	}

	for {
		select {
		case <-w.done:
			return
		case raw, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev, accept := w.normalize(raw); accept {
				deliver(nil, []Event{ev})
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher.error", "err", err)
			deliver(err, nil)
		}
	}
}

// normalize maps one raw notification to a project event, registering
// newly created directories along the way.
func (w *Watcher) normalize(raw fsnotify.Event) (Event, bool) {
	rel, ok := Rel(w.root, raw.Name)
	if !ok || rel == "." {
		return Event{}, false
	}

	if raw.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(raw.Name); err == nil && info.IsDir() {
			if !w.filter.SkipDir(rel) {
				if err := w.fs.Add(raw.Name); err != nil {
					w.logger.Warn("watcher.add_dir", "path", raw.Name, "err", err)
				}
			}
			return Event{}, false
		}
	}

	if !w.filter.Accept(rel) {
		return Event{}, false
	}

	switch {
	case raw.Op.Has(fsnotify.Create):
		return Event{Type: EventCreate, FilePath: rel}, true
	case raw.Op.Has(fsnotify.Write):
		return Event{Type: EventChange, FilePath: rel}, true
	case raw.Op.Has(fsnotify.Remove), raw.Op.Has(fsnotify.Rename):
		return Event{Type: EventDelete, FilePath: rel}, true
	}
	return Event{}, false
}

// Close stops delivery and releases the notification handle. Safe to
// call twice.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()

	if err := w.fs.Close(); err != nil {
		return fmt.Errorf("close fsnotify watcher: %w", err)
	}
	return nil
}
