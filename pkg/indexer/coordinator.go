// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package indexer reconciles the store with the source tree: full sweeps
// over the project, and incremental runs driven by debounced watcher
// events. Per-file failures never abort a run.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/gildash/pkg/parser"
	"github.com/kraklabs/gildash/pkg/store"
	"github.com/kraklabs/gildash/pkg/watch"
)

// DefaultDebounce is the window over which watcher bursts collapse into
// one incremental run.
const DefaultDebounce = 100 * time.Millisecond

// DefaultParseWorkers bounds the parallel parse stage of a full run.
const DefaultParseWorkers = 4

// Config configures a Coordinator.
type Config struct {
	Store      *store.Store
	Parser     *parser.Parser
	Cache      *parser.Cache
	Root       string // absolute project root
	Project    string
	MetaDir    string // .zipbul directory for the index log; "" disables
	Extensions []string
	Ignore     []string
	Debounce   time.Duration
	Workers    int
	Logger     *slog.Logger
}

// Coordinator owns the write path of the store for one project.
type Coordinator struct {
	st         *store.Store
	parser     *parser.Parser
	cache      *parser.Cache
	root       string
	project    string
	metaDir    string
	extensions []string
	filter     *watch.Filter
	debounce   time.Duration
	workers    int
	logger     *slog.Logger

	resolver *parser.ModuleResolver
	tsMu     sync.Mutex
	tsLoaded bool

	// runMu serializes index runs; Close acquires it to wait for the
	// in-flight run to reach its safe point.
	runMu  sync.Mutex
	closed bool
	cmu    sync.Mutex

	cbMu    sync.Mutex
	nextCB  int
	cbs     map[int]func(Result)
	runHook func(Result)

	pendMu  sync.Mutex
	pending map[string]watch.EventType
	timer   *time.Timer
}

// New creates a coordinator. It performs no I/O until the first run.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultParseWorkers
	}
	return &Coordinator{
		st:         cfg.Store,
		parser:     cfg.Parser,
		cache:      cfg.Cache,
		root:       cfg.Root,
		project:    cfg.Project,
		metaDir:    cfg.MetaDir,
		extensions: cfg.Extensions,
		filter:     watch.NewFilter(cfg.Extensions, cfg.Ignore),
		debounce:   debounce,
		workers:    workers,
		logger:     logger,
		resolver:   parser.NewModuleResolver(cfg.Root, cfg.Extensions),
		cbs:        make(map[int]func(Result)),
		pending:    make(map[string]watch.EventType),
	}
}

// OnIndexed subscribes cb to run completions. The returned unsubscribe
// is idempotent, and unsubscribing during a dispatch does not affect the
// in-flight dispatch. Subscribers registered during a dispatch do not
// observe that same run.
func (c *Coordinator) OnIndexed(cb func(Result)) func() {
	c.cbMu.Lock()
	id := c.nextCB
	c.nextCB++
	c.cbs[id] = cb
	c.cbMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.cbMu.Lock()
			delete(c.cbs, id)
			c.cbMu.Unlock()
		})
	}
}

// SetRunHook installs the internal post-run hook. It fires after the
// store has observed a run's effects and before any user callback, which
// is where the graph cache invalidation belongs.
func (c *Coordinator) SetRunHook(hook func(Result)) {
	c.cbMu.Lock()
	c.runHook = hook
	c.cbMu.Unlock()
}

func (c *Coordinator) dispatch(res Result) {
	c.cbMu.Lock()
	hook := c.runHook
	snapshot := make([]func(Result), 0, len(c.cbs))
	for _, id := range sortedCallbackIDs(c.cbs) {
		snapshot = append(snapshot, c.cbs[id])
	}
	c.cbMu.Unlock()

	if hook != nil {
		hook(res)
	}
	for _, cb := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("indexer.callback_panic", "recovered", r)
				}
			}()
			cb(res)
		}()
	}
}

func sortedCallbackIDs(cbs map[int]func(Result)) []int {
	ids := make([]int, 0, len(cbs))
	for id := range cbs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// HandleEvents folds watcher events into the pending set and re-arms the
// debounce timer. Events for tsconfig/jsconfig at the project root
// invalidate the cached path mappings instead of being indexed.
func (c *Coordinator) HandleEvents(events []watch.Event) {
	if c.isClosed() || len(events) == 0 {
		return
	}

	c.pendMu.Lock()
	defer c.pendMu.Unlock()
	for _, ev := range events {
		if ev.FilePath == "tsconfig.json" || ev.FilePath == "jsconfig.json" {
			c.InvalidateTSConfig()
			continue
		}
		if ev.FilePath == "package.json" {
			continue
		}
		c.pending[ev.FilePath] = ev.Type
	}
	if len(c.pending) == 0 {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.flushPending)
}

func (c *Coordinator) flushPending() {
	c.pendMu.Lock()
	batch := c.pending
	c.pending = make(map[string]watch.EventType)
	c.pendMu.Unlock()
	if len(batch) == 0 || c.isClosed() {
		return
	}
	if _, err := c.IncrementalIndex(context.Background(), batch); err != nil {
		c.logger.Error("indexer.incremental.error", "err", err)
	}
}

// Flush runs any pending debounced batch immediately instead of waiting
// for the debounce timer. Close does not call it: Close drops pending
// events.
func (c *Coordinator) Flush() {
	c.pendMu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pendMu.Unlock()
	c.flushPending()
}

func (c *Coordinator) isClosed() bool {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	return c.closed
}

// Close stops the debounce timer and waits for the in-flight run to
// finish its current file. Idempotent.
func (c *Coordinator) Close() error {
	c.cmu.Lock()
	if c.closed {
		c.cmu.Unlock()
		return nil
	}
	c.closed = true
	c.cmu.Unlock()

	c.pendMu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = make(map[string]watch.EventType)
	c.pendMu.Unlock()

	// Wait for the current run's safe point.
	c.runMu.Lock()
	c.runMu.Unlock() //nolint:staticcheck // barrier, not a critical section
	return nil
}

// InvalidateTSConfig drops the cached tsconfig path mappings; the next
// extraction reloads them.
func (c *Coordinator) InvalidateTSConfig() {
	c.tsMu.Lock()
	c.tsLoaded = false
	c.tsMu.Unlock()
	c.logger.Debug("indexer.tsconfig.invalidate")
}

// ensureTSPaths lazily loads tsconfig paths into the module resolver.
func (c *Coordinator) ensureTSPaths() {
	c.tsMu.Lock()
	defer c.tsMu.Unlock()
	if c.tsLoaded {
		return
	}
	c.tsLoaded = true
	cfg, err := parser.LoadTSConfigPaths(c.root)
	if err != nil {
		c.logger.Warn("indexer.tsconfig.load_error", "err", err)
		return
	}
	if cfg == nil {
		c.resolver.SetPaths("", nil)
		return
	}
	c.resolver.SetPaths(cfg.BaseURL, cfg.Paths)
	c.logger.Debug("indexer.tsconfig.loaded", "patterns", len(cfg.Paths))
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// absPath maps a project-relative path back to the filesystem.
func (c *Coordinator) absPath(rel string) string {
	return filepath.Join(c.root, filepath.FromSlash(rel))
}

// newRunID tags each run for the index log and result payloads.
func newRunID() string {
	return uuid.NewString()
}

// statFile captures the comparable disk state of one file.
func statFile(path string) (mtimeMS, size int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return info.ModTime().UnixMilli(), info.Size(), nil
}

// parsedUnit carries one changed file through the parse stage.
type parsedUnit struct {
	relPath   string
	content   []byte
	mtimeMS   int64
	byteSize  int64
	hash      string
	pf        *parser.ParsedFile
	symbols   []store.Symbol
	relations []store.Relation
	err       error
}

// parseChanged parses and extracts the changed set in parallel, bounded
// by the worker limit. Extraction failures stay attached to their unit.
func (c *Coordinator) parseChanged(ctx context.Context, units []*parsedUnit) {
	c.ensureTSPaths()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, u := range units {
		g.Go(func() error {
			pf, err := c.parser.Parse(gctx, u.relPath, u.content)
			if err != nil {
				u.err = fmt.Errorf("parse %s: %w", u.relPath, err)
				return nil
			}
			u.pf = pf
			u.symbols = parser.ExtractSymbols(pf, c.project)
			u.relations = parser.ExtractRelations(pf, c.project, c.resolver)
			return nil
		})
	}
	_ = g.Wait()
}

// commitUnit replaces one file's rows inside a single immediate
// transaction: symbols, relations and the file record commit together.
func (c *Coordinator) commitUnit(ctx context.Context, u *parsedUnit) (*store.SymbolDiff, error) {
	before, err := c.st.Symbols().GetFileSymbols(ctx, c.project, u.relPath)
	if err != nil {
		return nil, fmt.Errorf("load previous symbols: %w", err)
	}

	err = c.st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.Symbols.ReplaceFileSymbols(ctx, c.project, u.relPath, u.symbols); err != nil {
			return err
		}
		if err := tx.Relations.ReplaceFileRelations(ctx, c.project, u.relPath, u.relations); err != nil {
			return err
		}
		return tx.Files.Upsert(ctx, store.FileRecord{
			Project:     c.project,
			FilePath:    u.relPath,
			MtimeMS:     u.mtimeMS,
			ByteSize:    u.byteSize,
			ContentHash: u.hash,
			LineCount:   parser.CountLines(u.content),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", u.relPath, err)
	}

	if c.cache != nil && u.pf != nil {
		c.cache.Set(c.absPath(u.relPath), u.pf)
	}
	return store.DiffSymbols(before, u.symbols), nil
}

// removeFile deletes one file's rows inside a single transaction.
func (c *Coordinator) removeFile(ctx context.Context, relPath string) (removed int, err error) {
	before, err := c.st.Symbols().GetFileSymbols(ctx, c.project, relPath)
	if err != nil {
		return 0, fmt.Errorf("load previous symbols: %w", err)
	}
	err = c.st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.Symbols.DeleteFileSymbols(ctx, c.project, relPath); err != nil {
			return err
		}
		if err := tx.Relations.DeleteFileRelations(ctx, c.project, relPath); err != nil {
			return err
		}
		return tx.Files.Delete(ctx, c.project, relPath)
	})
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", relPath, err)
	}
	if c.cache != nil {
		c.cache.Invalidate(c.absPath(relPath))
	}
	return len(before), nil
}
