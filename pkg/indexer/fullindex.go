// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/gildash/pkg/store"
	"github.com/kraklabs/gildash/pkg/watch"
)

// discover walks the project root and returns every accepted source
// file, project-relative, sorted. node_modules is excluded anywhere in
// the path, as are ignored subtrees and declaration files.
func (c *Coordinator) discover() ([]string, error) {
	var files []string
	err := filepath.WalkDir(c.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) && d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, ok := watch.Rel(c.root, p)
		if !ok {
			return nil
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if d.Name() == "node_modules" || c.filter.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !c.hasAcceptedExt(rel) {
			return nil
		}
		if !c.filter.Accept(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk project root: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (c *Coordinator) hasAcceptedExt(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	for _, accepted := range c.extensions {
		if ext == strings.ToLower(accepted) {
			return true
		}
	}
	return false
}

// FullIndex reconciles the whole project with disk. Files are
// categorized against the stored records as unchanged, changed or
// deleted; only changed content is parsed. Per-file failures land in the
// result's failed list and never abort the run.
func (c *Coordinator) FullIndex(ctx context.Context) (*Result, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.isClosed() {
		return nil, fmt.Errorf("coordinator is closed")
	}

	start := time.Now()
	runID := newRunID()
	c.logger.Info("indexer.full.start", "project", c.project, "run_id", runID)
	AppendIndexLog(c.metaDir, "full index started")

	discovered, err := c.discover()
	if err != nil {
		return nil, err
	}
	known, err := c.st.Files().GetMap(ctx, c.project)
	if err != nil {
		return nil, fmt.Errorf("load file records: %w", err)
	}

	units, failed := c.categorize(ctx, discovered, known)

	discoveredSet := make(map[string]bool, len(discovered))
	for _, f := range discovered {
		discoveredSet[f] = true
	}
	var deleted []string
	for path := range known {
		if !discoveredSet[path] {
			deleted = append(deleted, path)
		}
	}
	sort.Strings(deleted)

	res, err := c.run(ctx, runID, start, units, deleted, failed)
	if err != nil {
		return nil, err
	}
	c.logger.Info("indexer.full.done",
		"project", c.project,
		"indexed", res.IndexedFiles,
		"removed", res.RemovedFiles,
		"failed", len(res.FailedFiles),
		"duration_ms", res.DurationMS,
	)
	AppendIndexLog(c.metaDir, fmt.Sprintf("full index completed: %d indexed, %d removed", res.IndexedFiles, res.RemovedFiles))
	return res, nil
}

// categorize splits the discovered set into changed units and failures,
// refreshing records whose content is unchanged despite new stat values.
func (c *Coordinator) categorize(ctx context.Context, discovered []string, known map[string]store.FileRecord) (units []*parsedUnit, failed []string) {
	for _, rel := range discovered {
		abs := c.absPath(rel)
		mtimeMS, size, err := statFile(abs)
		if err != nil {
			c.logger.Warn("indexer.stat_failed", "path", rel, "err", err)
			failed = append(failed, rel)
			continue
		}

		rec, tracked := known[rel]
		if tracked && rec.MtimeMS == mtimeMS && rec.ByteSize == size {
			continue // unchanged, no content read required
		}

		content, err := os.ReadFile(abs)
		if err != nil {
			c.logger.Warn("indexer.read_failed", "path", rel, "err", err)
			failed = append(failed, rel)
			continue
		}
		hash := hashContent(content)

		if tracked && hash == rec.ContentHash {
			// Touched but identical: refresh the stat columns only.
			rec.MtimeMS = mtimeMS
			rec.ByteSize = size
			if err := c.st.Files().Upsert(ctx, rec); err != nil {
				c.logger.Warn("indexer.refresh_failed", "path", rel, "err", err)
			}
			continue
		}

		units = append(units, &parsedUnit{
			relPath:  rel,
			content:  content,
			mtimeMS:  mtimeMS,
			byteSize: size,
			hash:     hash,
		})
	}
	return units, failed
}

// IncrementalIndex applies one debounced batch of watcher events through
// the same per-file pipeline as a full run.
func (c *Coordinator) IncrementalIndex(ctx context.Context, batch map[string]watch.EventType) (*Result, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.isClosed() {
		return nil, fmt.Errorf("coordinator is closed")
	}

	start := time.Now()
	runID := newRunID()

	paths := make([]string, 0, len(batch))
	for p := range batch {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	c.logger.Info("indexer.incremental.start", "project", c.project, "files", len(paths), "run_id", runID)

	var units []*parsedUnit
	var deleted, failed []string
	for _, rel := range paths {
		if batch[rel] == watch.EventDelete {
			deleted = append(deleted, rel)
			continue
		}
		abs := c.absPath(rel)
		mtimeMS, size, err := statFile(abs)
		if err != nil {
			if os.IsNotExist(err) {
				// The file vanished between the event and the run.
				deleted = append(deleted, rel)
				continue
			}
			failed = append(failed, rel)
			continue
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			failed = append(failed, rel)
			continue
		}
		units = append(units, &parsedUnit{
			relPath:  rel,
			content:  content,
			mtimeMS:  mtimeMS,
			byteSize: size,
			hash:     hashContent(content),
		})
	}

	// Drop deletions for files the store never tracked.
	var trackedDeleted []string
	for _, rel := range deleted {
		rec, err := c.st.Files().Get(ctx, c.project, rel)
		if err == nil && rec != nil {
			trackedDeleted = append(trackedDeleted, rel)
		}
	}

	res, err := c.run(ctx, runID, start, units, trackedDeleted, failed)
	if err != nil {
		return nil, err
	}
	c.logger.Info("indexer.incremental.done",
		"project", c.project,
		"indexed", res.IndexedFiles,
		"removed", res.RemovedFiles,
		"duration_ms", res.DurationMS,
	)
	AppendIndexLog(c.metaDir, fmt.Sprintf("reindex completed: %d indexed, %d removed", res.IndexedFiles, res.RemovedFiles))
	return res, nil
}

// run executes the shared tail of a full or incremental pass: parallel
// parse, sequential per-file commits, deletions, then callback dispatch.
// Caller holds runMu.
func (c *Coordinator) run(ctx context.Context, runID string, start time.Time, units []*parsedUnit, deleted, failed []string) (*Result, error) {
	c.parseChanged(ctx, units)

	res := &Result{
		RunID:        runID,
		ChangedFiles: []string{},
		DeletedFiles: []string{},
		FailedFiles:  failed,
	}

	for _, u := range units {
		if c.isClosed() {
			break // close requested: stop dispatching further files
		}
		if u.err != nil {
			c.logger.Warn("indexer.parse_failed", "path", u.relPath, "err", u.err)
			AppendIndexLog(c.metaDir, fmt.Sprintf("parse_failed %s: %v", u.relPath, u.err))
			res.FailedFiles = append(res.FailedFiles, u.relPath)
			continue
		}
		diff, err := c.commitUnit(ctx, u)
		if err != nil {
			c.logger.Warn("indexer.commit_failed", "path", u.relPath, "err", err)
			res.FailedFiles = append(res.FailedFiles, u.relPath)
			continue
		}
		res.IndexedFiles++
		res.ChangedFiles = append(res.ChangedFiles, u.relPath)
		res.ChangedSymbols.Added += len(diff.Added)
		res.ChangedSymbols.Modified += len(diff.Modified)
		res.ChangedSymbols.Removed += len(diff.Removed)
	}

	for _, rel := range deleted {
		if c.isClosed() {
			break
		}
		removed, err := c.removeFile(ctx, rel)
		if err != nil {
			c.logger.Warn("indexer.remove_failed", "path", rel, "err", err)
			res.FailedFiles = append(res.FailedFiles, rel)
			continue
		}
		res.RemovedFiles++
		res.DeletedFiles = append(res.DeletedFiles, rel)
		res.ChangedSymbols.Removed += removed
	}

	if stats, err := c.st.Symbols().GetStats(ctx, c.project); err == nil {
		res.TotalSymbols = stats.SymbolCount
	}
	if n, err := c.st.Relations().Count(ctx, c.project); err == nil {
		res.TotalRelations = n
	}
	res.DurationMS = time.Since(start).Milliseconds()

	c.dispatch(*res)
	return res, nil
}
