// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kraklabs/gildash/pkg/store"
)

// CrossProjectKey is the cache key for a graph spanning every project in
// the store.
const CrossProjectKey = "__cross__"

// Engine builds dependency graphs lazily from the relation store and
// caches one build at a time. Edges come from imports and re-exports;
// type-ref edges are merged in only when the engine is configured for
// them.
type Engine struct {
	store           *store.Store
	logger          *slog.Logger
	includeTypeRefs bool

	mu        sync.Mutex
	cachedKey string
	cached    *Graph
}

// NewEngine creates an engine over the given store.
func NewEngine(st *store.Store, includeTypeRefs bool, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, logger: logger, includeTypeRefs: includeTypeRefs}
}

// Invalidate drops the cached graph. Called after every index run and on
// explicit reindex.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cachedKey != "" {
		e.logger.Debug("graph.invalidate", "key", e.cachedKey)
	}
	e.cachedKey = ""
	e.cached = nil
}

// CachedKey returns the key of the cached build, or "" when no graph is
// cached.
func (e *Engine) CachedKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cachedKey
}

// Get returns the graph for project, building it on first use. An empty
// project selects the cross-project graph.
func (e *Engine) Get(ctx context.Context, project string) (*Graph, error) {
	key := project
	if key == "" {
		key = CrossProjectKey
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cached != nil && e.cachedKey == key {
		return e.cached, nil
	}

	g, err := e.build(ctx, project)
	if err != nil {
		return nil, err
	}
	e.cached = g
	e.cachedKey = key
	e.logger.Debug("graph.build", "key", key)
	return g, nil
}

func (e *Engine) build(ctx context.Context, project string) (*Graph, error) {
	projects := []string{project}
	if project == "" {
		var err error
		projects, err = e.store.Files().Projects(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover projects: %w", err)
		}
	}

	types := []store.RelationType{store.RelImports, store.RelReExports}
	if e.includeTypeRefs {
		types = append(types, store.RelTypeRef)
	}

	var edges [][2]string
	var nodes []string
	for _, p := range projects {
		for _, t := range types {
			rels, err := e.store.Relations().GetByType(ctx, p, t)
			if err != nil {
				return nil, fmt.Errorf("load %s relations: %w", t, err)
			}
			for _, rel := range rels {
				edges = append(edges, [2]string{rel.SrcFilePath, rel.DstFilePath})
			}
		}
		// Isolated files still appear as graph nodes.
		files, err := e.store.Files().GetAll(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("load files: %w", err)
		}
		for _, f := range files {
			nodes = append(nodes, f.FilePath)
		}
	}
	return build(edges, nodes), nil
}
