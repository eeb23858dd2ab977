// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gildash is the runtime façade over the persistent source
// index: open/close lifecycle, the single-writer role protocol, the
// incremental index pipeline and every structural query.
package gildash

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kraklabs/gildash/pkg/gilderr"
	"github.com/kraklabs/gildash/pkg/graph"
	"github.com/kraklabs/gildash/pkg/indexer"
	"github.com/kraklabs/gildash/pkg/parser"
	"github.com/kraklabs/gildash/pkg/resolve"
	"github.com/kraklabs/gildash/pkg/semantic"
	"github.com/kraklabs/gildash/pkg/store"
	"github.com/kraklabs/gildash/pkg/watch"
)

// Role is the binding a runtime instance holds against the shared store.
type Role string

const (
	// RoleOwner runs the write path: indexing, watching, heartbeat.
	RoleOwner Role = "owner"
	// RoleReader only queries; it healthchecks for promotion.
	RoleReader Role = "reader"
	// RoleSnapshot is a non-watching instance that indexed once at
	// open and holds no role row.
	RoleSnapshot Role = "snapshot"
)

// BridgeFactory constructs a semantic bridge for a store and root.
type BridgeFactory func(st *store.Store, root string, logger *slog.Logger) (semantic.Bridge, error)

// Gildash is one runtime instance bound to a project root.
type Gildash struct {
	root    string
	metaDir string
	opts    Options
	logger  *slog.Logger
	pid     int

	st       *store.Store
	parser   *parser.Parser
	cache    *parser.Cache
	engine   *graph.Engine
	resolver *resolve.Resolver
	heritage *resolve.HeritageWalker
	bridge   semantic.Bridge

	defaultProject string

	mu     sync.Mutex
	closed bool
	role   Role

	coord   *indexer.Coordinator
	watcher *watch.Watcher

	heartbeatStop chan struct{}
	healthStop    chan struct{}
	healthFails   int

	// User callbacks are owned here, independently of the coordinator
	// subscription handles, so promotion can re-register them on the
	// newly built coordinator.
	cbMu       sync.Mutex
	nextCB     int
	userCBs    map[int]func(indexer.Result)
	userUnsubs map[int]func()

	sigCh   chan os.Signal
	sigDone chan struct{}
}

// Open binds a runtime instance to projectRoot and brings the index up:
// in watch mode it acquires a role, owners run a full index and start
// watching; with NoWatch it indexes once and stays a snapshot.
func Open(ctx context.Context, projectRoot string, opts *Options) (*Gildash, error) {
	o := opts.withDefaults()

	if !filepath.IsAbs(projectRoot) {
		return nil, gilderr.Newf(gilderr.KindValidation, "project root must be absolute: %s", projectRoot)
	}
	info, err := os.Stat(projectRoot)
	if err != nil || !info.IsDir() {
		return nil, gilderr.Newf(gilderr.KindValidation, "project root does not exist: %s", projectRoot)
	}

	metaDir := filepath.Join(projectRoot, MetaDirName)
	st, err := store.Open(filepath.Join(metaDir, StoreFileName), o.Logger)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindStore, "open store", err)
	}

	g := &Gildash{
		root:       projectRoot,
		metaDir:    metaDir,
		opts:       o,
		logger:     o.Logger,
		pid:        os.Getpid(),
		st:         st,
		parser:     parser.New(o.Logger),
		cache:      parser.NewCache(parser.DefaultCacheCapacity),
		userCBs:    make(map[int]func(indexer.Result)),
		userUnsubs: make(map[int]func()),
	}
	g.engine = graph.NewEngine(st, false, o.Logger)
	g.resolver = resolve.NewResolver(st.Relations(), o.Logger)
	g.heritage = resolve.NewHeritageWalker(st.Relations(), o.Logger)

	if err := g.finishOpen(ctx); err != nil {
		// Post-open failures must not leak the store handle.
		_ = st.Close()
		return nil, err
	}
	return g, nil
}

func (g *Gildash) finishOpen(ctx context.Context) error {
	project, err := g.discoverDefaultProject(ctx)
	if err != nil {
		return gilderr.Wrap(gilderr.KindStore, "discover projects", err)
	}
	g.defaultProject = project

	if g.opts.Semantic {
		factory := g.opts.BridgeFactory
		if factory == nil {
			factory = func(st *store.Store, root string, logger *slog.Logger) (semantic.Bridge, error) {
				return semantic.NewService(st, root, logger), nil
			}
		}
		bridge, err := factory(g.st, g.root, g.logger)
		if err != nil {
			return gilderr.Wrap(gilderr.KindSemantic, "initialize semantic bridge", err)
		}
		g.bridge = bridge
	}

	if g.opts.NoWatch {
		g.role = RoleSnapshot
		g.coord = g.newCoordinator()
		if _, err := g.coord.FullIndex(ctx); err != nil {
			return gilderr.Wrap(gilderr.KindIndex, "initial full index", err)
		}
		return nil
	}

	role, err := g.acquireRole(ctx)
	if err != nil {
		return gilderr.Wrap(gilderr.KindStore, "acquire role", err)
	}
	g.role = role
	g.logger.Info("gildash.open", "root", g.root, "role", role, "project", g.defaultProject)

	if role == RoleOwner {
		if err := g.buildOwnerInfra(); err != nil {
			return err
		}
		if _, err := g.coord.FullIndex(ctx); err != nil {
			return gilderr.Wrap(gilderr.KindIndex, "initial full index", err)
		}
	} else {
		g.startHealthcheck()
	}

	g.registerSignalHandlers()
	return nil
}

// discoverDefaultProject picks the first project already in the store,
// or the basename of the root for a fresh store.
func (g *Gildash) discoverDefaultProject(ctx context.Context) (string, error) {
	projects, err := g.st.Files().Projects(ctx)
	if err != nil {
		return "", err
	}
	if len(projects) > 0 {
		return projects[0], nil
	}
	return filepath.Base(g.root), nil
}

func (g *Gildash) newCoordinator() *indexer.Coordinator {
	coord := indexer.New(indexer.Config{
		Store:      g.st,
		Parser:     g.parser,
		Cache:      g.cache,
		Root:       g.root,
		Project:    g.defaultProject,
		MetaDir:    g.metaDir,
		Extensions: g.opts.Extensions,
		Ignore:     g.opts.IgnorePatterns,
		Debounce:   g.opts.Debounce,
		Logger:     g.logger,
	})
	// The graph cache must be invalid before any user callback runs.
	coord.SetRunHook(func(indexer.Result) {
		g.engine.Invalidate()
	})
	return coord
}

// DefaultProject returns the project selected at open time.
func (g *Gildash) DefaultProject() string {
	return g.defaultProject
}

// Root returns the absolute project root.
func (g *Gildash) Root() string {
	return g.root
}

// Role returns the current role binding.
func (g *Gildash) Role() Role {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.role
}

// Bridge returns the semantic bridge, or nil when semantic mode is off.
func (g *Gildash) Bridge() semantic.Bridge {
	return g.bridge
}
