// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package gildash

import (
	"context"

	"github.com/kraklabs/gildash/pkg/gilderr"
	"github.com/kraklabs/gildash/pkg/graph"
	"github.com/kraklabs/gildash/pkg/indexer"
	"github.com/kraklabs/gildash/pkg/parser"
	"github.com/kraklabs/gildash/pkg/resolve"
	"github.com/kraklabs/gildash/pkg/semantic"
	"github.com/kraklabs/gildash/pkg/store"
)

// guard is the closed gate every query operation passes first.
func (g *Gildash) guard() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return gilderr.New(gilderr.KindClosed, "instance is closed")
	}
	return nil
}

// guardSemantic is the semantic gate; the closed gate always precedes
// it.
func (g *Gildash) guardSemantic() error {
	if err := g.guard(); err != nil {
		return err
	}
	if g.bridge == nil {
		return gilderr.New(gilderr.KindSemantic, "semantic analysis is not enabled")
	}
	return nil
}

func (g *Gildash) projectOrDefault(project string) string {
	if project == "" {
		return g.defaultProject
	}
	return project
}

// Projects returns a copy of the known project boundaries. Successive
// calls return distinct slices; mutating one never affects the runtime.
func (g *Gildash) Projects(ctx context.Context) ([]string, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	projects, err := g.st.Files().Projects(ctx)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindStore, "list projects", err)
	}
	out := make([]string, 0, len(projects)+1)
	seen := false
	for _, p := range projects {
		if p == g.defaultProject {
			seen = true
		}
		out = append(out, p)
	}
	if !seen {
		out = append(out, g.defaultProject)
	}
	return out, nil
}

// ---- store-backed queries ----

// SearchSymbols runs a filtered symbol search.
func (g *Gildash) SearchSymbols(ctx context.Context, q store.SymbolQuery) ([]store.Symbol, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	q.Project = g.projectOrDefault(q.Project)
	out, err := g.st.Symbols().Search(ctx, q)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindStore, "search symbols", err)
	}
	return out, nil
}

// SearchRelations runs a filtered relation search.
func (g *Gildash) SearchRelations(ctx context.Context, q store.RelationQuery) ([]store.Relation, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	q.Project = g.projectOrDefault(q.Project)
	out, err := g.st.Relations().Search(ctx, q)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindStore, "search relations", err)
	}
	return out, nil
}

// GetFile returns one tracked file record, or nil when untracked.
func (g *Gildash) GetFile(ctx context.Context, project, filePath string) (*store.FileRecord, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	rec, err := g.st.Files().Get(ctx, g.projectOrDefault(project), filePath)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindStore, "get file", err)
	}
	return rec, nil
}

// GetAllFiles returns every tracked file record of a project.
func (g *Gildash) GetAllFiles(ctx context.Context, project string) ([]store.FileRecord, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	out, err := g.st.Files().GetAll(ctx, g.projectOrDefault(project))
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindStore, "list files", err)
	}
	return out, nil
}

// Stats returns file and symbol counts for a project.
func (g *Gildash) Stats(ctx context.Context, project string) (*store.Stats, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	st, err := g.st.Symbols().GetStats(ctx, g.projectOrDefault(project))
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindStore, "load stats", err)
	}
	return st, nil
}

// ---- graph queries ----

func (g *Gildash) graphFor(ctx context.Context, project string) (*graph.Graph, error) {
	// Passing the cross-project key spans every project in the store.
	if project == graph.CrossProjectKey {
		project = ""
	} else {
		project = g.projectOrDefault(project)
	}
	gr, err := g.engine.Get(ctx, project)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindSearch, "build dependency graph", err)
	}
	return gr, nil
}

// Dependencies returns the direct dependencies of a file.
func (g *Gildash) Dependencies(ctx context.Context, project, filePath string) ([]string, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	gr, err := g.graphFor(ctx, project)
	if err != nil {
		return nil, err
	}
	return gr.Dependencies(filePath), nil
}

// Dependents returns the direct dependents of a file.
func (g *Gildash) Dependents(ctx context.Context, project, filePath string) ([]string, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	gr, err := g.graphFor(ctx, project)
	if err != nil {
		return nil, err
	}
	return gr.Dependents(filePath), nil
}

// TransitiveDependencies returns every file reachable from filePath,
// excluding filePath itself.
func (g *Gildash) TransitiveDependencies(ctx context.Context, project, filePath string) ([]string, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	gr, err := g.graphFor(ctx, project)
	if err != nil {
		return nil, err
	}
	return gr.TransitiveDependencies(filePath), nil
}

// Affected returns the transitive dependents of the changed set,
// inclusive of the changed files.
func (g *Gildash) Affected(ctx context.Context, project string, changed []string) ([]string, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	gr, err := g.graphFor(ctx, project)
	if err != nil {
		return nil, err
	}
	return gr.Affected(changed), nil
}

// HasCycle reports whether the project's dependency graph has a cycle.
func (g *Gildash) HasCycle(ctx context.Context, project string) (bool, error) {
	if err := g.guard(); err != nil {
		return false, err
	}
	gr, err := g.graphFor(ctx, project)
	if err != nil {
		return false, err
	}
	return gr.HasCycle(), nil
}

// CyclePaths enumerates simple cycles, stopping after maxCycles when it
// is positive.
func (g *Gildash) CyclePaths(ctx context.Context, project string, maxCycles int) ([][]string, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	gr, err := g.graphFor(ctx, project)
	if err != nil {
		return nil, err
	}
	return gr.CyclePaths(maxCycles), nil
}

// Adjacency returns a copy of the outgoing adjacency map.
func (g *Gildash) Adjacency(ctx context.Context, project string) (map[string][]string, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	gr, err := g.graphFor(ctx, project)
	if err != nil {
		return nil, err
	}
	return gr.Adjacency(), nil
}

// FanMetrics returns a file's fan-in and fan-out.
func (g *Gildash) FanMetrics(ctx context.Context, project, filePath string) (*graph.FanMetrics, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	gr, err := g.graphFor(ctx, project)
	if err != nil {
		return nil, err
	}
	fan := gr.Fan(filePath)
	return &fan, nil
}

// ---- resolution queries ----

// ResolveSymbol follows symbolName from startingFile through re-export
// chains to its original declaration.
func (g *Gildash) ResolveSymbol(ctx context.Context, symbolName, startingFile, project string) (*resolve.Resolution, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	res, err := g.resolver.Resolve(ctx, symbolName, startingFile, g.projectOrDefault(project))
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindSearch, "resolve symbol", err)
	}
	return res, nil
}

// HeritageTree builds the extends/implements tree of a symbol.
func (g *Gildash) HeritageTree(ctx context.Context, symbolName, filePath, project string) (*resolve.HeritageNode, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	node, err := g.heritage.Walk(ctx, symbolName, filePath, g.projectOrDefault(project))
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindSearch, "walk heritage", err)
	}
	return node, nil
}

// ---- stateless derivation helpers ----

// ParseSource parses source text without touching the store.
func (g *Gildash) ParseSource(ctx context.Context, filePath string, src []byte) (*parser.ParsedFile, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	pf, err := g.parser.Parse(ctx, filePath, src)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindParse, "parse source", err)
	}
	return pf, nil
}

// ExtractSymbols parses and extracts symbols from source text.
func (g *Gildash) ExtractSymbols(ctx context.Context, filePath string, src []byte, project string) ([]store.Symbol, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	pf, err := g.parser.Parse(ctx, filePath, src)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindParse, "parse source", err)
	}
	return parser.ExtractSymbols(pf, g.projectOrDefault(project)), nil
}

// ExtractRelations parses and extracts relations from source text.
func (g *Gildash) ExtractRelations(ctx context.Context, filePath string, src []byte, project string) ([]store.Relation, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	pf, err := g.parser.Parse(ctx, filePath, src)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindParse, "parse source", err)
	}
	res := parser.NewModuleResolver(g.root, g.opts.Extensions)
	return parser.ExtractRelations(pf, g.projectOrDefault(project), res), nil
}

// DiffSymbols diffs two symbol lists keyed by (name, file path).
func (g *Gildash) DiffSymbols(before, after []store.Symbol) (*store.SymbolDiff, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return store.DiffSymbols(before, after), nil
}

// PatternSearch runs a Tree-sitter pattern query against one file's
// current content.
func (g *Gildash) PatternSearch(ctx context.Context, filePath string, pattern string, src []byte) ([]parser.PatternMatch, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	pf, err := g.parser.Parse(ctx, filePath, src)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindParse, "parse source", err)
	}
	matches, err := parser.PatternSearch(pf, pattern)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindSearch, "pattern search", err)
	}
	return matches, nil
}

// ---- index control ----

// Reindex runs a full index. Only the write-path holder may reindex;
// readers fail until they are promoted.
func (g *Gildash) Reindex(ctx context.Context) (*indexer.Result, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	coord := g.coord
	g.mu.Unlock()
	if coord == nil {
		return nil, gilderr.New(gilderr.KindClosed, "not available for readers")
	}
	g.engine.Invalidate()
	res, err := coord.FullIndex(ctx)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindIndex, "full index", err)
	}
	return res, nil
}

// ---- semantic queries ----

// FindReferences returns the usage sites of a symbol name.
func (g *Gildash) FindReferences(ctx context.Context, project, name string) ([]semantic.Reference, error) {
	if err := g.guardSemantic(); err != nil {
		return nil, err
	}
	out, err := g.bridge.FindReferences(ctx, g.projectOrDefault(project), name)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindSemantic, "find references", err)
	}
	return out, nil
}

// FindImplementations returns the implementors of an interface name.
func (g *Gildash) FindImplementations(ctx context.Context, project, name string) ([]semantic.Reference, error) {
	if err := g.guardSemantic(); err != nil {
		return nil, err
	}
	out, err := g.bridge.FindImplementations(ctx, g.projectOrDefault(project), name)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindSemantic, "find implementations", err)
	}
	return out, nil
}

// CollectTypeAt returns the declaration covering a byte offset.
func (g *Gildash) CollectTypeAt(ctx context.Context, project, filePath string, offset int) (*semantic.TypeInfo, error) {
	if err := g.guardSemantic(); err != nil {
		return nil, err
	}
	out, err := g.bridge.CollectTypeAt(ctx, g.projectOrDefault(project), filePath, offset)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindSemantic, "collect type", err)
	}
	return out, nil
}

// CollectFileTypes returns the type-level declarations of a file.
func (g *Gildash) CollectFileTypes(ctx context.Context, project, filePath string) ([]semantic.TypeInfo, error) {
	if err := g.guardSemantic(); err != nil {
		return nil, err
	}
	out, err := g.bridge.CollectFileTypes(ctx, g.projectOrDefault(project), filePath)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindSemantic, "collect file types", err)
	}
	return out, nil
}

// GetModuleInterface returns the exported surface of a module.
func (g *Gildash) GetModuleInterface(ctx context.Context, project, filePath string) (*semantic.ModuleInterface, error) {
	if err := g.guardSemantic(); err != nil {
		return nil, err
	}
	out, err := g.bridge.GetModuleInterface(ctx, g.projectOrDefault(project), filePath)
	if err != nil {
		return nil, gilderr.Wrap(gilderr.KindSemantic, "module interface", err)
	}
	return out, nil
}
