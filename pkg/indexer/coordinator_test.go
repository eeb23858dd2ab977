// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/gildash/pkg/parser"
	"github.com/kraklabs/gildash/pkg/store"
	"github.com/kraklabs/gildash/pkg/watch"
)

type testEnv struct {
	root  string
	st    *store.Store
	cache *parser.Cache
	coord *Coordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	st, err := store.Open(filepath.Join(root, ".zipbul", "gildash.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cache := parser.NewCache(16)
	coord := New(Config{
		Store:      st,
		Parser:     parser.New(nil),
		Cache:      cache,
		Root:       root,
		Project:    "demo",
		Extensions: []string{".ts", ".mts", ".cts"},
		Debounce:   10 * time.Millisecond,
	})
	t.Cleanup(func() { _ = coord.Close() })
	return &testEnv{root: root, st: st, cache: cache, coord: coord}
}

func (e *testEnv) write(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(e.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestFullIndexSingleFile(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/a.ts", "export const x = 1;\n")
	ctx := context.Background()

	res, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.IndexedFiles)
	require.Equal(t, []string{"src/a.ts"}, res.ChangedFiles)
	require.NotEmpty(t, res.RunID)
	require.Positive(t, res.ChangedSymbols.Added)

	rec, err := env.st.Files().Get(ctx, "demo", "src/a.ts")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 1, rec.LineCount)

	symbols, err := env.st.Symbols().Search(ctx, store.SymbolQuery{
		Project: "demo", Text: "x", Exact: true, FilePath: "src/a.ts",
	})
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	require.True(t, symbols[0].IsExported)

	// The parse cache holds the committed parse.
	require.NotNil(t, env.cache.Get(filepath.Join(env.root, "src", "a.ts")))
}

func TestFullIndexSkipsUnchanged(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/a.ts", "export const x = 1;\n")
	ctx := context.Background()

	_, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)

	res, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)
	require.Zero(t, res.IndexedFiles, "mtime+size match means no reindex")
	require.Empty(t, res.ChangedFiles)
}

func TestFullIndexReclassifiesTouchedButIdentical(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/a.ts", "export const x = 1;\n")
	ctx := context.Background()

	_, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)
	before, err := env.st.Files().Get(ctx, "demo", "src/a.ts")
	require.NoError(t, err)

	// Bump mtime without changing content.
	abs := filepath.Join(env.root, "src", "a.ts")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(abs, future, future))

	res, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)
	require.Zero(t, res.IndexedFiles, "identical content is reclassified unchanged")

	after, err := env.st.Files().Get(ctx, "demo", "src/a.ts")
	require.NoError(t, err)
	require.Equal(t, before.ContentHash, after.ContentHash)
	require.NotEqual(t, before.MtimeMS, after.MtimeMS, "stat columns are refreshed")
}

func TestFullIndexRemovesDeleted(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/a.ts", "export const x = 1;\n")
	env.write(t, "src/b.ts", "export const y = 2;\n")
	ctx := context.Background()

	_, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(env.root, "src", "b.ts")))
	res, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.RemovedFiles)
	require.Equal(t, []string{"src/b.ts"}, res.DeletedFiles)

	rec, err := env.st.Files().Get(ctx, "demo", "src/b.ts")
	require.NoError(t, err)
	require.Nil(t, rec)
	symbols, err := env.st.Symbols().GetFileSymbols(ctx, "demo", "src/b.ts")
	require.NoError(t, err)
	require.Empty(t, symbols)
}

func TestFullIndexToleratesBrokenSyntax(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/good.ts", "export const ok = true;\n")
	env.write(t, "src/broken.ts", "export const = = {{{\n")
	ctx := context.Background()

	// Tree-sitter recovers from syntax errors, so the broken file still
	// indexes with whatever the grammar salvaged; the run never aborts.
	res, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.IndexedFiles)
}

func TestDiscoverySkipsNodeModulesAndDeclarations(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/a.ts", "export const x = 1;\n")
	env.write(t, "node_modules/dep/index.ts", "export const dep = 1;\n")
	env.write(t, "src/types.d.ts", "export declare const t: number;\n")
	ctx := context.Background()

	res, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"src/a.ts"}, res.ChangedFiles)
}

func TestIncrementalChangeUpdatesSymbols(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/a.ts", "export const x = 1;\n")
	ctx := context.Background()

	_, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)

	var results []Result
	unsubscribe := env.coord.OnIndexed(func(res Result) {
		results = append(results, res)
	})
	defer unsubscribe()

	env.write(t, "src/a.ts", "export const x = 2;\n")
	res, err := env.coord.IncrementalIndex(ctx, map[string]watch.EventType{
		"src/a.ts": watch.EventChange,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"src/a.ts"}, res.ChangedFiles)

	require.Len(t, results, 1)
	require.Equal(t, []string{"src/a.ts"}, results[0].ChangedFiles)
}

func TestIncrementalDeleteOfUntrackedIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.coord.IncrementalIndex(ctx, map[string]watch.EventType{
		"src/ghost.ts": watch.EventDelete,
	})
	require.NoError(t, err)
	require.Zero(t, res.RemovedFiles)
}

func TestDebouncedEvents(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/a.ts", "export const x = 1;\n")
	ctx := context.Background()
	_, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)

	done := make(chan Result, 1)
	unsubscribe := env.coord.OnIndexed(func(res Result) {
		select {
		case done <- res:
		default:
		}
	})
	defer unsubscribe()

	env.write(t, "src/a.ts", "export const x = 2;\n")
	// A burst of events for one file collapses into one run.
	env.coord.HandleEvents([]watch.Event{{Type: watch.EventChange, FilePath: "src/a.ts"}})
	env.coord.HandleEvents([]watch.Event{{Type: watch.EventChange, FilePath: "src/a.ts"}})

	select {
	case res := <-done:
		require.Equal(t, []string{"src/a.ts"}, res.ChangedFiles)
	case <-time.After(5 * time.Second):
		t.Fatal("debounced run never fired")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/a.ts", "export const x = 1;\n")

	calls := 0
	unsubscribe := env.coord.OnIndexed(func(Result) { calls++ })
	unsubscribe()
	unsubscribe()

	_, err := env.coord.FullIndex(context.Background())
	require.NoError(t, err)
	require.Zero(t, calls)
}

func TestUnsubscribeDuringDispatchKeepsInFlightRun(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/a.ts", "export const x = 1;\n")

	first := 0
	second := 0
	var unsubscribeSecond func()
	env.coord.OnIndexed(func(Result) {
		first++
		unsubscribeSecond()
	})
	unsubscribeSecond = env.coord.OnIndexed(func(Result) { second++ })

	_, err := env.coord.FullIndex(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first)
	require.Equal(t, 1, second, "the in-flight dispatch still reaches an unsubscribed callback")

	_, err = env.coord.FullIndex(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, first)
	require.Equal(t, 1, second, "later runs do not")
}

func TestRelationsAcrossFiles(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/a.ts", "import { b } from \"./b\";\nexport const a = b;\n")
	env.write(t, "src/b.ts", "import { c } from \"./c\";\nexport const b = c;\n")
	env.write(t, "src/c.ts", "export const c = 1;\n")
	ctx := context.Background()

	_, err := env.coord.FullIndex(ctx)
	require.NoError(t, err)

	out, err := env.st.Relations().GetOutgoing(ctx, "demo", "src/a.ts")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.Equal(t, store.RelImports, out[0].Type)
	require.Equal(t, "src/b.ts", out[0].DstFilePath, "relative import resolves to the project path")
}

func TestCoordinatorCloseIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.coord.Close())
	require.NoError(t, env.coord.Close())

	_, err := env.coord.FullIndex(context.Background())
	require.Error(t, err, "a closed coordinator refuses runs")
}
