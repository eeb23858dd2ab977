// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package semantic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/gildash/pkg/store"
)

func newTestService(t *testing.T) (*Service, *store.Store, string) {
	t.Helper()
	root := t.TempDir()
	st, err := store.Open(filepath.Join(root, ".zipbul", "gildash.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, root, nil), st, root
}

func TestLineColumnToPosition(t *testing.T) {
	svc, _, root := newTestService(t)
	content := "const a = 1;\nconst b = 2;\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte(content), 0o644))

	pos, err := svc.LineColumnToPosition("a.ts", 1, 1)
	require.NoError(t, err)
	require.Zero(t, pos)

	pos, err = svc.LineColumnToPosition("a.ts", 2, 7)
	require.NoError(t, err)
	require.Equal(t, len("const a = 1;\n")+6, pos)

	_, err = svc.LineColumnToPosition("a.ts", 99, 1)
	require.Error(t, err)
	_, err = svc.LineColumnToPosition("a.ts", 0, 1)
	require.Error(t, err)
}

func TestFindNamePosition(t *testing.T) {
	svc, _, root := newTestService(t)
	content := "const value = 1;\nfunction useValue() { return value; }\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte(content), 0o644))

	pos, err := svc.FindNamePosition("a.ts", "useValue")
	require.NoError(t, err)
	require.Equal(t, 2, pos.Line)

	// Whole-word matching: "use" inside "useValue" does not count.
	_, err = svc.FindNamePosition("a.ts", "use")
	require.Error(t, err)
}

func TestOverlayWinsOverDisk(t *testing.T) {
	svc, _, root := newTestService(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("old\n"), 0o644))

	svc.NotifyFileChanged("a.ts", []byte("brandNewName\n"))
	pos, err := svc.FindNamePosition("a.ts", "brandNewName")
	require.NoError(t, err)
	require.Equal(t, 1, pos.Line)

	svc.NotifyFileDeleted("a.ts")
	_, err = svc.FindNamePosition("a.ts", "brandNewName")
	require.Error(t, err, "after deletion the stale disk copy is used again")
}

func TestCollectTypeAtAndFileTypes(t *testing.T) {
	svc, st, root := newTestService(t)
	ctx := context.Background()
	content := "export class Big {\n  method(): void {}\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte(content), 0o644))

	require.NoError(t, st.Symbols().ReplaceFileSymbols(ctx, "p", "a.ts", []store.Symbol{
		{Name: "Big", Kind: store.KindClass, IsExported: true,
			Span: store.Span{StartLine: 1, StartCol: 8, EndLine: 3, EndCol: 2}},
		{Name: "method", Kind: store.KindMethod,
			Span: store.Span{StartLine: 2, StartCol: 3, EndLine: 2, EndCol: 20}},
	}))

	// Offset on line 2 lands inside both spans; the tighter one wins.
	offset, err := svc.LineColumnToPosition("a.ts", 2, 5)
	require.NoError(t, err)
	info, err := svc.CollectTypeAt(ctx, "p", "a.ts", offset)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, "method", info.Name)

	types, err := svc.CollectFileTypes(ctx, "p", "a.ts")
	require.NoError(t, err)
	require.Len(t, types, 1)
	require.Equal(t, "Big", types[0].Name)
}

func TestFindReferencesFromRelations(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, st.Relations().ReplaceFileRelations(ctx, "p", "src/user.ts", []store.Relation{
		{Type: store.RelCalls, SrcSymbolName: "handler", DstFilePath: "src/svc.ts",
			DstSymbolName: "getUser", Meta: map[string]any{"line": 12}},
		{Type: store.RelTypeRef, DstFilePath: "src/svc.ts", DstSymbolName: "getUser"},
	}))

	refs, err := svc.FindReferences(ctx, "p", "getUser")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, "src/user.ts", refs[0].FilePath)
	require.Equal(t, 12, refs[0].Line)
}

func TestDisposeDropsOverlay(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.NotifyFileChanged("a.ts", []byte("x"))
	require.NoError(t, svc.Dispose())

	svc.NotifyFileChanged("a.ts", []byte("y"))
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	require.Empty(t, svc.overlay, "notifications after dispose are ignored")
}
