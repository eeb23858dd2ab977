// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/gildash/pkg/store"
)

func TestHeritageTree(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Relations().ReplaceFileRelations(ctx, "p", "src/child.ts", []store.Relation{
		{Type: store.RelExtends, SrcSymbolName: "Child", DstFilePath: "src/base.ts", DstSymbolName: "Base"},
		{Type: store.RelImplements, SrcSymbolName: "Child", DstFilePath: "src/iface.ts", DstSymbolName: "Closer"},
		// Unrelated relation types are skipped.
		{Type: store.RelCalls, SrcSymbolName: "Child", DstFilePath: "src/util.ts", DstSymbolName: "helper"},
	}))
	require.NoError(t, st.Relations().ReplaceFileRelations(ctx, "p", "src/base.ts", []store.Relation{
		{Type: store.RelExtends, SrcSymbolName: "Base", DstFilePath: "src/root.ts", DstSymbolName: "Root"},
	}))

	w := NewHeritageWalker(st.Relations(), nil)
	tree, err := w.Walk(ctx, "Child", "src/child.ts", "p")
	require.NoError(t, err)

	require.Equal(t, "Child", tree.SymbolName)
	require.Empty(t, tree.Kind)
	require.Len(t, tree.Children, 2)

	base := tree.Children[0]
	require.Equal(t, "Base", base.SymbolName)
	require.Equal(t, "extends", base.Kind)
	require.Len(t, base.Children, 1)
	require.Equal(t, "Root", base.Children[0].SymbolName)

	closer := tree.Children[1]
	require.Equal(t, "implements", closer.Kind)
	require.Empty(t, closer.Children)
}

func TestHeritageSelfCycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// A extends A.
	require.NoError(t, st.Relations().ReplaceFileRelations(ctx, "p", "src/a.ts", []store.Relation{
		{Type: store.RelExtends, SrcSymbolName: "A", DstFilePath: "src/a.ts", DstSymbolName: "A"},
	}))

	w := NewHeritageWalker(st.Relations(), nil)
	tree, err := w.Walk(ctx, "A", "src/a.ts", "p")
	require.NoError(t, err)

	require.Len(t, tree.Children, 1)
	self := tree.Children[0]
	require.Equal(t, "A", self.SymbolName)
	require.Empty(t, self.Children, "a revisit terminates as a leaf")
}

func TestHeritageSkipsNullDestination(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Relations().ReplaceFileRelations(ctx, "p", "src/a.ts", []store.Relation{
		{Type: store.RelExtends, SrcSymbolName: "A", DstFilePath: "src/b.ts", DstSymbolName: ""},
	}))

	w := NewHeritageWalker(st.Relations(), nil)
	tree, err := w.Walk(ctx, "A", "src/a.ts", "p")
	require.NoError(t, err)
	require.Empty(t, tree.Children)
}
