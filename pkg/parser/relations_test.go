// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/gildash/pkg/store"
)

func parseRelations(t *testing.T, path, src string) []store.Relation {
	t.Helper()
	p := New(nil)
	parsed, err := p.Parse(context.Background(), path, []byte(src))
	require.NoError(t, err)
	// nil resolver records specifiers verbatim, which keeps these tests
	// filesystem-free.
	return ExtractRelations(parsed, "demo", nil)
}

func relationsOfType(rels []store.Relation, typ store.RelationType) []store.Relation {
	var out []store.Relation
	for _, rel := range rels {
		if rel.Type == typ {
			out = append(out, rel)
		}
	}
	return out
}

func TestExtractImports(t *testing.T) {
	src := `import { helper, other as alias } from "./util";
import Default from "./def";
import * as ns from "./ns";
import "./side-effect";
`
	rels := parseRelations(t, "src/a.ts", src)
	imports := relationsOfType(rels, store.RelImports)
	require.Len(t, imports, 4)

	require.Equal(t, "./util", imports[0].DstFilePath)
	specs, ok := imports[0].Meta["specifiers"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, specs, 2)
	require.Equal(t, "helper", specs[0]["local"])
	require.Equal(t, "alias", specs[1]["local"])
	require.Equal(t, "other", specs[1]["imported"])

	require.Equal(t, "./def", imports[1].DstFilePath)
	require.Equal(t, "./ns", imports[2].DstFilePath)

	// Bare side-effect import still records the edge.
	require.Equal(t, "./side-effect", imports[3].DstFilePath)
	_, hasSpecs := imports[3].Meta["specifiers"]
	require.False(t, hasSpecs)
}

func TestExtractReExports(t *testing.T) {
	src := `export { Impl as Foo, Bar } from "./impl";
export * from "./all";
`
	rels := parseRelations(t, "src/index.ts", src)
	reex := relationsOfType(rels, store.RelReExports)
	require.Len(t, reex, 2)

	specs, ok := reex[0].Meta["specifiers"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, specs, 2)
	require.Equal(t, "Impl", specs[0]["local"])
	require.Equal(t, "Foo", specs[0]["exported"])
	require.Equal(t, "Bar", specs[1]["local"])
	require.Equal(t, "Bar", specs[1]["exported"])

	// export * carries no specifiers at all.
	_, hasSpecs := reex[1].Meta["specifiers"]
	require.False(t, hasSpecs)
}

func TestExtractHeritage(t *testing.T) {
	src := `import { Base } from "./base";

export class Child extends Base implements Closer {
  close(): void {}
}

interface Closer {
  close(): void;
}
`
	rels := parseRelations(t, "src/child.ts", src)

	extends := relationsOfType(rels, store.RelExtends)
	require.Len(t, extends, 1)
	require.Equal(t, "Child", extends[0].SrcSymbolName)
	require.Equal(t, "Base", extends[0].DstSymbolName)
	require.Equal(t, "./base", extends[0].DstFilePath, "imported base resolves to its module")

	impls := relationsOfType(rels, store.RelImplements)
	require.Len(t, impls, 1)
	require.Equal(t, "Closer", impls[0].DstSymbolName)
	require.Equal(t, "src/child.ts", impls[0].DstFilePath, "local interface stays in this file")
}

func TestExtractCalls(t *testing.T) {
	src := `import { remote } from "./remote";
import * as ns from "./ns";

function local() {}

function caller() {
  local();
  remote();
  ns.deep();
  unknown();
}
`
	rels := parseRelations(t, "src/calls.ts", src)
	calls := relationsOfType(rels, store.RelCalls)
	require.Len(t, calls, 3, "unknown() has no destination and is dropped")

	byDst := map[string]store.Relation{}
	for _, c := range calls {
		byDst[c.DstSymbolName] = c
	}

	require.Equal(t, "src/calls.ts", byDst["local"].DstFilePath)
	require.Equal(t, "caller", byDst["local"].SrcSymbolName)
	require.Equal(t, "./remote", byDst["remote"].DstFilePath)
	require.Equal(t, "./ns", byDst["deep"].DstFilePath)
}

func TestExtractTypeRefs(t *testing.T) {
	src := `import { Config } from "./config";

export function load(cfg: Config): Config {
  return cfg;
}
`
	rels := parseRelations(t, "src/load.ts", src)
	refs := relationsOfType(rels, store.RelTypeRef)
	require.Len(t, refs, 1, "repeated references dedupe to one row")
	require.Equal(t, "Config", refs[0].DstSymbolName)
	require.Equal(t, "./config", refs[0].DstFilePath)
}
