// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte("export {}\n"), 0o644))
}

func TestResolveRelativeSpecifiers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/util.ts")
	writeFile(t, root, "src/lib/index.ts")

	r := NewModuleResolver(root, []string{".ts", ".mts", ".cts"})

	require.Equal(t, "src/util.ts", r.Resolve("src/a.ts", "./util"))
	require.Equal(t, "src/util.ts", r.Resolve("src/a.ts", "./util.ts"))
	require.Equal(t, "src/lib/index.ts", r.Resolve("src/a.ts", "./lib"))
	require.Equal(t, "src/util.ts", r.Resolve("src/deep/b.ts", "../util"))

	// Nothing on disk: the joined path is still recorded.
	require.Equal(t, "src/missing", r.Resolve("src/a.ts", "./missing"))
}

func TestResolveTSConfigPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/core/logger.ts")

	r := NewModuleResolver(root, []string{".ts"})
	r.SetPaths("", map[string][]string{"@core/*": {"src/core/*"}})

	require.Equal(t, "src/core/logger.ts", r.Resolve("src/a.ts", "@core/logger"))
	// Bare specifiers with no mapping stay verbatim.
	require.Equal(t, "lodash", r.Resolve("src/a.ts", "lodash"))
}

func TestLoadTSConfigPaths(t *testing.T) {
	root := t.TempDir()
	content := `{
  // project config
  "compilerOptions": {
    "baseUrl": ".", /* base */
    "paths": {
      "@app/*": ["src/app/*"]
    }
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "tsconfig.json"), []byte(content), 0o644))

	cfg, err := LoadTSConfigPaths(root)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, ".", cfg.BaseURL)
	require.Equal(t, []string{"src/app/*"}, cfg.Paths["@app/*"])
}

func TestLoadTSConfigPathsMissing(t *testing.T) {
	cfg, err := LoadTSConfigPaths(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, cfg)
}

func TestMatchPathPattern(t *testing.T) {
	cases := []struct {
		pattern, specifier string
		matched            bool
		wildcard           string
	}{
		{"@core/*", "@core/logger", true, "logger"},
		{"@core/*", "@other/logger", false, ""},
		{"exact", "exact", true, ""},
		{"exact", "other", false, ""},
		{"pre*post", "preXpost", true, "X"},
	}
	for _, tc := range cases {
		matched, wildcard := matchPathPattern(tc.pattern, tc.specifier)
		if matched != tc.matched || wildcard != tc.wildcard {
			t.Errorf("matchPathPattern(%q, %q) = (%v, %q), want (%v, %q)",
				tc.pattern, tc.specifier, matched, wildcard, tc.matched, tc.wildcard)
		}
	}
}
