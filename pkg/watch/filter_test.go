// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import "testing"

func TestFilterAccept(t *testing.T) {
	f := NewFilter([]string{".ts", ".mts", ".cts"}, []string{"generated/**"})

	cases := []struct {
		path string
		want bool
	}{
		{"src/a.ts", true},
		{"src/a.mts", true},
		{"src/A.TS", true}, // extensions are case-insensitive
		{"src/a.js", false},
		{"src/types.d.ts", false},            // declaration files always rejected
		{"package.json", true},               // config files pass the extension filter
		{"tsconfig.json", true},
		{"jsconfig.json", true},
		{"node_modules/pkg/index.ts", false}, // floor glob
		{"deep/node_modules/x/y.ts", false},
		{"dist/out.ts", false},
		{".git/hooks/x.ts", false},
		{".zipbul/gildash.db", false},
		{"generated/api.ts", false}, // caller glob unioned with the floor
		{"src/generated.ts", true},
	}
	for _, tc := range cases {
		if got := f.Accept(tc.path); got != tc.want {
			t.Errorf("Accept(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestFilterDeclarationBeatsConfigNaming(t *testing.T) {
	f := NewFilter([]string{".ts"}, nil)
	// The d.ts rejection applies before anything else.
	if f.Accept("src/package.d.ts") {
		t.Error("declaration file must be rejected")
	}
}

func TestFilterSkipDir(t *testing.T) {
	f := NewFilter([]string{".ts"}, []string{"coverage/**"})

	cases := []struct {
		path string
		want bool
	}{
		{"node_modules", true},
		{"src/node_modules", true},
		{"dist", true},
		{".git", true},
		{".zipbul", true},
		{"coverage", true},
		{"src", false},
		{"src/lib", false},
	}
	for _, tc := range cases {
		if got := f.SkipDir(tc.path); got != tc.want {
			t.Errorf("SkipDir(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestRel(t *testing.T) {
	rel, ok := Rel("/p", "/p/src/a.ts")
	if !ok || rel != "src/a.ts" {
		t.Errorf("Rel = %q, %v", rel, ok)
	}
	if _, ok := Rel("/p", "/other/file.ts"); ok {
		t.Error("paths outside the root must be rejected")
	}
}
