// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFloor is always excluded, regardless of caller configuration.
var IgnoreFloor = []string{
	"**/.git/**",
	"**/dist/**",
	"**/node_modules/**",
	"**/.zipbul/**",
}

// Filter decides which filesystem paths become events. Paths are
// evaluated project-relative with forward slashes.
type Filter struct {
	extensions []string
	ignore     []string
}

// NewFilter builds a filter for the accepted extensions, unioning the
// caller's ignore globs with the fixed floor.
func NewFilter(extensions, ignore []string) *Filter {
	exts := make([]string, len(extensions))
	for i, e := range extensions {
		exts[i] = strings.ToLower(e)
	}
	return &Filter{
		extensions: exts,
		ignore:     append(append([]string{}, IgnoreFloor...), ignore...),
	}
}

// Accept applies the filtering rules in order: declaration files are
// rejected, package.json and tsconfig.json pass regardless of the
// extension filter, everything else must carry an accepted extension,
// and ignore globs reject last.
func (f *Filter) Accept(relPath string) bool {
	base := path.Base(relPath)

	if strings.HasSuffix(strings.ToLower(base), ".d.ts") {
		return false
	}

	configFile := base == "package.json" || base == "tsconfig.json" || base == "jsconfig.json"
	if !configFile {
		ext := strings.ToLower(path.Ext(base))
		found := false
		for _, accepted := range f.extensions {
			if ext == accepted {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, pattern := range f.ignore {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return false
		}
	}
	return true
}

// SkipDir reports whether a directory subtree should not be watched or
// walked at all.
func (f *Filter) SkipDir(relPath string) bool {
	base := path.Base(relPath)
	switch base {
	case ".git", "node_modules", "dist", ".zipbul":
		return true
	}
	for _, pattern := range f.ignore {
		// A directory is skippable when the pattern would exclude its
		// entire subtree.
		if ok, _ := doublestar.Match(pattern, relPath+"/x"); ok {
			return true
		}
	}
	return false
}

// Rel normalizes an absolute path to project-relative forward-slash
// form. Returns ok=false for paths outside the root.
func Rel(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
