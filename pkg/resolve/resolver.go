// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resolve follows re-export chains back to original declarations
// and walks extends/implements heritage trees.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kraklabs/gildash/pkg/store"
)

// ChainLink is one hop of a re-export chain.
type ChainLink struct {
	FilePath   string `json:"file_path"`
	ExportedAs string `json:"exported_as"`
}

// Resolution is the result of following a symbol through its re-exports.
type Resolution struct {
	OriginalName     string      `json:"original_name"`
	OriginalFilePath string      `json:"original_file_path"`
	ReExportChain    []ChainLink `json:"re_export_chain"`
	Circular         bool        `json:"circular"`
}

// Resolver follows re-export relations.
type Resolver struct {
	relations *store.RelationRepo
	logger    *slog.Logger
}

// NewResolver creates a resolver over the relation repository.
func NewResolver(relations *store.RelationRepo, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{relations: relations, logger: logger}
}

// Resolve follows symbolName from startingFile through re-export
// relations until it reaches a file that does not re-export it. A
// revisited (file, name) pair stops the walk with Circular set and the
// chain built so far. Relations whose meta cannot be interpreted are
// skipped, because rows written by foreign tools may carry forms we do
// not recognize.
func (r *Resolver) Resolve(ctx context.Context, symbolName, startingFile, project string) (*Resolution, error) {
	res := &Resolution{
		OriginalName:     symbolName,
		OriginalFilePath: startingFile,
		ReExportChain:    []ChainLink{},
	}

	curFile, curName := startingFile, symbolName
	visited := map[string]bool{visitKey(curFile, curName): true}

	for {
		rels, err := r.relations.Search(ctx, store.RelationQuery{
			Project:     project,
			Type:        store.RelReExports,
			SrcFilePath: curFile,
		})
		if err != nil {
			return nil, fmt.Errorf("query re-exports of %s: %w", curFile, err)
		}

		nextFile, nextName, followed := "", "", false
		for _, rel := range rels {
			specs, ok := specifiers(rel.Meta)
			if !ok {
				continue
			}
			for _, spec := range specs {
				if spec.Exported != curName {
					continue
				}
				nextFile, nextName = rel.DstFilePath, spec.Local
				followed = true
				break
			}
			if followed {
				break
			}
		}

		if !followed {
			// No specifier matches here (including a bare `export *`):
			// this is where the symbol lives.
			res.OriginalName = curName
			res.OriginalFilePath = curFile
			return res, nil
		}

		res.ReExportChain = append(res.ReExportChain, ChainLink{FilePath: curFile, ExportedAs: curName})

		key := visitKey(nextFile, nextName)
		if visited[key] {
			res.Circular = true
			res.OriginalName = nextName
			res.OriginalFilePath = nextFile
			return res, nil
		}
		visited[key] = true
		curFile, curName = nextFile, nextName
		res.OriginalName = curName
		res.OriginalFilePath = curFile
	}
}

func visitKey(file, name string) string {
	return file + "\x00" + name
}

// specifiers extracts the {local, exported} pairs from a re-export meta.
// Returns ok=false when the meta carries no usable specifier list.
func specifiers(meta map[string]any) ([]store.ReExportSpecifier, bool) {
	if meta == nil {
		return nil, false
	}
	raw, ok := meta["specifiers"]
	if !ok {
		return nil, false
	}
	var list []map[string]any
	switch v := raw.(type) {
	case []map[string]any:
		list = v
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				list = append(list, m)
			}
		}
	default:
		return nil, false
	}
	var out []store.ReExportSpecifier
	for _, m := range list {
		local, _ := m["local"].(string)
		exported, _ := m["exported"].(string)
		if local == "" && exported == "" {
			continue
		}
		out = append(out, store.ReExportSpecifier{Local: local, Exported: exported})
	}
	return out, len(out) > 0
}
