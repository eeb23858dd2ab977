// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kraklabs/gildash/pkg/store"
)

// HeritageNode is one node of an extends/implements tree. Kind is the
// relation type that led here ("" for the root).
type HeritageNode struct {
	SymbolName string          `json:"symbol_name"`
	FilePath   string          `json:"file_path"`
	Kind       string          `json:"kind,omitempty"`
	Children   []*HeritageNode `json:"children"`
}

// HeritageWalker builds heritage trees from stored relations.
type HeritageWalker struct {
	relations *store.RelationRepo
	logger    *slog.Logger
}

// NewHeritageWalker creates a walker over the relation repository.
func NewHeritageWalker(relations *store.RelationRepo, logger *slog.Logger) *HeritageWalker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeritageWalker{relations: relations, logger: logger}
}

// Walk builds the heritage tree rooted at (symbolName, filePath). A
// symbol revisited along a branch becomes a leaf with empty children, so
// cyclic heritage terminates.
func (w *HeritageWalker) Walk(ctx context.Context, symbolName, filePath, project string) (*HeritageNode, error) {
	visited := make(map[string]bool)
	return w.walk(ctx, symbolName, filePath, project, "", visited)
}

func (w *HeritageWalker) walk(ctx context.Context, symbolName, filePath, project, kind string, visited map[string]bool) (*HeritageNode, error) {
	node := &HeritageNode{
		SymbolName: symbolName,
		FilePath:   filePath,
		Kind:       kind,
		Children:   []*HeritageNode{},
	}

	key := symbolName + "::" + filePath
	if visited[key] {
		return node, nil
	}
	visited[key] = true

	rels, err := w.relations.Search(ctx, store.RelationQuery{
		Project:       project,
		SrcFilePath:   filePath,
		SrcSymbolName: symbolName,
	})
	if err != nil {
		return nil, fmt.Errorf("query heritage of %s: %w", symbolName, err)
	}

	for _, rel := range rels {
		if rel.Type != store.RelExtends && rel.Type != store.RelImplements {
			continue
		}
		if rel.DstSymbolName == "" {
			continue
		}
		child, err := w.walk(ctx, rel.DstSymbolName, rel.DstFilePath, project, string(rel.Type), visited)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}
