// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package semantic provides the optional type-resolved query bridge. The
// runtime keeps the bridge fed with file content as the watcher reports
// changes; queries answer from the index and the in-memory overlay.
package semantic

import (
	"context"

	"github.com/kraklabs/gildash/pkg/store"
)

// Position is a resolved location inside a file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// TypeInfo describes one declaration from a type-level view.
type TypeInfo struct {
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	Signature string     `json:"signature,omitempty"`
	FilePath  string     `json:"file_path"`
	Span      store.Span `json:"span"`
}

// Reference is one usage site of a symbol.
type Reference struct {
	FilePath   string `json:"file_path"`
	SymbolName string `json:"symbol_name,omitempty"`
	Relation   string `json:"relation"`
	Line       int    `json:"line,omitempty"`
}

// ModuleInterface is the exported surface of one module.
type ModuleInterface struct {
	FilePath string     `json:"file_path"`
	Exports  []TypeInfo `json:"exports"`
}

// Bridge is the semantic analyzer surface the runtime drives. Dispose
// runs before the store is closed.
type Bridge interface {
	LineColumnToPosition(filePath string, line, column int) (int, error)
	FindNamePosition(filePath, name string) (*Position, error)
	CollectTypeAt(ctx context.Context, project, filePath string, offset int) (*TypeInfo, error)
	CollectFileTypes(ctx context.Context, project, filePath string) ([]TypeInfo, error)
	FindReferences(ctx context.Context, project, name string) ([]Reference, error)
	FindImplementations(ctx context.Context, project, name string) ([]Reference, error)
	GetModuleInterface(ctx context.Context, project, filePath string) (*ModuleInterface, error)
	NotifyFileChanged(filePath string, content []byte)
	NotifyFileDeleted(filePath string)
	Dispose() error
}
