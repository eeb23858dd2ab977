// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "time"

// FileRecord tracks one indexed source file. Paths are project-relative
// and forward-slash normalized regardless of host OS.
type FileRecord struct {
	Project     string
	FilePath    string
	MtimeMS     int64
	ByteSize    int64
	ContentHash string
	LineCount   int
	UpdatedAt   time.Time
}

// Span is a 1-indexed source range.
type Span struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// Symbol kinds. The set is open; extractors may introduce new kinds
// without a schema change.
const (
	KindFunction  = "function"
	KindClass     = "class"
	KindInterface = "interface"
	KindType      = "type"
	KindEnum      = "enum"
	KindVariable  = "variable"
	KindMethod    = "method"
	KindProperty  = "property"
	KindConst     = "const"
)

// Symbol is one declaration extracted from a source file.
//
// Fingerprint is a deterministic hash of the shape-relevant fields of the
// declaration: identical shape yields an identical fingerprint, so a
// declaration that merely moves does not read as modified.
type Symbol struct {
	Project     string
	FilePath    string
	Name        string
	Kind        string
	Span        Span
	IsExported  bool
	Signature   string
	Fingerprint string
	Detail      map[string]any
}

// RelationType classifies a cross-file (or cross-symbol) relation.
type RelationType string

const (
	RelImports    RelationType = "imports"
	RelReExports  RelationType = "re-exports"
	RelExtends    RelationType = "extends"
	RelImplements RelationType = "implements"
	RelCalls      RelationType = "calls"
	RelTypeRef    RelationType = "type-ref"
)

// Relation is one extracted relation row. Meta is an open JSON-serializable
// map; for re-exports it carries meta["specifiers"] as a list of
// {local, exported} pairs (a bare `export *` sets no specifiers).
type Relation struct {
	Project       string
	Type          RelationType
	SrcFilePath   string
	SrcSymbolName string
	DstFilePath   string
	DstSymbolName string
	Meta          map[string]any
}

// ReExportSpecifier is one {local, exported} pair from a re-export meta.
type ReExportSpecifier struct {
	Local    string `json:"local"`
	Exported string `json:"exported"`
}

// OwnerRecord is the single-writer heartbeat row. At most one exists per
// store.
type OwnerRecord struct {
	PID         int
	HeartbeatAt time.Time
}

// SymbolQuery filters a symbol search. Zero fields are ignored.
type SymbolQuery struct {
	Project    string
	Text       string
	Exact      bool
	FilePath   string
	Kind       string
	IsExported *bool
	Limit      int
}

// RelationQuery filters a relation search. Zero fields are ignored.
type RelationQuery struct {
	Project       string
	Type          RelationType
	SrcFilePath   string
	DstFilePath   string
	SrcSymbolName string
	DstSymbolName string
	Limit         int
}

// Stats summarizes one project's index.
type Stats struct {
	FileCount   int
	SymbolCount int
}
