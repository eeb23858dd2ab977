// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package parser turns TypeScript/JavaScript sources into parsed trees and
// extracts symbol declarations and cross-file relations from them.
//
// Parsing uses Tree-sitter. Parser instances are pooled per grammar
// because a sitter.Parser is not safe for concurrent use.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// SyntaxError is one error region reported by the grammar.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

// Comment is one comment node with its span.
type Comment struct {
	Text      string
	StartLine int
	EndLine   int
}

// ParsedFile is the immutable result of parsing one source file.
type ParsedFile struct {
	FilePath   string
	Tree       *sitter.Tree
	Errors     []SyntaxError
	Comments   []Comment
	SourceText []byte
}

// Root returns the root node of the parse tree.
func (pf *ParsedFile) Root() *sitter.Node {
	return pf.Tree.RootNode()
}

func (pf *ParsedFile) text(n *sitter.Node) string {
	return string(pf.SourceText[n.StartByte():n.EndByte()])
}

// Parser parses TypeScript and TSX sources.
type Parser struct {
	logger *slog.Logger

	tsPool  sync.Pool
	tsxPool sync.Pool
	init    sync.Once
}

// New creates a parser.
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

func (p *Parser) initPools() {
	p.init.Do(func() {
		p.tsPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(typescript.GetLanguage())
			return parser
		}
		p.tsxPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(tsx.GetLanguage())
			return parser
		}
	})
}

// Language returns the grammar used for a path.
func Language(filePath string) *sitter.Language {
	if strings.EqualFold(filepath.Ext(filePath), ".tsx") {
		return tsx.GetLanguage()
	}
	return typescript.GetLanguage()
}

// Parse parses src into a ParsedFile. Grammar-level syntax errors do not
// fail the parse; they are collected on the result so callers can index
// what the grammar recovered.
func (p *Parser) Parse(ctx context.Context, filePath string, src []byte) (*ParsedFile, error) {
	p.initPools()

	pool := &p.tsPool
	if strings.EqualFold(filepath.Ext(filePath), ".tsx") {
		pool = &p.tsxPool
	}
	parser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return nil, fmt.Errorf("invalid parser type from pool")
	}
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}

	pf := &ParsedFile{
		FilePath:   filePath,
		Tree:       tree,
		SourceText: src,
	}
	root := tree.RootNode()
	if root.HasError() {
		pf.Errors = collectSyntaxErrors(root)
		if len(pf.Errors) > 0 {
			p.logger.Debug("parser.syntax_errors", "path", filePath, "count", len(pf.Errors))
		}
	}
	pf.Comments = collectComments(root, src)
	return pf, nil
}

func collectSyntaxErrors(root *sitter.Node) []SyntaxError {
	var errs []SyntaxError
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			msg := "syntax error"
			if n.IsMissing() {
				msg = "missing " + n.Type()
			}
			errs = append(errs, SyntaxError{
				Line:    int(n.StartPoint().Row) + 1,
				Column:  int(n.StartPoint().Column) + 1,
				Message: msg,
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return errs
}

func collectComments(root *sitter.Node, src []byte) []Comment {
	var comments []Comment
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "comment" {
			comments = append(comments, Comment{
				Text:      string(src[n.StartByte():n.EndByte()]),
				StartLine: int(n.StartPoint().Row) + 1,
				EndLine:   int(n.EndPoint().Row) + 1,
			})
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return comments
}

// CountLines returns the number of lines in src, tolerating a missing
// trailing newline.
func CountLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := 0
	for _, b := range src {
		if b == '\n' {
			n++
		}
	}
	if src[len(src)-1] != '\n' {
		n++
	}
	return n
}
