// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/gildash/pkg/store"
)

// PatternMatch is one capture produced by an AST pattern query.
type PatternMatch struct {
	Capture string
	Text    string
	Span    store.Span
}

// PatternSearch runs a Tree-sitter query (S-expression pattern syntax)
// against a parsed file and returns every capture.
func PatternSearch(pf *ParsedFile, pattern string) ([]PatternMatch, error) {
	query, err := sitter.NewQuery([]byte(pattern), Language(pf.FilePath))
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, pf.Root())

	var matches []PatternMatch
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		m = cursor.FilterPredicates(m, pf.SourceText)
		for _, c := range m.Captures {
			matches = append(matches, PatternMatch{
				Capture: query.CaptureNameForId(c.Index),
				Text:    pf.text(c.Node),
				Span:    spanOf(c.Node),
			})
		}
	}
	return matches, nil
}
