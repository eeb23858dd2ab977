// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/gildash/pkg/store"
)

// ExtractSymbols walks a parsed file and returns every declaration as a
// Symbol row, fingerprinted and ready for the store.
//
// Class members are emitted both as entries in the class's
// detail["members"] and as their own method/property symbols. Interface
// members appear only in the interface's detail["members"].
func ExtractSymbols(pf *ParsedFile, project string) []store.Symbol {
	ex := &symbolExtractor{pf: pf, project: project}
	ex.walk(pf.Root(), "")
	return ex.symbols
}

type symbolExtractor struct {
	pf      *ParsedFile
	project string
	symbols []store.Symbol
}

func (ex *symbolExtractor) walk(n *sitter.Node, parentClass string) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "function_declaration", "generator_function_declaration":
		ex.addFunction(n, parentClass)
	case "class_declaration", "abstract_class_declaration":
		ex.addClass(n)
		// Recurse so methods and nested declarations are still seen.
	case "interface_declaration":
		ex.addInterface(n)
	case "type_alias_declaration":
		ex.addNamed(n, store.KindType)
	case "enum_declaration":
		ex.addNamed(n, store.KindEnum)
	case "lexical_declaration", "variable_declaration":
		ex.addVariables(n)
	case "method_definition":
		if parentClass != "" {
			ex.addMethod(n, parentClass)
		}
	case "public_field_definition":
		if parentClass != "" {
			ex.addProperty(n, parentClass)
		}
	}

	nextParent := parentClass
	if n.Type() == "class_declaration" || n.Type() == "abstract_class_declaration" {
		if name := childText(ex.pf, n, "name"); name != "" {
			nextParent = name
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		ex.walk(n.Child(i), nextParent)
	}
}

func (ex *symbolExtractor) add(sym store.Symbol) {
	sym.Project = ex.project
	sym.FilePath = ex.pf.FilePath
	sym.Fingerprint = Fingerprint(sym)
	ex.symbols = append(ex.symbols, sym)
}

func (ex *symbolExtractor) addFunction(n *sitter.Node, parentClass string) {
	name := childText(ex.pf, n, "name")
	if name == "" {
		return
	}
	detail := map[string]any{}
	params := parameterNames(ex.pf, n)
	if len(params) > 0 {
		detail["parameters"] = params
	}
	if rt := returnTypeText(ex.pf, n); rt != "" {
		detail["return_type"] = rt
	}
	if doc := ex.jsDocFor(n); doc != "" {
		detail["js_doc"] = doc
	}
	if parentClass != "" {
		detail["parent"] = parentClass
	}
	ex.add(store.Symbol{
		Name:       name,
		Kind:       store.KindFunction,
		Span:       spanOf(n),
		IsExported: isExported(n),
		Signature:  signatureText(ex.pf, n),
		Detail:     detail,
	})
}

func (ex *symbolExtractor) addClass(n *sitter.Node) {
	name := childText(ex.pf, n, "name")
	if name == "" {
		return
	}
	detail := map[string]any{}
	if members := classMembers(ex.pf, n); len(members) > 0 {
		detail["members"] = members
	}
	if heritage := heritageList(ex.pf, n); len(heritage) > 0 {
		detail["heritage"] = heritage
	}
	if decorators := decoratorList(ex.pf, n); len(decorators) > 0 {
		detail["decorators"] = decorators
	}
	if doc := ex.jsDocFor(n); doc != "" {
		detail["js_doc"] = doc
	}
	ex.add(store.Symbol{
		Name:       name,
		Kind:       store.KindClass,
		Span:       spanOf(n),
		IsExported: isExported(n),
		Signature:  signatureText(ex.pf, n),
		Detail:     detail,
	})
}

func (ex *symbolExtractor) addInterface(n *sitter.Node) {
	name := childText(ex.pf, n, "name")
	if name == "" {
		return
	}
	detail := map[string]any{}
	if members := interfaceMembers(ex.pf, n); len(members) > 0 {
		detail["members"] = members
	}
	if heritage := heritageList(ex.pf, n); len(heritage) > 0 {
		detail["heritage"] = heritage
	}
	if doc := ex.jsDocFor(n); doc != "" {
		detail["js_doc"] = doc
	}
	ex.add(store.Symbol{
		Name:       name,
		Kind:       store.KindInterface,
		Span:       spanOf(n),
		IsExported: isExported(n),
		Signature:  signatureText(ex.pf, n),
		Detail:     detail,
	})
}

func (ex *symbolExtractor) addNamed(n *sitter.Node, kind string) {
	name := childText(ex.pf, n, "name")
	if name == "" {
		return
	}
	detail := map[string]any{}
	if doc := ex.jsDocFor(n); doc != "" {
		detail["js_doc"] = doc
	}
	ex.add(store.Symbol{
		Name:       name,
		Kind:       kind,
		Span:       spanOf(n),
		IsExported: isExported(n),
		Signature:  signatureText(ex.pf, n),
		Detail:     detail,
	})
}

// addVariables emits one symbol per declarator. A declarator whose value
// is a function expression or arrow is a function symbol; otherwise it is
// const or variable depending on the declaration keyword.
func (ex *symbolExtractor) addVariables(n *sitter.Node) {
	kind := store.KindVariable
	if n.ChildCount() > 0 && ex.pf.text(n.Child(0)) == "const" {
		kind = store.KindConst
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		decl := n.Child(i)
		if decl == nil || decl.Type() != "variable_declarator" {
			continue
		}
		name := childText(ex.pf, decl, "name")
		if name == "" {
			continue
		}
		symKind := kind
		detail := map[string]any{}
		if value := decl.ChildByFieldName("value"); value != nil {
			switch value.Type() {
			case "arrow_function", "function_expression", "function":
				symKind = store.KindFunction
				if params := parameterNames(ex.pf, value); len(params) > 0 {
					detail["parameters"] = params
				}
				if rt := returnTypeText(ex.pf, value); rt != "" {
					detail["return_type"] = rt
				}
			}
		}
		if doc := ex.jsDocFor(n); doc != "" {
			detail["js_doc"] = doc
		}
		ex.add(store.Symbol{
			Name:       name,
			Kind:       symKind,
			Span:       spanOf(decl),
			IsExported: isExported(n),
			Signature:  firstLine(ex.pf.text(decl)),
			Detail:     detail,
		})
	}
}

func (ex *symbolExtractor) addMethod(n *sitter.Node, parentClass string) {
	name := childText(ex.pf, n, "name")
	if name == "" {
		return
	}
	detail := map[string]any{"parent": parentClass}
	if params := parameterNames(ex.pf, n); len(params) > 0 {
		detail["parameters"] = params
	}
	if rt := returnTypeText(ex.pf, n); rt != "" {
		detail["return_type"] = rt
	}
	if decorators := decoratorList(ex.pf, n); len(decorators) > 0 {
		detail["decorators"] = decorators
	}
	ex.add(store.Symbol{
		Name:      name,
		Kind:      store.KindMethod,
		Span:      spanOf(n),
		Signature: signatureText(ex.pf, n),
		Detail:    detail,
	})
}

func (ex *symbolExtractor) addProperty(n *sitter.Node, parentClass string) {
	name := childText(ex.pf, n, "name")
	if name == "" {
		return
	}
	detail := map[string]any{"parent": parentClass}
	if t := n.ChildByFieldName("type"); t != nil {
		detail["type"] = strings.TrimPrefix(ex.pf.text(t), ": ")
	}
	ex.add(store.Symbol{
		Name:      name,
		Kind:      store.KindProperty,
		Span:      spanOf(n),
		Signature: firstLine(ex.pf.text(n)),
		Detail:    detail,
	})
}

// jsDocFor returns the block comment that ends on the line directly above
// the declaration (or its export wrapper).
func (ex *symbolExtractor) jsDocFor(n *sitter.Node) string {
	anchor := n
	if p := n.Parent(); p != nil && p.Type() == "export_statement" {
		anchor = p
	}
	startLine := int(anchor.StartPoint().Row) + 1
	for _, c := range ex.pf.Comments {
		if c.EndLine == startLine-1 && strings.HasPrefix(c.Text, "/**") {
			return c.Text
		}
	}
	return ""
}

// ---- shared node helpers ----

func spanOf(n *sitter.Node) store.Span {
	return store.Span{
		StartLine: int(n.StartPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		EndCol:    int(n.EndPoint().Column) + 1,
	}
}

func childText(pf *ParsedFile, n *sitter.Node, field string) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return pf.text(c)
}

func isExported(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "export_statement":
			return true
		case "program":
			return false
		}
	}
	return false
}

func parameterNames(pf *ParsedFile, n *sitter.Node) []string {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		params = n.ChildByFieldName("parameter")
	}
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		if pat := p.ChildByFieldName("pattern"); pat != nil {
			names = append(names, pf.text(pat))
			continue
		}
		names = append(names, firstLine(pf.text(p)))
	}
	return names
}

func returnTypeText(pf *ParsedFile, n *sitter.Node) string {
	rt := n.ChildByFieldName("return_type")
	if rt == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(pf.text(rt), ":"))
}

// signatureText is the declaration's header: everything up to the body.
func signatureText(pf *ParsedFile, n *sitter.Node) string {
	if body := n.ChildByFieldName("body"); body != nil {
		text := string(pf.SourceText[n.StartByte():body.StartByte()])
		return strings.TrimSpace(text)
	}
	return firstLine(pf.text(n))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func classMembers(pf *ParsedFile, n *sitter.Node) []map[string]any {
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	var members []map[string]any
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		if m == nil {
			continue
		}
		switch m.Type() {
		case "method_definition":
			members = append(members, map[string]any{
				"name": childText(pf, m, "name"),
				"kind": store.KindMethod,
			})
		case "public_field_definition":
			members = append(members, map[string]any{
				"name": childText(pf, m, "name"),
				"kind": store.KindProperty,
			})
		}
	}
	return members
}

func interfaceMembers(pf *ParsedFile, n *sitter.Node) []map[string]any {
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	var members []map[string]any
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		if m == nil {
			continue
		}
		switch m.Type() {
		case "property_signature":
			members = append(members, map[string]any{
				"name": childText(pf, m, "name"),
				"kind": store.KindProperty,
			})
		case "method_signature":
			members = append(members, map[string]any{
				"name": childText(pf, m, "name"),
				"kind": store.KindMethod,
			})
		}
	}
	return members
}

// heritageList collects {type, name} pairs from extends/implements
// clauses on classes and interfaces.
func heritageList(pf *ParsedFile, n *sitter.Node) []map[string]any {
	var heritage []map[string]any
	var scan func(node *sitter.Node)
	scan = func(node *sitter.Node) {
		if node == nil {
			return
		}
		switch node.Type() {
		case "extends_clause", "extends_type_clause":
			for _, name := range clauseTypeNames(pf, node) {
				heritage = append(heritage, map[string]any{"type": "extends", "name": name})
			}
			return
		case "implements_clause":
			for _, name := range clauseTypeNames(pf, node) {
				heritage = append(heritage, map[string]any{"type": "implements", "name": name})
			}
			return
		case "class_body", "object_type":
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			scan(node.Child(i))
		}
	}
	scan(n)
	return heritage
}

// clauseTypeNames pulls the referenced names out of a heritage clause,
// dropping type arguments (`Base<T>` yields `Base`).
func clauseTypeNames(pf *ParsedFile, clause *sitter.Node) []string {
	var names []string
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "identifier", "type_identifier":
			names = append(names, pf.text(c))
		case "generic_type":
			if name := c.ChildByFieldName("name"); name != nil {
				names = append(names, pf.text(name))
			}
		case "member_expression", "nested_type_identifier":
			names = append(names, pf.text(c))
		}
	}
	return names
}

func decoratorList(pf *ParsedFile, n *sitter.Node) []string {
	var decorators []string
	for prev := n.PrevNamedSibling(); prev != nil && prev.Type() == "decorator"; prev = prev.PrevNamedSibling() {
		decorators = append([]string{pf.text(prev)}, decorators...)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c != nil && c.Type() == "decorator" {
			decorators = append(decorators, pf.text(c))
		}
	}
	return decorators
}
