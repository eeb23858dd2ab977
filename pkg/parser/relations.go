// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/gildash/pkg/store"
)

// ExtractRelations walks a parsed file and returns its outgoing relation
// rows: imports, re-exports, extends, implements, calls and type-refs.
// The resolver maps import specifiers to project-relative paths; when nil,
// specifiers are recorded verbatim.
func ExtractRelations(pf *ParsedFile, project string, res *ModuleResolver) []store.Relation {
	rx := &relationExtractor{
		pf:       pf,
		project:  project,
		resolver: res,
		imported: make(map[string]string),
		declared: make(map[string]bool),
		seen:     make(map[string]bool),
	}
	rx.collectDeclared(pf.Root())
	rx.collectModuleEdges(pf.Root())
	rx.collectHeritage(pf.Root())
	rx.collectCallsAndTypeRefs(pf.Root(), "")
	return rx.relations
}

type relationExtractor struct {
	pf        *ParsedFile
	project   string
	resolver  *ModuleResolver
	relations []store.Relation

	// imported maps a local binding to the file (or bare specifier) it
	// came from.
	imported map[string]string
	// declared holds names declared in this file.
	declared map[string]bool
	// seen dedupes call and type-ref rows.
	seen map[string]bool
}

func (rx *relationExtractor) add(rel store.Relation) {
	rel.Project = rx.project
	rel.SrcFilePath = rx.pf.FilePath
	rx.relations = append(rx.relations, rel)
}

func (rx *relationExtractor) resolve(specifier string) string {
	if rx.resolver == nil {
		return specifier
	}
	return rx.resolver.Resolve(rx.pf.FilePath, specifier)
}

// collectDeclared records every top-level declaration name so same-file
// calls resolve without an import.
func (rx *relationExtractor) collectDeclared(root *sitter.Node) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "function_declaration", "generator_function_declaration",
			"class_declaration", "abstract_class_declaration",
			"interface_declaration", "type_alias_declaration", "enum_declaration":
			if name := childText(rx.pf, n, "name"); name != "" {
				rx.declared[name] = true
			}
		case "variable_declarator":
			if name := childText(rx.pf, n, "name"); name != "" {
				rx.declared[name] = true
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
}

// collectModuleEdges emits imports and re-exports from the top-level
// statements and fills the imported-name table.
func (rx *relationExtractor) collectModuleEdges(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n == nil {
			continue
		}
		switch n.Type() {
		case "import_statement":
			rx.addImport(n)
		case "export_statement":
			if n.ChildByFieldName("source") != nil {
				rx.addReExport(n)
			}
		}
	}
}

func (rx *relationExtractor) addImport(n *sitter.Node) {
	source := stringValue(rx.pf, n.ChildByFieldName("source"))
	if source == "" {
		return
	}
	dst := rx.resolve(source)

	var specifiers []map[string]any
	record := func(local, imported string) {
		rx.imported[local] = dst
		specifiers = append(specifiers, map[string]any{"local": local, "imported": imported})
	}

	var walk func(c *sitter.Node)
	walk = func(c *sitter.Node) {
		if c == nil {
			return
		}
		switch c.Type() {
		case "import_specifier":
			name := childText(rx.pf, c, "name")
			alias := childText(rx.pf, c, "alias")
			if alias == "" {
				alias = name
			}
			if name != "" {
				record(alias, name)
			}
			return
		case "namespace_import":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				id := c.NamedChild(j)
				if id != nil && id.Type() == "identifier" {
					record(rx.pf.text(id), "*")
				}
			}
			return
		case "identifier":
			// Default import binding.
			record(rx.pf.text(c), "default")
			return
		case "string":
			return
		}
		for j := 0; j < int(c.ChildCount()); j++ {
			walk(c.Child(j))
		}
	}
	for j := 0; j < int(n.NamedChildCount()); j++ {
		c := n.NamedChild(j)
		if c != nil && c.Type() == "import_clause" {
			walk(c)
		}
	}

	meta := map[string]any{"specifier": source}
	if len(specifiers) > 0 {
		meta["specifiers"] = specifiers
	}
	rx.add(store.Relation{
		Type:        store.RelImports,
		DstFilePath: dst,
		Meta:        meta,
	})
}

func (rx *relationExtractor) addReExport(n *sitter.Node) {
	source := stringValue(rx.pf, n.ChildByFieldName("source"))
	if source == "" {
		return
	}
	dst := rx.resolve(source)

	var specifiers []map[string]any
	var scan func(c *sitter.Node)
	scan = func(c *sitter.Node) {
		if c == nil {
			return
		}
		switch c.Type() {
		case "export_specifier":
			local := childText(rx.pf, c, "name")
			exported := childText(rx.pf, c, "alias")
			if exported == "" {
				exported = local
			}
			if local != "" {
				specifiers = append(specifiers, map[string]any{"local": local, "exported": exported})
			}
			return
		case "namespace_export":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				id := c.NamedChild(j)
				if id != nil {
					specifiers = append(specifiers, map[string]any{"local": "*", "exported": rx.pf.text(id)})
				}
			}
			return
		case "string":
			return
		}
		for j := 0; j < int(c.ChildCount()); j++ {
			scan(c.Child(j))
		}
	}
	scan(n)

	meta := map[string]any{"specifier": source}
	if len(specifiers) > 0 {
		// A bare `export *` carries no specifiers at all.
		meta["specifiers"] = specifiers
	}
	rx.add(store.Relation{
		Type:        store.RelReExports,
		DstFilePath: dst,
		Meta:        meta,
	})
}

// collectHeritage emits extends/implements rows for classes and
// interfaces. The destination file is the import source of the base name
// when it was imported, otherwise this file.
func (rx *relationExtractor) collectHeritage(root *sitter.Node) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "class_declaration", "abstract_class_declaration", "interface_declaration":
			srcName := childText(rx.pf, n, "name")
			if srcName != "" {
				for _, h := range heritageList(rx.pf, n) {
					relType := store.RelExtends
					if h["type"] == "implements" {
						relType = store.RelImplements
					}
					name, _ := h["name"].(string)
					if name == "" {
						continue
					}
					dstFile := rx.pf.FilePath
					if from, ok := rx.imported[baseIdentifier(name)]; ok {
						dstFile = from
					}
					rx.add(store.Relation{
						Type:          relType,
						SrcSymbolName: srcName,
						DstFilePath:   dstFile,
						DstSymbolName: name,
					})
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
}

// collectCallsAndTypeRefs emits calls rows for invocations of names
// declared here or imported, and type-ref rows for imported names used in
// type positions.
func (rx *relationExtractor) collectCallsAndTypeRefs(n *sitter.Node, enclosing string) {
	if n == nil {
		return
	}

	next := enclosing
	switch n.Type() {
	case "function_declaration", "generator_function_declaration", "method_definition":
		if name := childText(rx.pf, n, "name"); name != "" {
			next = name
		}
	case "variable_declarator":
		if v := n.ChildByFieldName("value"); v != nil {
			switch v.Type() {
			case "arrow_function", "function_expression", "function":
				if name := childText(rx.pf, n, "name"); name != "" {
					next = name
				}
			}
		}
	case "call_expression":
		rx.addCall(n, enclosing)
	case "type_identifier":
		rx.addTypeRef(n)
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		rx.collectCallsAndTypeRefs(n.Child(i), next)
	}
}

func (rx *relationExtractor) addCall(n *sitter.Node, enclosing string) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	line := int(n.StartPoint().Row) + 1

	var dstFile, dstName string
	switch fn.Type() {
	case "identifier":
		name := rx.pf.text(fn)
		if from, ok := rx.imported[name]; ok {
			dstFile, dstName = from, name
		} else if rx.declared[name] {
			dstFile, dstName = rx.pf.FilePath, name
		} else {
			return
		}
	case "member_expression":
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		if obj == nil || prop == nil || obj.Type() != "identifier" {
			return
		}
		from, ok := rx.imported[rx.pf.text(obj)]
		if !ok {
			return
		}
		dstFile, dstName = from, rx.pf.text(prop)
	default:
		return
	}

	key := "call\x00" + enclosing + "\x00" + dstFile + "\x00" + dstName
	if rx.seen[key] {
		return
	}
	rx.seen[key] = true
	rx.add(store.Relation{
		Type:          store.RelCalls,
		SrcSymbolName: enclosing,
		DstFilePath:   dstFile,
		DstSymbolName: dstName,
		Meta:          map[string]any{"line": line},
	})
}

func (rx *relationExtractor) addTypeRef(n *sitter.Node) {
	name := rx.pf.text(n)
	from, ok := rx.imported[name]
	if !ok {
		return
	}
	key := "typeref\x00" + from + "\x00" + name
	if rx.seen[key] {
		return
	}
	rx.seen[key] = true
	rx.add(store.Relation{
		Type:          store.RelTypeRef,
		DstFilePath:   from,
		DstSymbolName: name,
	})
}

// stringValue unquotes a string literal node.
func stringValue(pf *ParsedFile, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	text := pf.text(n)
	if len(text) >= 2 {
		switch text[0] {
		case '"', '\'', '`':
			return text[1 : len(text)-1]
		}
	}
	return text
}

// baseIdentifier trims a qualified name to its leading identifier
// (`ns.Base` yields `ns`).
func baseIdentifier(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}
