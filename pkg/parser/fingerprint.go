// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/kraklabs/gildash/pkg/store"
)

// Fingerprint digests the shape-relevant fields of a declaration.
// Positions are excluded: a declaration that merely moves keeps its
// fingerprint, while any change to name, kind, signature, export status,
// members or heritage produces a new one.
func Fingerprint(sym store.Symbol) string {
	h := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}
	write(sym.Name, sym.Kind, sym.Signature, fmt.Sprintf("%t", sym.IsExported))

	if sym.Detail != nil {
		write(detailShape(sym.Detail, "members")...)
		write(detailShape(sym.Detail, "heritage")...)
		if rt, ok := sym.Detail["return_type"].(string); ok {
			write("ret:" + rt)
		}
		if params, ok := sym.Detail["parameters"].([]string); ok {
			write("params:" + strings.Join(params, ","))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// detailShape flattens a []map entry (members, heritage) into sorted
// name=kind strings so map iteration order never leaks into the digest.
func detailShape(detail map[string]any, key string) []string {
	raw, ok := detail[key]
	if !ok {
		return nil
	}
	entries, ok := raw.([]map[string]any)
	if !ok {
		return nil
	}
	var parts []string
	for _, e := range entries {
		var kv []string
		for k, v := range e {
			kv = append(kv, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(kv)
		parts = append(parts, key+":"+strings.Join(kv, ";"))
	}
	sort.Strings(parts)
	return parts
}
