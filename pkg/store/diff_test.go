// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "testing"

func TestDiffSymbolsIdentity(t *testing.T) {
	x := []Symbol{
		{Name: "a", FilePath: "src/a.ts", Fingerprint: "f1"},
		{Name: "b", FilePath: "src/a.ts", Fingerprint: "f2"},
	}
	diff := DiffSymbols(x, x)
	if len(diff.Added)+len(diff.Removed)+len(diff.Modified) != 0 {
		t.Errorf("diff of a list with itself must be empty, got %+v", diff)
	}
}

func TestDiffSymbolsPartitions(t *testing.T) {
	before := []Symbol{
		{Name: "kept", FilePath: "src/a.ts", Fingerprint: "same"},
		{Name: "changed", FilePath: "src/a.ts", Fingerprint: "old"},
		{Name: "dropped", FilePath: "src/a.ts", Fingerprint: "x"},
	}
	after := []Symbol{
		{Name: "kept", FilePath: "src/a.ts", Fingerprint: "same"},
		{Name: "changed", FilePath: "src/a.ts", Fingerprint: "new"},
		{Name: "fresh", FilePath: "src/a.ts", Fingerprint: "y"},
	}

	diff := DiffSymbols(before, after)
	if len(diff.Added) != 1 || diff.Added[0].Name != "fresh" {
		t.Errorf("added = %+v", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0].Name != "dropped" {
		t.Errorf("removed = %+v", diff.Removed)
	}
	if len(diff.Modified) != 1 || diff.Modified[0].Name != "changed" {
		t.Errorf("modified = %+v", diff.Modified)
	}
}

func TestDiffSymbolsKeyIncludesFilePath(t *testing.T) {
	before := []Symbol{{Name: "x", FilePath: "src/a.ts", Fingerprint: "f"}}
	after := []Symbol{{Name: "x", FilePath: "src/b.ts", Fingerprint: "f"}}

	diff := DiffSymbols(before, after)
	if len(diff.Added) != 1 || len(diff.Removed) != 1 {
		t.Errorf("same name in a different file is an add plus a remove, got %+v", diff)
	}
}

func TestDiffSymbolsEmptyFingerprintsCompareEqual(t *testing.T) {
	before := []Symbol{{Name: "x", FilePath: "src/a.ts"}}
	after := []Symbol{{Name: "x", FilePath: "src/a.ts"}}

	diff := DiffSymbols(before, after)
	if len(diff.Modified) != 0 {
		t.Error("two empty fingerprints must not read as modified")
	}
}
