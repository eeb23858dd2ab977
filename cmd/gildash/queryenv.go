// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/kraklabs/gildash/internal/ui"
	"github.com/kraklabs/gildash/pkg/gildash"
	"github.com/kraklabs/gildash/pkg/store"
)

// queryEnv is the read-only environment the query commands share: the
// store opened directly, without acquiring a role or reindexing.
type queryEnv struct {
	st      *store.Store
	project string
	root    string
}

func (e *queryEnv) close() {
	_ = e.st.Close()
}

// openQueryEnv opens the existing index for reading. Fails when no
// index has been built yet.
func openQueryEnv(globals GlobalFlags) (*queryEnv, bool) {
	root, err := projectRoot()
	if err != nil {
		ui.Error("%v", err)
		return nil, false
	}
	storePath := filepath.Join(root, gildash.MetaDirName, gildash.StoreFileName)
	if _, err := os.Stat(storePath); err != nil {
		ui.Error("no index found at %s (run `gildash index` first)", storePath)
		return nil, false
	}
	st, err := store.Open(storePath, newLogger(globals))
	if err != nil {
		ui.Error("open store: %v", err)
		return nil, false
	}

	project := filepath.Base(root)
	if projects, err := st.Files().Projects(context.Background()); err == nil && len(projects) > 0 {
		project = projects[0]
	}
	return &queryEnv{st: st, project: project, root: root}, true
}
