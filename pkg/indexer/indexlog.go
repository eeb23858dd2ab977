// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var indexLogMu sync.Mutex

// AppendIndexLog appends one line to <metaDir>/index.log for indexing
// diagnostics. Format: RFC3339 timestamp + " " + message, so runs are
// greppable by file name. Failures are silent; the log is best-effort.
func AppendIndexLog(metaDir, message string) {
	if metaDir == "" {
		return
	}
	indexLogMu.Lock()
	defer indexLogMu.Unlock()
	if err := os.MkdirAll(metaDir, 0750); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(metaDir, "index.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "%s %s\n", time.Now().Format(time.RFC3339), message)
	_ = f.Close()
}
