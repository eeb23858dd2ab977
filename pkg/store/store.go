// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists the Gildash index in a single SQLite database.
//
// The database lives as three sibling files under the project metadata
// directory: the main file plus the WAL and shared-memory sidecars. All
// write transactions are immediate (the write lock is taken up front), so
// the owner-role handshake never deadlocks against a concurrent reader
// upgrading mid-transaction.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the SQLite database and hands out the four repositories.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	files     *FileRepo
	symbols   *SymbolRepo
	relations *RelationRepo
	owner     *OwnerRepo
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	// file: URI form handles spaces in paths; _txlock=immediate makes
	// every BeginTx take the write lock up front.
	escaped := strings.ReplaceAll(path, " ", "%20")
	dsn := "file:" + escaped + "?_time_format=sqlite&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger}
	s.files = &FileRepo{db: db}
	s.symbols = &SymbolRepo{db: db}
	s.relations = &RelationRepo{db: db}
	s.owner = &OwnerRepo{db: db}

	logger.Debug("store.open", "path", path)
	return s, nil
}

// Path returns the main database file path.
func (s *Store) Path() string {
	return s.path
}

// Files returns the file repository bound to the shared connection.
func (s *Store) Files() *FileRepo { return s.files }

// Symbols returns the symbol repository.
func (s *Store) Symbols() *SymbolRepo { return s.symbols }

// Relations returns the relation repository.
func (s *Store) Relations() *RelationRepo { return s.relations }

// Owner returns the owner-row repository.
func (s *Store) Owner() *OwnerRepo { return s.owner }

// Tx exposes the repositories bound to one immediate transaction.
type Tx struct {
	Files     *FileRepo
	Symbols   *SymbolRepo
	Relations *RelationRepo
	Owner     *OwnerRepo
}

// WithTx runs fn inside an immediate transaction, committing on nil and
// rolling back on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	wrapped := &Tx{
		Files:     &FileRepo{db: tx},
		Symbols:   &SymbolRepo{db: tx},
		Relations: &RelationRepo{db: tx},
		Owner:     &OwnerRepo{db: tx},
	}
	if err := fn(wrapped); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// RemoveFiles unlinks the database and its WAL/SHM sidecars. Called after
// Close when the caller asked for cleanup.
func RemoveFiles(path string) error {
	var firstErr error
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", filepath.Base(p), err)
			}
		}
	}
	return firstErr
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so repositories work
// inside and outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
