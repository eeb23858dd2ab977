// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FileRepo reads and writes FileRecord rows.
type FileRepo struct {
	db dbtx
}

// Upsert creates or refreshes the record for (project, file_path).
func (r *FileRepo) Upsert(ctx context.Context, rec FileRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO files (project, file_path, mtime_ms, byte_size, content_hash, line_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project, file_path) DO UPDATE SET
			mtime_ms = excluded.mtime_ms,
			byte_size = excluded.byte_size,
			content_hash = excluded.content_hash,
			line_count = excluded.line_count,
			updated_at = excluded.updated_at
	`, rec.Project, rec.FilePath, rec.MtimeMS, rec.ByteSize, rec.ContentHash, rec.LineCount, rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}
	return nil
}

// Get returns one record, or nil when the file is not tracked.
func (r *FileRepo) Get(ctx context.Context, project, filePath string) (*FileRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT project, file_path, mtime_ms, byte_size, content_hash, line_count, updated_at
		FROM files WHERE project = ? AND file_path = ?
	`, project, filePath)
	rec, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return rec, nil
}

// GetAll returns every tracked record for a project, ordered by path.
func (r *FileRepo) GetAll(ctx context.Context, project string) ([]FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT project, file_path, mtime_ms, byte_size, content_hash, line_count, updated_at
		FROM files WHERE project = ? ORDER BY file_path
	`, project)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetMap returns path -> record for a project.
func (r *FileRepo) GetMap(ctx context.Context, project string) (map[string]FileRecord, error) {
	all, err := r.GetAll(ctx, project)
	if err != nil {
		return nil, err
	}
	m := make(map[string]FileRecord, len(all))
	for _, rec := range all {
		m[rec.FilePath] = rec
	}
	return m, nil
}

// Delete removes the record for (project, file_path).
func (r *FileRepo) Delete(ctx context.Context, project, filePath string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM files WHERE project = ? AND file_path = ?`, project, filePath); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Projects returns the distinct project names present in the store.
func (r *FileRepo) Projects(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT project FROM files ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*FileRecord, error) {
	var rec FileRecord
	var updatedAt string
	if err := row.Scan(&rec.Project, &rec.FilePath, &rec.MtimeMS, &rec.ByteSize,
		&rec.ContentHash, &rec.LineCount, &updatedAt); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}
