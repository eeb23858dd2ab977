// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SymbolRepo reads and writes symbol rows. Rows are replaced per file:
// every successful index step deletes the file's rows and inserts the
// freshly extracted set inside one transaction.
type SymbolRepo struct {
	db dbtx
}

// ReplaceFileSymbols swaps the symbol rows of one file for the given set.
// Call inside Store.WithTx so the delete and the inserts commit together.
func (r *SymbolRepo) ReplaceFileSymbols(ctx context.Context, project, filePath string, symbols []Symbol) error {
	if err := r.DeleteFileSymbols(ctx, project, filePath); err != nil {
		return err
	}
	for _, sym := range symbols {
		detail, err := json.Marshal(sym.Detail)
		if err != nil {
			return fmt.Errorf("marshal symbol detail: %w", err)
		}
		if sym.Detail == nil {
			detail = []byte("{}")
		}
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO symbols (project, file_path, name, kind,
				start_line, start_col, end_line, end_col,
				is_exported, signature, fingerprint, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, project, filePath, sym.Name, sym.Kind,
			sym.Span.StartLine, sym.Span.StartCol, sym.Span.EndLine, sym.Span.EndCol,
			boolToInt(sym.IsExported), sym.Signature, sym.Fingerprint, string(detail))
		if err != nil {
			return fmt.Errorf("insert symbol %s: %w", sym.Name, err)
		}
	}
	return nil
}

// GetFileSymbols returns every symbol of one file, in declaration order.
func (r *SymbolRepo) GetFileSymbols(ctx context.Context, project, filePath string) ([]Symbol, error) {
	return r.query(ctx, `
		SELECT project, file_path, name, kind, start_line, start_col, end_line, end_col,
			is_exported, signature, fingerprint, detail
		FROM symbols WHERE project = ? AND file_path = ?
		ORDER BY start_line, start_col
	`, project, filePath)
}

// GetByFingerprint returns symbols sharing a shape fingerprint.
func (r *SymbolRepo) GetByFingerprint(ctx context.Context, project, fingerprint string) ([]Symbol, error) {
	return r.query(ctx, `
		SELECT project, file_path, name, kind, start_line, start_col, end_line, end_col,
			is_exported, signature, fingerprint, detail
		FROM symbols WHERE project = ? AND fingerprint = ?
		ORDER BY file_path, start_line
	`, project, fingerprint)
}

// DeleteFileSymbols drops every symbol row of one file.
func (r *SymbolRepo) DeleteFileSymbols(ctx context.Context, project, filePath string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM symbols WHERE project = ? AND file_path = ?`, project, filePath); err != nil {
		return fmt.Errorf("delete file symbols: %w", err)
	}
	return nil
}

// Search runs a filtered symbol query.
func (r *SymbolRepo) Search(ctx context.Context, q SymbolQuery) ([]Symbol, error) {
	var conds []string
	var args []any

	if q.Project != "" {
		conds = append(conds, "project = ?")
		args = append(args, q.Project)
	}
	if q.Text != "" {
		if q.Exact {
			conds = append(conds, "name = ?")
			args = append(args, q.Text)
		} else {
			conds = append(conds, "name LIKE ?")
			args = append(args, "%"+q.Text+"%")
		}
	}
	if q.FilePath != "" {
		conds = append(conds, "file_path = ?")
		args = append(args, q.FilePath)
	}
	if q.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, q.Kind)
	}
	if q.IsExported != nil {
		conds = append(conds, "is_exported = ?")
		args = append(args, boolToInt(*q.IsExported))
	}

	sqlq := `SELECT project, file_path, name, kind, start_line, start_col, end_line, end_col,
		is_exported, signature, fingerprint, detail FROM symbols`
	if len(conds) > 0 {
		sqlq += " WHERE " + strings.Join(conds, " AND ")
	}
	sqlq += " ORDER BY file_path, start_line"
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	sqlq += fmt.Sprintf(" LIMIT %d", limit)

	return r.query(ctx, sqlq, args...)
}

// GetStats returns the file and symbol counts for a project.
func (r *SymbolRepo) GetStats(ctx context.Context, project string) (*Stats, error) {
	var st Stats
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE project = ?`, project)
	if err := row.Scan(&st.FileCount); err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	row = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM symbols WHERE project = ?`, project)
	if err := row.Scan(&st.SymbolCount); err != nil {
		return nil, fmt.Errorf("count symbols: %w", err)
	}
	return &st, nil
}

func (r *SymbolRepo) query(ctx context.Context, sqlq string, args ...any) ([]Symbol, error) {
	rows, err := r.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var sym Symbol
		var exported int
		var detail string
		if err := rows.Scan(&sym.Project, &sym.FilePath, &sym.Name, &sym.Kind,
			&sym.Span.StartLine, &sym.Span.StartCol, &sym.Span.EndLine, &sym.Span.EndCol,
			&exported, &sym.Signature, &sym.Fingerprint, &detail); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		sym.IsExported = exported != 0
		if detail != "" && detail != "{}" {
			_ = json.Unmarshal([]byte(detail), &sym.Detail)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
