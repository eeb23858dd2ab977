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

// RelationRepo reads and writes relation rows.
type RelationRepo struct {
	db dbtx
}

// ReplaceFileRelations swaps the relation rows whose source is one file.
// Call inside Store.WithTx so the delete and the inserts commit together.
func (r *RelationRepo) ReplaceFileRelations(ctx context.Context, project, filePath string, relations []Relation) error {
	if err := r.DeleteFileRelations(ctx, project, filePath); err != nil {
		return err
	}
	for _, rel := range relations {
		meta, err := json.Marshal(rel.Meta)
		if err != nil {
			return fmt.Errorf("marshal relation meta: %w", err)
		}
		if rel.Meta == nil {
			meta = []byte("{}")
		}
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO relations (project, type, src_file_path, src_symbol_name,
				dst_file_path, dst_symbol_name, meta)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, project, string(rel.Type), filePath, rel.SrcSymbolName,
			rel.DstFilePath, rel.DstSymbolName, string(meta))
		if err != nil {
			return fmt.Errorf("insert relation: %w", err)
		}
	}
	return nil
}

// GetOutgoing returns relations whose source is the given file.
func (r *RelationRepo) GetOutgoing(ctx context.Context, project, filePath string) ([]Relation, error) {
	return r.query(ctx, `
		SELECT project, type, src_file_path, src_symbol_name, dst_file_path, dst_symbol_name, meta
		FROM relations WHERE project = ? AND src_file_path = ?
		ORDER BY id
	`, project, filePath)
}

// GetIncoming returns relations whose destination is the given file.
func (r *RelationRepo) GetIncoming(ctx context.Context, project, filePath string) ([]Relation, error) {
	return r.query(ctx, `
		SELECT project, type, src_file_path, src_symbol_name, dst_file_path, dst_symbol_name, meta
		FROM relations WHERE project = ? AND dst_file_path = ?
		ORDER BY id
	`, project, filePath)
}

// GetByType returns every relation of one type in a project.
func (r *RelationRepo) GetByType(ctx context.Context, project string, typ RelationType) ([]Relation, error) {
	return r.query(ctx, `
		SELECT project, type, src_file_path, src_symbol_name, dst_file_path, dst_symbol_name, meta
		FROM relations WHERE project = ? AND type = ?
		ORDER BY id
	`, project, string(typ))
}

// DeleteFileRelations drops every relation row sourced from one file.
func (r *RelationRepo) DeleteFileRelations(ctx context.Context, project, filePath string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM relations WHERE project = ? AND src_file_path = ?`, project, filePath); err != nil {
		return fmt.Errorf("delete file relations: %w", err)
	}
	return nil
}

// RetargetRelations rewrites destination paths after a file move so
// inbound edges keep pointing at the declaration's new home.
func (r *RelationRepo) RetargetRelations(ctx context.Context, project, oldPath, newPath string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE relations SET dst_file_path = ? WHERE project = ? AND dst_file_path = ?
	`, newPath, project, oldPath)
	if err != nil {
		return 0, fmt.Errorf("retarget relations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Count returns the number of relation rows in a project.
func (r *RelationRepo) Count(ctx context.Context, project string) (int, error) {
	var n int
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relations WHERE project = ?`, project)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count relations: %w", err)
	}
	return n, nil
}

// Search runs a filtered relation query.
func (r *RelationRepo) Search(ctx context.Context, q RelationQuery) ([]Relation, error) {
	var conds []string
	var args []any

	if q.Project != "" {
		conds = append(conds, "project = ?")
		args = append(args, q.Project)
	}
	if q.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(q.Type))
	}
	if q.SrcFilePath != "" {
		conds = append(conds, "src_file_path = ?")
		args = append(args, q.SrcFilePath)
	}
	if q.DstFilePath != "" {
		conds = append(conds, "dst_file_path = ?")
		args = append(args, q.DstFilePath)
	}
	if q.SrcSymbolName != "" {
		conds = append(conds, "src_symbol_name = ?")
		args = append(args, q.SrcSymbolName)
	}
	if q.DstSymbolName != "" {
		conds = append(conds, "dst_symbol_name = ?")
		args = append(args, q.DstSymbolName)
	}

	sqlq := `SELECT project, type, src_file_path, src_symbol_name, dst_file_path, dst_symbol_name, meta FROM relations`
	if len(conds) > 0 {
		sqlq += " WHERE " + strings.Join(conds, " AND ")
	}
	sqlq += " ORDER BY id"
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	sqlq += fmt.Sprintf(" LIMIT %d", limit)

	return r.query(ctx, sqlq, args...)
}

func (r *RelationRepo) query(ctx context.Context, sqlq string, args ...any) ([]Relation, error) {
	rows, err := r.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var rel Relation
		var typ, meta string
		if err := rows.Scan(&rel.Project, &typ, &rel.SrcFilePath, &rel.SrcSymbolName,
			&rel.DstFilePath, &rel.DstSymbolName, &meta); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		rel.Type = RelationType(typ)
		if meta != "" && meta != "{}" {
			_ = json.Unmarshal([]byte(meta), &rel.Meta)
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}
