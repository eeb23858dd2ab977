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

// OwnerRepo manages the single heartbeat row that binds the writer role.
// Acquisition must run inside Store.WithTx: the immediate transaction
// serializes competing instances so exactly one wins.
type OwnerRepo struct {
	db dbtx
}

// Select returns the owner row, or nil when no owner is registered.
func (r *OwnerRepo) Select(ctx context.Context) (*OwnerRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT pid, heartbeat_at FROM owner WHERE id = 1`)
	var pid int
	var hb int64
	if err := row.Scan(&pid, &hb); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("select owner: %w", err)
	}
	return &OwnerRecord{PID: pid, HeartbeatAt: time.UnixMilli(hb)}, nil
}

// Insert registers pid as owner. Fails if an owner row already exists.
func (r *OwnerRepo) Insert(ctx context.Context, pid int, at time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO owner (id, pid, heartbeat_at) VALUES (1, ?, ?)`,
		pid, at.UnixMilli()); err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	return nil
}

// Replace takes over the row from a stale owner.
func (r *OwnerRepo) Replace(ctx context.Context, pid int, at time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO owner (id, pid, heartbeat_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET pid = excluded.pid, heartbeat_at = excluded.heartbeat_at`,
		pid, at.UnixMilli()); err != nil {
		return fmt.Errorf("replace owner: %w", err)
	}
	return nil
}

// Touch refreshes the heartbeat for pid. A row held by another pid is
// left alone so a replaced owner cannot keep itself alive.
func (r *OwnerRepo) Touch(ctx context.Context, pid int, at time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE owner SET heartbeat_at = ? WHERE id = 1 AND pid = ?`,
		at.UnixMilli(), pid); err != nil {
		return fmt.Errorf("touch owner: %w", err)
	}
	return nil
}

// Delete releases the row held by pid. Deleting a row owned by a
// different pid is a no-op.
func (r *OwnerRepo) Delete(ctx context.Context, pid int) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM owner WHERE id = 1 AND pid = ?`, pid); err != nil {
		return fmt.Errorf("delete owner: %w", err)
	}
	return nil
}
