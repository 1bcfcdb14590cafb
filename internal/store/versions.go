// internal/store/versions.go
// Package store is the Postgres persistence layer for the sync engine.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	engerrors "menusync/internal/common/errors"
	"menusync/internal/common/logger"
	"menusync/internal/common/validation"
	"menusync/internal/models"
)

// DefaultPageSize caps listings when the caller does not pass a limit.
const DefaultPageSize = 50

// VersionStore is the append-only log of menu snapshots per master menu.
type VersionStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewVersionStore(db *sql.DB, log logger.Logger) *VersionStore {
	return &VersionStore{db: db, logger: log}
}

// GetMasterMenu loads a master menu row.
func (s *VersionStore) GetMasterMenu(ctx context.Context, id string) (*models.MasterMenu, error) {
	var m models.MasterMenu
	err := s.db.QueryRowContext(ctx, `
		SELECT id, franchise_id, name, currency, current_version, is_default, created_at, updated_at
		FROM master_menus
		WHERE id = $1`, id).Scan(
		&m.ID, &m.FranchiseID, &m.Name, &m.Currency, &m.CurrentVersion, &m.IsDefault, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engerrors.NewNotFoundError("master menu", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load master menu: %w", err)
	}
	return &m, nil
}

// CreateVersion atomically assigns the next version number and persists the
// snapshot. The conditional UPDATE ... RETURNING takes a row lock on the
// master menu, so concurrent edits to the same menu serialize and the
// version sequence stays contiguous.
func (s *VersionStore) CreateVersion(ctx context.Context, masterMenuID string, changeType models.ChangeType, summary string, snap models.Snapshot) (*models.MenuVersion, error) {
	if !models.ValidChangeType(changeType) {
		return nil, engerrors.NewValidationError(fmt.Sprintf("unknown change type %q", changeType))
	}
	if err := validation.ValidateSnapshot(snap); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := validation.ValidateSnapshotJSON(raw); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin version tx: %w", err)
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx, `
		UPDATE master_menus
		SET current_version = current_version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING current_version`, masterMenuID).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engerrors.NewNotFoundError("master menu", masterMenuID)
	}
	if err != nil {
		return nil, fmt.Errorf("bump current_version: %w", err)
	}

	createdAt := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO menu_versions (master_menu_id, version_number, change_type, change_summary, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		masterMenuID, next, string(changeType), summary, raw, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert menu version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit version tx: %w", err)
	}

	s.logger.Info("menu version created", map[string]interface{}{
		"masterMenuId":  masterMenuID,
		"versionNumber": next,
		"changeType":    changeType,
	})

	return &models.MenuVersion{
		MasterMenuID:  masterMenuID,
		VersionNumber: next,
		ChangeType:    changeType,
		ChangeSummary: summary,
		Snapshot:      snap,
		CreatedAt:     createdAt,
	}, nil
}

// GetSnapshot loads the snapshot tree of one version.
func (s *VersionStore) GetSnapshot(ctx context.Context, masterMenuID string, version int) (models.Snapshot, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot FROM menu_versions
		WHERE master_menu_id = $1 AND version_number = $2`, masterMenuID, version).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, engerrors.NewNotFoundError("menu version", fmt.Sprintf("%s/v%d", masterMenuID, version))
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("unmarshal snapshot %s/v%d: %w", masterMenuID, version, err)
	}
	return snap, nil
}

// ListVersions returns version metadata, newest first.
func (s *VersionStore) ListVersions(ctx context.Context, masterMenuID string, limit, offset int) ([]models.VersionMeta, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT version_number, change_type, change_summary, created_at
		FROM menu_versions
		WHERE master_menu_id = $1
		ORDER BY version_number DESC
		LIMIT $2 OFFSET $3`, masterMenuID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []models.VersionMeta
	for rows.Next() {
		var v models.VersionMeta
		var changeType string
		if err := rows.Scan(&v.VersionNumber, &changeType, &v.ChangeSummary, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version row: %w", err)
		}
		v.ChangeType = models.ChangeType(changeType)
		out = append(out, v)
	}
	return out, rows.Err()
}
