// internal/store/overrides.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	engerrors "menusync/internal/common/errors"
	"menusync/internal/common/logger"
	"menusync/internal/models"
)

// OverrideStore manages per-branch, per-item overrides and lock flags.
// Overrides are created and removed only by explicit branch-staff calls;
// the sync engine never creates one on its own.
type OverrideStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewOverrideStore(db *sql.DB, log logger.Logger) *OverrideStore {
	return &OverrideStore{db: db, logger: log}
}

// OverrideParams carries the writable fields of an override upsert.
type OverrideParams struct {
	PriceOverride        *float64
	AvailabilityOverride *bool
	PriceLocked          bool
	AvailabilityLocked   bool
	FullyLocked          bool
	OverrideReason       string
}

// Set upserts the override for (branchSyncID, itemID). fully_locked
// supersedes field-level locks, so requesting both in one call is rejected.
func (s *OverrideStore) Set(ctx context.Context, branchSyncID, itemID string, p OverrideParams) (*models.ItemOverride, error) {
	if p.FullyLocked && (p.PriceLocked || p.AvailabilityLocked) {
		return nil, engerrors.NewValidationError("fully_locked supersedes field-level locks; do not combine them in one request")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	var (
		outID     string
		createdAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO item_overrides (
			id, branch_sync_id, master_menu_item_id,
			price_override, availability_override,
			price_locked, availability_locked, fully_locked,
			override_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (branch_sync_id, master_menu_item_id) DO UPDATE SET
			price_override = EXCLUDED.price_override,
			availability_override = EXCLUDED.availability_override,
			price_locked = EXCLUDED.price_locked,
			availability_locked = EXCLUDED.availability_locked,
			fully_locked = EXCLUDED.fully_locked,
			override_reason = EXCLUDED.override_reason,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		id, branchSyncID, itemID,
		p.PriceOverride, p.AvailabilityOverride,
		p.PriceLocked, p.AvailabilityLocked, p.FullyLocked,
		p.OverrideReason, now,
	).Scan(&outID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("upsert item override: %w", err)
	}

	s.logger.Info("item override set", map[string]interface{}{
		"branchSyncId":     branchSyncID,
		"masterMenuItemId": itemID,
		"fullyLocked":      p.FullyLocked,
	})

	return &models.ItemOverride{
		ID:                   outID,
		BranchSyncID:         branchSyncID,
		MasterMenuItemID:     itemID,
		PriceOverride:        p.PriceOverride,
		AvailabilityOverride: p.AvailabilityOverride,
		PriceLocked:          p.PriceLocked,
		AvailabilityLocked:   p.AvailabilityLocked,
		FullyLocked:          p.FullyLocked,
		OverrideReason:       p.OverrideReason,
		CreatedAt:            createdAt,
		UpdatedAt:            now,
	}, nil
}

// Remove deletes the override row; subsequent syncs apply master values
// unmodified.
func (s *OverrideStore) Remove(ctx context.Context, branchSyncID, itemID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM item_overrides
		WHERE branch_sync_id = $1 AND master_menu_item_id = $2`, branchSyncID, itemID)
	if err != nil {
		return fmt.Errorf("delete item override: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item override: %w", err)
	}
	if affected == 0 {
		return engerrors.NewNotFoundError("item override", fmt.Sprintf("%s/%s", branchSyncID, itemID))
	}
	return nil
}

// List returns every override on a branch sync link.
func (s *OverrideStore) List(ctx context.Context, branchSyncID string) ([]models.ItemOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_sync_id, master_menu_item_id,
			price_override, availability_override,
			price_locked, availability_locked, fully_locked,
			override_reason, created_at, updated_at
		FROM item_overrides
		WHERE branch_sync_id = $1
		ORDER BY master_menu_item_id`, branchSyncID)
	if err != nil {
		return nil, fmt.Errorf("list item overrides: %w", err)
	}
	defer rows.Close()

	var out []models.ItemOverride
	for rows.Next() {
		var o models.ItemOverride
		var price sql.NullFloat64
		var avail sql.NullBool
		var reason sql.NullString
		err := rows.Scan(
			&o.ID, &o.BranchSyncID, &o.MasterMenuItemID,
			&price, &avail,
			&o.PriceLocked, &o.AvailabilityLocked, &o.FullyLocked,
			&reason, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan item override: %w", err)
		}
		if price.Valid {
			v := price.Float64
			o.PriceOverride = &v
		}
		if avail.Valid {
			v := avail.Bool
			o.AvailabilityOverride = &v
		}
		if reason.Valid {
			o.OverrideReason = reason.String
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MapByItem returns the branch's overrides keyed by master menu item id.
func (s *OverrideStore) MapByItem(ctx context.Context, branchSyncID string) (map[string]*models.ItemOverride, error) {
	list, err := s.List(ctx, branchSyncID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.ItemOverride, len(list))
	for i := range list {
		out[list[i].MasterMenuItemID] = &list[i]
	}
	return out, nil
}
