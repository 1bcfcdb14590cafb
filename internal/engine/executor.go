// internal/engine/executor.go
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	engerrors "menusync/internal/common/errors"
	"menusync/internal/common/logger"
	"menusync/internal/common/metrics"
	"menusync/internal/diff"
	"menusync/internal/models"
	"menusync/internal/store"
)

// Executor applies a target master menu version to a branch's local menu,
// merging incoming changes against the branch's override locks. Each run is
// atomic per branch: the whole apply happens in one transaction, and any
// storage failure rolls the branch back to its pre-sync state.
type Executor struct {
	db        *sql.DB
	versions  *store.VersionStore
	links     *store.LinkStore
	overrides *store.OverrideStore
	lock      *BranchLock
	timeout   time.Duration
	logger    logger.Logger
}

func NewExecutor(db *sql.DB, versions *store.VersionStore, links *store.LinkStore, overrides *store.OverrideStore, lock *BranchLock, timeout time.Duration, log logger.Logger) *Executor {
	return &Executor{
		db:        db,
		versions:  versions,
		links:     links,
		overrides: overrides,
		lock:      lock,
		timeout:   timeout,
		logger:    log,
	}
}

// Sync brings one branch up to targetVersion (nil means the master's current
// version). Re-running at the same target is a safe no-op with zero-change
// stats. Locked-field divergences are counted as conflicts, never failures.
func (e *Executor) Sync(ctx context.Context, branchSyncID string, targetVersion *int, triggeredBy string) (*models.SyncResult, error) {
	started := time.Now()

	link, err := e.links.Get(ctx, branchSyncID)
	if err != nil {
		return nil, err
	}
	master, err := e.versions.GetMasterMenu(ctx, link.MasterMenuID)
	if err != nil {
		return nil, err
	}

	target := master.CurrentVersion
	if targetVersion != nil {
		target = *targetVersion
	}
	if target < link.SyncedVersion || target > master.CurrentVersion {
		metrics.SyncsFailed.WithLabelValues(string(engerrors.ErrCodeInvalidTarget)).Inc()
		return nil, engerrors.NewInvalidTargetError(target, link.SyncedVersion, master.CurrentVersion)
	}

	release, err := e.lock.Acquire(ctx, branchSyncID)
	if err != nil {
		if engerrors.IsSyncInProgress(err) {
			metrics.SyncsFailed.WithLabelValues(string(engerrors.ErrCodeSyncInProgress)).Inc()
		}
		return nil, err
	}
	defer release()

	// Re-read under the lock: a racing sync may have advanced the branch
	// while we waited to acquire.
	link, err = e.links.Get(ctx, branchSyncID)
	if err != nil {
		return nil, err
	}
	if target == link.SyncedVersion {
		return &models.SyncResult{
			Success:      true,
			BranchSyncID: branchSyncID,
			FromVersion:  link.SyncedVersion,
			ToVersion:    target,
			NoOp:         true,
		}, nil
	}
	if target < link.SyncedVersion {
		metrics.SyncsFailed.WithLabelValues(string(engerrors.ErrCodeInvalidTarget)).Inc()
		return nil, engerrors.NewInvalidTargetError(target, link.SyncedVersion, master.CurrentVersion)
	}

	fromSnap := models.Snapshot{} // synced_version 0 means never synced
	if link.SyncedVersion > 0 {
		fromSnap, err = e.versions.GetSnapshot(ctx, link.MasterMenuID, link.SyncedVersion)
		if err != nil {
			return nil, err
		}
	}
	toSnap, err := e.versions.GetSnapshot(ctx, link.MasterMenuID, target)
	if err != nil {
		return nil, err
	}

	d := diff.Compute(fromSnap, toSnap)

	overrides, err := e.overrides.MapByItem(ctx, branchSyncID)
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	stats, err := e.applyTx(ctx, link, d, toSnap, overrides, target, triggeredBy)
	if err != nil {
		metrics.SyncsFailed.WithLabelValues(string(engerrors.ErrCodeSyncFailed)).Inc()
		return nil, engerrors.NewSyncFailedError(branchSyncID, err)
	}

	metrics.SyncsCompleted.WithLabelValues(triggeredBy).Inc()
	metrics.SyncDuration.Observe(time.Since(started).Seconds())
	if stats.Conflicts > 0 {
		metrics.SyncConflicts.Add(float64(stats.Conflicts))
	}

	e.logger.Info("branch sync completed", map[string]interface{}{
		"branchSyncId": branchSyncID,
		"fromVersion":  link.SyncedVersion,
		"toVersion":    target,
		"added":        stats.Added,
		"updated":      stats.Updated,
		"removed":      stats.Removed,
		"conflicts":    stats.Conflicts,
		"triggeredBy":  triggeredBy,
	})

	return &models.SyncResult{
		Success:      true,
		BranchSyncID: branchSyncID,
		FromVersion:  link.SyncedVersion,
		ToVersion:    target,
		Stats:        stats,
	}, nil
}

// applyTx performs the whole branch write in one transaction. Any error rolls
// everything back and leaves synced_version unchanged.
func (e *Executor) applyTx(ctx context.Context, link *models.BranchSyncLink, d diff.StructuralDiff, toSnap models.Snapshot, overrides map[string]*models.ItemOverride, target int, triggeredBy string) (models.SyncStats, error) {
	var stats models.SyncStats

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin sync tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	for _, it := range d.ItemsAdded {
		_, categoryID, _ := toSnap.ItemByID(it.ID)
		row := branchRowFromItem(link.ID, categoryID, it, now)
		// An override created before the item reached this branch still
		// applies its pinned values on insert; that is not a conflict.
		applyPinnedOverrides(&row, overrides[it.ID])
		_, err := tx.ExecContext(ctx, `
			INSERT INTO branch_menu_items (
				branch_sync_id, master_menu_item_id, category_id,
				name, price, description, image_url, is_available, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (branch_sync_id, master_menu_item_id) DO UPDATE SET
				category_id = EXCLUDED.category_id,
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				description = EXCLUDED.description,
				image_url = EXCLUDED.image_url,
				is_available = EXCLUDED.is_available,
				updated_at = EXCLUDED.updated_at`,
			row.BranchSyncID, row.MasterMenuItemID, row.CategoryID,
			row.Name, row.Price, row.Description, row.ImageURL, row.IsAvailable, row.UpdatedAt,
		)
		if err != nil {
			return stats, fmt.Errorf("insert branch item %s: %w", it.ID, err)
		}
		stats.Added++
	}

	for _, mod := range d.ItemsModified {
		applied, err := e.applyModification(ctx, tx, link, mod, overrides[mod.Item.ID], toSnap, now, &stats)
		if err != nil {
			return stats, err
		}
		if applied {
			stats.Updated++
		}
	}

	for _, it := range d.ItemsRemoved {
		// Removal always propagates: locks guard field modifications only.
		_, err := tx.ExecContext(ctx, `
			DELETE FROM branch_menu_items
			WHERE branch_sync_id = $1 AND master_menu_item_id = $2`, link.ID, it.ID)
		if err != nil {
			return stats, fmt.Errorf("delete branch item %s: %w", it.ID, err)
		}
		stats.Removed++
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE branch_sync_links
		SET synced_version = $1, last_synced_at = $2
		WHERE id = $3`, target, now, link.ID)
	if err != nil {
		return stats, fmt.Errorf("advance synced_version: %w", err)
	}

	rawStats, err := json.Marshal(stats)
	if err != nil {
		return stats, fmt.Errorf("marshal sync stats: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_logs (id, branch_sync_id, from_version, to_version, stats, triggered_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), link.ID, link.SyncedVersion, target, rawStats, triggeredBy, now,
	)
	if err != nil {
		return stats, fmt.Errorf("append sync log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit sync tx: %w", err)
	}
	return stats, nil
}

// applyModification merges one modified item's field deltas against the
// branch's locks, returning whether any field was actually written.
func (e *Executor) applyModification(ctx context.Context, tx *sql.Tx, link *models.BranchSyncLink, mod diff.ItemModification, override *models.ItemOverride, toSnap models.Snapshot, now time.Time, stats *models.SyncStats) (bool, error) {
	cur, exists, err := loadBranchRow(ctx, tx, link.ID, mod.Item.ID)
	if err != nil {
		return false, err
	}
	if !exists {
		// The branch never materialized this item (e.g. link created after
		// the item appeared); treat the incoming state as an add, pinned
		// values included, so locked-field conflicts report the branch's
		// kept value rather than echoing the incoming one.
		_, categoryID, _ := toSnap.ItemByID(mod.Item.ID)
		cur = branchRowFromItem(link.ID, categoryID, mod.Item, now)
		applyPinnedOverrides(&cur, override)
	}

	applied := false
	for _, ch := range mod.Changes {
		if override != nil && override.LocksField(ch.Field) {
			stats.Conflicts++
			stats.ConflictDetails = append(stats.ConflictDetails, models.ConflictDetail{
				ItemID:        mod.Item.ID,
				Field:         ch.Field,
				LockedValue:   lockedValue(cur, ch.Field),
				IncomingValue: ch.To,
			})
			continue
		}
		switch ch.Field {
		case diff.FieldName:
			cur.Name = mod.Item.Name
		case diff.FieldPrice:
			cur.Price = mod.Item.Price
		case diff.FieldDescription:
			cur.Description = mod.Item.Description
		case diff.FieldImageURL:
			cur.ImageURL = mod.Item.ImageURL
		case diff.FieldAvailable:
			cur.IsAvailable = mod.Item.IsAvailable
		}
		applied = true
	}
	if !applied && exists {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO branch_menu_items (
			branch_sync_id, master_menu_item_id, category_id,
			name, price, description, image_url, is_available, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (branch_sync_id, master_menu_item_id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			is_available = EXCLUDED.is_available,
			updated_at = EXCLUDED.updated_at`,
		cur.BranchSyncID, cur.MasterMenuItemID, cur.CategoryID,
		cur.Name, cur.Price, cur.Description, cur.ImageURL, cur.IsAvailable, now,
	)
	if err != nil {
		return false, fmt.Errorf("update branch item %s: %w", mod.Item.ID, err)
	}
	return applied, nil
}

// applyPinnedOverrides writes an override's pinned values onto a freshly
// materialized branch row.
func applyPinnedOverrides(row *models.BranchMenuItem, o *models.ItemOverride) {
	if o == nil {
		return
	}
	if o.PriceOverride != nil {
		row.Price = *o.PriceOverride
	}
	if o.AvailabilityOverride != nil {
		row.IsAvailable = *o.AvailabilityOverride
	}
}

func branchRowFromItem(branchSyncID, categoryID string, it models.MenuItem, now time.Time) models.BranchMenuItem {
	return models.BranchMenuItem{
		BranchSyncID:     branchSyncID,
		MasterMenuItemID: it.ID,
		CategoryID:       categoryID,
		Name:             it.Name,
		Price:            it.Price,
		Description:      it.Description,
		ImageURL:         it.ImageURL,
		IsAvailable:      it.IsAvailable,
		UpdatedAt:        now,
	}
}

func loadBranchRow(ctx context.Context, tx *sql.Tx, branchSyncID, itemID string) (models.BranchMenuItem, bool, error) {
	var row models.BranchMenuItem
	row.BranchSyncID = branchSyncID
	row.MasterMenuItemID = itemID
	var desc, imageURL sql.NullString
	err := tx.QueryRowContext(ctx, `
		SELECT category_id, name, price, description, image_url, is_available
		FROM branch_menu_items
		WHERE branch_sync_id = $1 AND master_menu_item_id = $2`, branchSyncID, itemID).Scan(
		&row.CategoryID, &row.Name, &row.Price, &desc, &imageURL, &row.IsAvailable,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return row, false, nil
	}
	if err != nil {
		return row, false, fmt.Errorf("load branch item %s: %w", itemID, err)
	}
	row.Description = desc.String
	row.ImageURL = imageURL.String
	return row, true, nil
}

// lockedValue reports the value the branch kept for a suppressed field.
func lockedValue(row models.BranchMenuItem, field string) interface{} {
	switch field {
	case diff.FieldName:
		return row.Name
	case diff.FieldPrice:
		return row.Price
	case diff.FieldDescription:
		return row.Description
	case diff.FieldImageURL:
		return row.ImageURL
	case diff.FieldAvailable:
		return row.IsAvailable
	}
	return nil
}
