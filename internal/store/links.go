// internal/store/links.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	engerrors "menusync/internal/common/errors"
	"menusync/internal/common/logger"
	"menusync/internal/models"
)

// LinkStore manages branch sync links: the per-(branch, master menu) records
// tracking which version a branch has applied.
type LinkStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewLinkStore(db *sql.DB, log logger.Logger) *LinkStore {
	return &LinkStore{db: db, logger: log}
}

const linkColumns = `
	l.id, l.location_id, l.menu_id, l.master_menu_id,
	l.synced_version, l.sync_mode, l.last_synced_at, l.created_at,
	m.current_version`

func scanLink(row interface{ Scan(...interface{}) error }) (*models.BranchSyncLink, error) {
	var l models.BranchSyncLink
	var mode string
	var lastSynced sql.NullTime
	var currentVersion int
	err := row.Scan(
		&l.ID, &l.LocationID, &l.MenuID, &l.MasterMenuID,
		&l.SyncedVersion, &mode, &lastSynced, &l.CreatedAt,
		&currentVersion,
	)
	if err != nil {
		return nil, err
	}
	l.SyncMode = models.SyncMode(mode)
	if lastSynced.Valid {
		t := lastSynced.Time
		l.LastSyncedAt = &t
	}
	l.PendingVersions = currentVersion - l.SyncedVersion
	if l.PendingVersions < 0 {
		l.PendingVersions = 0
	}
	return &l, nil
}

// Initialize creates the sync link for (location, master menu). There is no
// implicit creation anywhere else; a second call for the same pair fails
// with AlreadyLinked.
func (s *LinkStore) Initialize(ctx context.Context, locationID, menuID, masterMenuID string, mode models.SyncMode) (*models.BranchSyncLink, error) {
	if mode == "" {
		mode = models.SyncModeManual
	}
	if !models.ValidSyncMode(mode) {
		return nil, engerrors.NewValidationError(fmt.Sprintf("unknown sync mode %q", mode))
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx,
		`SELECT current_version FROM master_menus WHERE id = $1`, masterMenuID).Scan(&currentVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engerrors.NewNotFoundError("master menu", masterMenuID)
	}
	if err != nil {
		return nil, fmt.Errorf("load master menu version: %w", err)
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM branch_sync_links
			WHERE location_id = $1 AND master_menu_id = $2
		)`, locationID, masterMenuID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("duplicate link check: %w", err)
	}
	if exists {
		return nil, engerrors.NewAlreadyLinkedError(locationID, masterMenuID)
	}

	id := uuid.New().String()
	createdAt := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO branch_sync_links (id, location_id, menu_id, master_menu_id, synced_version, sync_mode, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)`,
		id, locationID, menuID, masterMenuID, string(mode), createdAt,
	)
	if err != nil {
		// The pre-check races with concurrent initializes; the unique
		// constraint on (location_id, master_menu_id) is the arbiter.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, engerrors.NewAlreadyLinkedError(locationID, masterMenuID)
		}
		return nil, fmt.Errorf("insert branch sync link: %w", err)
	}

	s.logger.Info("branch sync link initialized", map[string]interface{}{
		"branchSyncId": id,
		"locationId":   locationID,
		"masterMenuId": masterMenuID,
		"syncMode":     mode,
	})

	return &models.BranchSyncLink{
		ID:              id,
		LocationID:      locationID,
		MenuID:          menuID,
		MasterMenuID:    masterMenuID,
		SyncedVersion:   0,
		SyncMode:        mode,
		CreatedAt:       createdAt,
		PendingVersions: currentVersion,
	}, nil
}

// Get loads a link by id with its derived pending-version count.
func (s *LinkStore) Get(ctx context.Context, id string) (*models.BranchSyncLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+linkColumns+`
		FROM branch_sync_links l
		JOIN master_menus m ON m.id = l.master_menu_id
		WHERE l.id = $1`, id)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engerrors.NewNotFoundError("branch sync link", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load branch sync link: %w", err)
	}
	return link, nil
}

// GetByLocationAndMaster resolves the link for a (location, master menu) pair.
func (s *LinkStore) GetByLocationAndMaster(ctx context.Context, locationID, masterMenuID string) (*models.BranchSyncLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+linkColumns+`
		FROM branch_sync_links l
		JOIN master_menus m ON m.id = l.master_menu_id
		WHERE l.location_id = $1 AND l.master_menu_id = $2`, locationID, masterMenuID)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engerrors.NewNotFoundError("branch sync link", fmt.Sprintf("%s/%s", locationID, masterMenuID))
	}
	if err != nil {
		return nil, fmt.Errorf("load branch sync link: %w", err)
	}
	return link, nil
}

// ListSyncableByMaster returns every link on a master menu whose sync mode
// is not disabled, for bulk fan-out.
func (s *LinkStore) ListSyncableByMaster(ctx context.Context, masterMenuID string) ([]models.BranchSyncLink, error) {
	return s.listByMaster(ctx, masterMenuID, `l.sync_mode <> 'disabled'`)
}

// ListAutoByMaster returns the links that auto-apply new versions.
func (s *LinkStore) ListAutoByMaster(ctx context.Context, masterMenuID string) ([]models.BranchSyncLink, error) {
	return s.listByMaster(ctx, masterMenuID, `l.sync_mode = 'auto'`)
}

func (s *LinkStore) listByMaster(ctx context.Context, masterMenuID, modeFilter string) ([]models.BranchSyncLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+linkColumns+`
		FROM branch_sync_links l
		JOIN master_menus m ON m.id = l.master_menu_id
		WHERE l.master_menu_id = $1 AND `+modeFilter+`
		ORDER BY l.created_at`, masterMenuID)
	if err != nil {
		return nil, fmt.Errorf("list branch sync links: %w", err)
	}
	defer rows.Close()

	var out []models.BranchSyncLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan branch sync link: %w", err)
		}
		out = append(out, *link)
	}
	return out, rows.Err()
}

// SetMode transitions a link's sync mode. Any mode can move to any other.
func (s *LinkStore) SetMode(ctx context.Context, id string, mode models.SyncMode) error {
	if !models.ValidSyncMode(mode) {
		return engerrors.NewValidationError(fmt.Sprintf("unknown sync mode %q", mode))
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE branch_sync_links SET sync_mode = $1 WHERE id = $2`, string(mode), id)
	if err != nil {
		return fmt.Errorf("update sync mode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sync mode: %w", err)
	}
	if affected == 0 {
		return engerrors.NewNotFoundError("branch sync link", id)
	}
	return nil
}
