// internal/store/links_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "menusync/internal/common/errors"
	"menusync/internal/common/logger"
	"menusync/internal/models"
)

func newLinkStore(t *testing.T) (*LinkStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLinkStore(db, logger.NewTestLogger(t)), mock
}

func linkRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "location_id", "menu_id", "master_menu_id",
		"synced_version", "sync_mode", "last_synced_at", "created_at",
		"current_version",
	})
}

func TestInitializeDefaultsToManual(t *testing.T) {
	store, mock := newLinkStore(t)

	mock.ExpectQuery(`SELECT current_version FROM master_menus`).
		WithArgs("menu-1").
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}).AddRow(5))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("loc-1", "menu-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO branch_sync_links`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	link, err := store.Initialize(context.Background(), "loc-1", "branch-menu-1", "menu-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.SyncModeManual, link.SyncMode)
	assert.Equal(t, 0, link.SyncedVersion)
	// Never synced against a v5 master: the whole chain is pending.
	assert.Equal(t, 5, link.PendingVersions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitializeRejectsDuplicate(t *testing.T) {
	store, mock := newLinkStore(t)

	mock.ExpectQuery(`SELECT current_version FROM master_menus`).
		WithArgs("menu-1").
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}).AddRow(5))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("loc-1", "menu-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := store.Initialize(context.Background(), "loc-1", "branch-menu-1", "menu-1", models.SyncModeAuto)
	assert.True(t, engerrors.IsAlreadyLinked(err))
}

func TestInitializeLostRaceMapsConstraintViolation(t *testing.T) {
	store, mock := newLinkStore(t)

	// A concurrent initialize slips between the duplicate check and the
	// insert; the loser sees the unique constraint, not a storage error.
	mock.ExpectQuery(`SELECT current_version FROM master_menus`).
		WithArgs("menu-1").
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}).AddRow(5))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("loc-1", "menu-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO branch_sync_links`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "branch_sync_links_location_id_master_menu_id_key"})

	_, err := store.Initialize(context.Background(), "loc-1", "branch-menu-1", "menu-1", models.SyncModeAuto)
	assert.True(t, engerrors.IsAlreadyLinked(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitializeUnknownMaster(t *testing.T) {
	store, mock := newLinkStore(t)

	mock.ExpectQuery(`SELECT current_version FROM master_menus`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}))

	_, err := store.Initialize(context.Background(), "loc-1", "branch-menu-1", "missing", models.SyncModeAuto)
	assert.True(t, engerrors.IsNotFound(err))
}

func TestInitializeRejectsUnknownMode(t *testing.T) {
	store, _ := newLinkStore(t)

	_, err := store.Initialize(context.Background(), "loc-1", "branch-menu-1", "menu-1", models.SyncMode("eager"))
	assert.True(t, engerrors.IsValidation(err))
}

func TestGetDerivesPendingVersions(t *testing.T) {
	store, mock := newLinkStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM branch_sync_links l`).
		WithArgs("link-1").
		WillReturnRows(linkRows().AddRow(
			"link-1", "loc-1", "branch-menu-1", "menu-1",
			2, "manual", now, now,
			5,
		))

	link, err := store.Get(context.Background(), "link-1")
	require.NoError(t, err)
	assert.Equal(t, 3, link.PendingVersions)
	require.NotNil(t, link.LastSyncedAt)
}

func TestGetNotFound(t *testing.T) {
	store, mock := newLinkStore(t)

	mock.ExpectQuery(`FROM branch_sync_links l`).
		WithArgs("missing").
		WillReturnRows(linkRows())

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, engerrors.IsNotFound(err))
}

func TestListSyncableByMasterSkipsDisabled(t *testing.T) {
	store, mock := newLinkStore(t)
	now := time.Now()

	mock.ExpectQuery(`l\.sync_mode <> 'disabled'`).
		WithArgs("menu-1").
		WillReturnRows(linkRows().
			AddRow("link-1", "loc-1", "bm-1", "menu-1", 1, "auto", now, now, 2).
			AddRow("link-2", "loc-2", "bm-2", "menu-1", 2, "manual", now, now, 2))

	links, err := store.ListSyncableByMaster(context.Background(), "menu-1")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, models.SyncModeAuto, links[0].SyncMode)
	assert.Equal(t, 0, links[1].PendingVersions)
}

func TestSetMode(t *testing.T) {
	store, mock := newLinkStore(t)

	mock.ExpectExec(`UPDATE branch_sync_links SET sync_mode`).
		WithArgs("auto", "link-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.SetMode(context.Background(), "link-1", models.SyncModeAuto))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetModeNotFound(t *testing.T) {
	store, mock := newLinkStore(t)

	mock.ExpectExec(`UPDATE branch_sync_links SET sync_mode`).
		WithArgs("disabled", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetMode(context.Background(), "missing", models.SyncModeDisabled)
	assert.True(t, engerrors.IsNotFound(err))
}

func TestSetModeRejectsUnknownMode(t *testing.T) {
	store, _ := newLinkStore(t)

	err := store.SetMode(context.Background(), "link-1", models.SyncMode("paused"))
	assert.True(t, engerrors.IsValidation(err))
}
