// internal/engine/bulk_test.go
package engine

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "menusync/internal/common/errors"
	"menusync/internal/common/logger"
	"menusync/internal/models"
)

func TestBulkSyncIsolatesBranchFailures(t *testing.T) {
	f := newExecutorFixture(t)
	now := time.Now()

	// link-2 is busy: its failure must not affect link-1.
	require.NoError(t, f.redis.Set("menusync:lock:link-2", "someone-else"))

	f.expectMasterGet(2)
	f.mock.ExpectQuery(`l\.sync_mode <> 'disabled'`).
		WithArgs("menu-1").
		WillReturnRows(linkRows().
			AddRow("link-1", "loc-1", "bm-1", "menu-1", 2, "auto", now, now, 2).
			AddRow("link-2", "loc-2", "bm-2", "menu-1", 1, "manual", now, now, 2))

	// link-1: already at the target, resolves as a no-op success.
	f.expectLinkGet("link-1", 2, "auto", 2)
	f.expectMasterGet(2)
	f.expectLinkGet("link-1", 2, "auto", 2)

	// link-2: lock contention surfaces in its detail only.
	f.expectLinkGet("link-2", 1, "manual", 2)
	f.expectMasterGet(2)

	res, err := f.executor.BulkSync(context.Background(), "menu-1", "bulk", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Details, 2)

	assert.True(t, res.Details[0].Success)
	assert.Equal(t, "link-1", res.Details[0].BranchSyncID)

	assert.False(t, res.Details[1].Success)
	assert.Equal(t, "link-2", res.Details[1].BranchSyncID)
	assert.Contains(t, res.Details[1].Error, "SYNC_IN_PROGRESS")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

// commitCancelLogger cancels a context as soon as one branch sync commits,
// exercising an abort that lands mid fan-out.
type commitCancelLogger struct {
	logger.Logger
	cancel context.CancelFunc
}

func (l *commitCancelLogger) Info(msg string, fields map[string]interface{}) {
	l.Logger.Info(msg, fields)
	if msg == "branch sync completed" {
		l.cancel()
	}
}

func TestBulkSyncCancelledMidRunKeepsCommittedBranches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &commitCancelLogger{Logger: logger.NewTestLogger(t), cancel: cancel}
	f := newExecutorFixtureWithLogger(t, log)
	now := time.Now()

	snap := models.Snapshot{Categories: []models.MenuCategory{
		{ID: "cat-1", Name: "Burgers", Items: []models.MenuItem{
			{ID: "item-1", Name: "Classic Burger", Price: 9.50, IsAvailable: true},
		}},
	}}

	f.expectMasterGet(2)
	f.mock.ExpectQuery(`l\.sync_mode <> 'disabled'`).
		WithArgs("menu-1").
		WillReturnRows(linkRows().
			AddRow("link-1", "loc-1", "bm-1", "menu-1", 1, "manual", now, now, 2).
			AddRow("link-2", "loc-2", "bm-2", "menu-1", 1, "manual", now, now, 2))

	// link-1 runs to commit; the cancellation lands before link-2 starts.
	f.expectLinkGet("link-1", 1, "manual", 2)
	f.expectMasterGet(2)
	f.expectLinkGet("link-1", 1, "manual", 2)
	f.expectSnapshot(1, snap, t)
	f.expectSnapshot(2, snap, t)
	f.mock.ExpectQuery(`FROM item_overrides`).
		WithArgs("link-1").
		WillReturnRows(overrideRows())
	f.mock.ExpectBegin()
	f.mock.ExpectExec(`SET synced_version`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`INSERT INTO sync_logs`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	res, err := f.executor.BulkSync(ctx, "menu-1", "bulk", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Details, 2)

	// The committed branch stays committed and reports its result.
	assert.True(t, res.Details[0].Success)
	assert.Equal(t, "link-1", res.Details[0].BranchSyncID)
	require.NotNil(t, res.Details[0].Stats)

	// The branch never reached: no sync, no partial writes.
	assert.False(t, res.Details[1].Success)
	assert.Equal(t, "link-2", res.Details[1].BranchSyncID)
	assert.Contains(t, res.Details[1].Error, "sync not attempted")
	assert.NoError(t, f.mock.ExpectationsWereMet())

	// Both branch locks end up free.
	assert.False(t, f.redis.Exists("menusync:lock:link-1"))
	assert.False(t, f.redis.Exists("menusync:lock:link-2"))
}

func TestBulkSyncNoEligibleBranches(t *testing.T) {
	f := newExecutorFixture(t)

	f.expectMasterGet(2)
	f.mock.ExpectQuery(`l\.sync_mode <> 'disabled'`).
		WithArgs("menu-1").
		WillReturnRows(linkRows())

	res, err := f.executor.BulkSync(context.Background(), "menu-1", "bulk", 4)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Empty(t, res.Details)
}

func TestBulkSyncUnknownMaster(t *testing.T) {
	f := newExecutorFixture(t)

	f.mock.ExpectQuery(`SELECT id, franchise_id, name, currency`).
		WithArgs("menu-1").
		WillReturnRows(emptyMasterRows())

	_, err := f.executor.BulkSync(context.Background(), "menu-1", "bulk", 4)
	assert.True(t, engerrors.IsNotFound(err))
}
