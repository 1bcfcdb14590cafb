// internal/engine/dashboard_test.go
package engine

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menusync/internal/common/logger"
)

func TestDashboardReport(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dash := NewDashboard(db, logger.NewTestLogger(t))

	mock.ExpectQuery(`FROM master_menus m`).
		WithArgs("fr-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "current_version",
			"total", "synced", "pending", "auto",
		}).
			AddRow("menu-1", "Core Menu", 5, 10, 7, 3, 4).
			AddRow("menu-2", "Seasonal Menu", 2, 3, 3, 0, 0))

	report, err := dash.Report(context.Background(), "fr-1")
	require.NoError(t, err)
	assert.Equal(t, "fr-1", report.FranchiseID)
	require.Len(t, report.Menus, 2)

	core := report.Menus[0]
	assert.Equal(t, "menu-1", core.MasterMenuID)
	assert.Equal(t, 5, core.CurrentVersion)
	assert.Equal(t, 10, core.TotalBranches)
	assert.Equal(t, 7, core.SyncedBranches)
	assert.Equal(t, 3, core.PendingBranches)
	assert.Equal(t, 4, core.AutoEnabled)

	assert.Equal(t, 0, report.Menus[1].PendingBranches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardEmptyFranchise(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dash := NewDashboard(db, logger.NewTestLogger(t))

	mock.ExpectQuery(`FROM master_menus m`).
		WithArgs("fr-empty").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "current_version",
			"total", "synced", "pending", "auto",
		}))

	report, err := dash.Report(context.Background(), "fr-empty")
	require.NoError(t, err)
	assert.Empty(t, report.Menus)
}
