// internal/engine/dashboard.go
package engine

import (
	"context"
	"database/sql"
	"fmt"

	"menusync/internal/common/logger"
	"menusync/internal/models"
)

// Dashboard computes the franchise-wide sync read-model on demand by
// aggregating branch sync link rows. Nothing is cached, so the report can
// never go stale.
type Dashboard struct {
	db     *sql.DB
	logger logger.Logger
}

func NewDashboard(db *sql.DB, log logger.Logger) *Dashboard {
	return &Dashboard{db: db, logger: log}
}

// Report returns per-master-menu branch counts for one franchise.
func (d *Dashboard) Report(ctx context.Context, franchiseID string) (*models.DashboardReport, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			m.id, m.name, m.current_version,
			COUNT(l.id),
			COUNT(l.id) FILTER (WHERE l.synced_version = m.current_version),
			COUNT(l.id) FILTER (WHERE l.synced_version < m.current_version),
			COUNT(l.id) FILTER (WHERE l.sync_mode = 'auto')
		FROM master_menus m
		LEFT JOIN branch_sync_links l ON l.master_menu_id = m.id
		WHERE m.franchise_id = $1
		GROUP BY m.id, m.name, m.current_version
		ORDER BY m.name`, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("dashboard aggregation: %w", err)
	}
	defer rows.Close()

	report := &models.DashboardReport{FranchiseID: franchiseID}
	for rows.Next() {
		var s models.DashboardMenuSummary
		err := rows.Scan(
			&s.MasterMenuID, &s.MenuName, &s.CurrentVersion,
			&s.TotalBranches, &s.SyncedBranches, &s.PendingBranches, &s.AutoEnabled,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dashboard row: %w", err)
		}
		report.Menus = append(report.Menus, s)
	}
	return report, rows.Err()
}
