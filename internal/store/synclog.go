// internal/store/synclog.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"menusync/internal/common/logger"
	"menusync/internal/models"
)

// SyncLogStore reads the append-only sync audit trail. Entries are written
// by the sync executor inside its transaction and never mutated afterwards.
type SyncLogStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSyncLogStore(db *sql.DB, log logger.Logger) *SyncLogStore {
	return &SyncLogStore{db: db, logger: log}
}

// List returns a branch's sync history, newest first.
func (s *SyncLogStore) List(ctx context.Context, branchSyncID string, limit, offset int) ([]models.SyncLogEntry, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_sync_id, from_version, to_version, stats, triggered_by, created_at
		FROM sync_logs
		WHERE branch_sync_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, branchSyncID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sync logs: %w", err)
	}
	defer rows.Close()

	var out []models.SyncLogEntry
	for rows.Next() {
		var e models.SyncLogEntry
		var rawStats []byte
		if err := rows.Scan(&e.ID, &e.BranchSyncID, &e.FromVersion, &e.ToVersion, &rawStats, &e.TriggeredBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		if err := json.Unmarshal(rawStats, &e.Stats); err != nil {
			return nil, fmt.Errorf("unmarshal sync log stats %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
