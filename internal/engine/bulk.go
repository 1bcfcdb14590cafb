// internal/engine/bulk.go
package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"menusync/internal/common/metrics"
	"menusync/internal/models"
)

// BulkSync fans a sync out to every non-disabled link on a master menu.
// Branches run independently with bounded parallelism: one branch's failure
// never blocks or rolls back another's, and cancelling the context stops
// launching new branch syncs while already-committed ones stay committed.
func (e *Executor) BulkSync(ctx context.Context, masterMenuID, triggeredBy string, parallelism int) (*models.BulkSyncResult, error) {
	master, err := e.versions.GetMasterMenu(ctx, masterMenuID)
	if err != nil {
		return nil, err
	}
	links, err := e.links.ListSyncableByMaster(ctx, masterMenuID)
	if err != nil {
		return nil, err
	}

	if parallelism < 1 {
		parallelism = 1
	}

	metrics.BulkSyncsActive.Inc()
	defer metrics.BulkSyncsActive.Dec()

	target := master.CurrentVersion
	details := make([]models.BulkSyncDetail, len(links))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, link := range links {
		i, link := i, link
		g.Go(func() error {
			detail := models.BulkSyncDetail{
				BranchSyncID: link.ID,
				LocationID:   link.LocationID,
			}
			if err := ctx.Err(); err != nil {
				detail.Error = "sync not attempted: " + err.Error()
			} else if res, err := e.Sync(ctx, link.ID, &target, triggeredBy); err != nil {
				detail.Error = err.Error()
			} else {
				detail.Success = true
				detail.Stats = &res.Stats
			}
			mu.Lock()
			details[i] = detail
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // branch errors are isolated into details, never returned

	result := &models.BulkSyncResult{
		Total:   len(links),
		Details: details,
	}
	for _, d := range details {
		if d.Success {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	e.logger.Info("bulk sync finished", map[string]interface{}{
		"masterMenuId": masterMenuID,
		"target":       target,
		"total":        result.Total,
		"successful":   result.Successful,
		"failed":       result.Failed,
	})
	return result, nil
}
