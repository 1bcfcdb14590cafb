// internal/engine/controller.go
package engine

import (
	"context"
	"sync"
	"time"

	"menusync/internal/common/logger"
	"menusync/internal/models"
	"menusync/internal/store"
)

// Controller governs each branch's sync mode and reacts to new master menu
// versions: auto links are synced immediately (fire-and-forget per branch),
// manual and disabled links only accumulate pending versions.
type Controller struct {
	links    *store.LinkStore
	executor *Executor
	logger   logger.Logger

	inflight sync.WaitGroup
}

func NewController(links *store.LinkStore, executor *Executor, log logger.Logger) *Controller {
	return &Controller{links: links, executor: executor, logger: log}
}

// SetMode transitions a link's sync mode; any mode may move to any other.
func (c *Controller) SetMode(ctx context.Context, branchSyncID string, mode models.SyncMode) error {
	return c.links.SetMode(ctx, branchSyncID, mode)
}

// OnVersionCreated fans the new version out to auto-mode links. Each branch
// sync runs in its own goroutine and is independently atomic; a failure on
// one branch is logged and never affects the others.
func (c *Controller) OnVersionCreated(masterMenuID string, version int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	links, err := c.links.ListAutoByMaster(ctx, masterMenuID)
	if err != nil {
		c.logger.Error("auto-sync fan-out: listing links failed", map[string]interface{}{
			"masterMenuId": masterMenuID,
			"error":        err.Error(),
		})
		return
	}

	for _, link := range links {
		link := link
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			target := version
			if _, err := c.executor.Sync(context.Background(), link.ID, &target, "auto"); err != nil {
				c.logger.Error("auto-sync failed", map[string]interface{}{
					"branchSyncId":  link.ID,
					"targetVersion": version,
					"error":         err.Error(),
				})
			}
		}()
	}
}

// Flush blocks until all in-flight auto syncs finish. Used on shutdown and
// in tests.
func (c *Controller) Flush() {
	c.inflight.Wait()
}
