// internal/engine/engine.go
// Package engine is the master menu synchronization and versioning engine:
// an append-only version chain per master menu, per-branch sync links with
// override locks, and idempotent sync/merge with conflict accounting.
package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"

	"menusync/internal/common/config"
	"menusync/internal/common/logger"
	"menusync/internal/common/metrics"
	"menusync/internal/diff"
	"menusync/internal/models"
	"menusync/internal/store"
)

// Service is the engine facade consumed by the HTTP layer. All operations
// are plain function calls; transport, auth and tenant scoping live outside.
type Service struct {
	versions  *store.VersionStore
	links     *store.LinkStore
	overrides *store.OverrideStore
	logs      *store.SyncLogStore

	executor   *Executor
	controller *Controller
	dashboard  *Dashboard
	publisher  *VersionPublisher

	bulkParallelism int
	logger          logger.Logger
}

// New wires the engine onto its storage backends.
func New(db *sql.DB, rdb *redis.Client, cfg config.SyncConfig, log logger.Logger) *Service {
	versions := store.NewVersionStore(db, log)
	links := store.NewLinkStore(db, log)
	overrides := store.NewOverrideStore(db, log)
	logs := store.NewSyncLogStore(db, log)

	lock := NewBranchLock(rdb, time.Duration(cfg.LockTTL)*time.Second, log)
	executor := NewExecutor(db, versions, links, overrides, lock, time.Duration(cfg.SyncTimeout)*time.Second, log)

	return &Service{
		versions:        versions,
		links:           links,
		overrides:       overrides,
		logs:            logs,
		executor:        executor,
		controller:      NewController(links, executor, log),
		dashboard:       NewDashboard(db, log),
		publisher:       NewVersionPublisher(rdb, cfg.VersionChannel),
		bulkParallelism: cfg.BulkParallelism,
		logger:          log,
	}
}

// CreateVersion appends a new immutable version to a master menu's chain,
// announces it, and triggers auto-mode branches.
func (s *Service) CreateVersion(ctx context.Context, masterMenuID string, changeType models.ChangeType, summary string, snap models.Snapshot) (*models.MenuVersion, error) {
	v, err := s.versions.CreateVersion(ctx, masterMenuID, changeType, summary, snap)
	if err != nil {
		return nil, err
	}
	metrics.VersionsCreated.WithLabelValues(string(changeType)).Inc()

	if s.publisher != nil {
		ev := VersionEvent{
			MasterMenuID:  v.MasterMenuID,
			VersionNumber: v.VersionNumber,
			ChangeType:    string(v.ChangeType),
			CreatedAt:     v.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("version event publish failed", map[string]interface{}{
				"masterMenuId": v.MasterMenuID,
				"version":      v.VersionNumber,
				"error":        err.Error(),
			})
		}
	}

	s.controller.OnVersionCreated(v.MasterMenuID, v.VersionNumber)
	return v, nil
}

// Status resolves the sync link for a (location, master menu) pair.
func (s *Service) Status(ctx context.Context, locationID, masterMenuID string) (*models.BranchSyncLink, error) {
	return s.links.GetByLocationAndMaster(ctx, locationID, masterMenuID)
}

// Pending previews what a sync would apply to a branch. Read-only.
func (s *Service) Pending(ctx context.Context, branchSyncID string) (*diff.PendingChanges, error) {
	link, err := s.links.Get(ctx, branchSyncID)
	if err != nil {
		return nil, err
	}
	master, err := s.versions.GetMasterMenu(ctx, link.MasterMenuID)
	if err != nil {
		return nil, err
	}

	from := models.Snapshot{}
	if link.SyncedVersion > 0 {
		from, err = s.versions.GetSnapshot(ctx, link.MasterMenuID, link.SyncedVersion)
		if err != nil {
			return nil, err
		}
	}
	to := models.Snapshot{}
	if master.CurrentVersion > 0 {
		to, err = s.versions.GetSnapshot(ctx, link.MasterMenuID, master.CurrentVersion)
		if err != nil {
			return nil, err
		}
	}

	p := diff.Pending(from, to)
	return &p, nil
}

// Sync brings one branch up to targetVersion (nil = master's current).
func (s *Service) Sync(ctx context.Context, branchSyncID string, targetVersion *int, triggeredBy string) (*models.SyncResult, error) {
	return s.executor.Sync(ctx, branchSyncID, targetVersion, triggeredBy)
}

// BulkSync fans out to every non-disabled branch of a master menu.
func (s *Service) BulkSync(ctx context.Context, masterMenuID, triggeredBy string) (*models.BulkSyncResult, error) {
	return s.executor.BulkSync(ctx, masterMenuID, triggeredBy, s.bulkParallelism)
}

// SetMode transitions a branch's sync mode.
func (s *Service) SetMode(ctx context.Context, branchSyncID string, mode models.SyncMode) error {
	return s.controller.SetMode(ctx, branchSyncID, mode)
}

// SetOverride upserts a branch's item override.
func (s *Service) SetOverride(ctx context.Context, branchSyncID, itemID string, p store.OverrideParams) (*models.ItemOverride, error) {
	if _, err := s.links.Get(ctx, branchSyncID); err != nil {
		return nil, err
	}
	return s.overrides.Set(ctx, branchSyncID, itemID, p)
}

// RemoveOverride deletes a branch's item override.
func (s *Service) RemoveOverride(ctx context.Context, branchSyncID, itemID string) error {
	return s.overrides.Remove(ctx, branchSyncID, itemID)
}

// ListOverrides returns every override on a branch.
func (s *Service) ListOverrides(ctx context.Context, branchSyncID string) ([]models.ItemOverride, error) {
	if _, err := s.links.Get(ctx, branchSyncID); err != nil {
		return nil, err
	}
	return s.overrides.List(ctx, branchSyncID)
}

// History returns a branch's sync audit trail, newest first.
func (s *Service) History(ctx context.Context, branchSyncID string, limit, offset int) ([]models.SyncLogEntry, error) {
	if _, err := s.links.Get(ctx, branchSyncID); err != nil {
		return nil, err
	}
	return s.logs.List(ctx, branchSyncID, limit, offset)
}

// ListVersions returns a master menu's version metadata, newest first.
func (s *Service) ListVersions(ctx context.Context, masterMenuID string, limit, offset int) ([]models.VersionMeta, error) {
	if _, err := s.versions.GetMasterMenu(ctx, masterMenuID); err != nil {
		return nil, err
	}
	return s.versions.ListVersions(ctx, masterMenuID, limit, offset)
}

// GetSnapshot returns the full tree of one stored version.
func (s *Service) GetSnapshot(ctx context.Context, masterMenuID string, version int) (models.Snapshot, error) {
	return s.versions.GetSnapshot(ctx, masterMenuID, version)
}

// Compare diffs any two stored versions of a master menu. Directional, so
// it doubles as a rollback preview when from > to.
func (s *Service) Compare(ctx context.Context, masterMenuID string, from, to int) (*diff.StructuralDiff, error) {
	fromSnap, err := s.versions.GetSnapshot(ctx, masterMenuID, from)
	if err != nil {
		return nil, err
	}
	toSnap, err := s.versions.GetSnapshot(ctx, masterMenuID, to)
	if err != nil {
		return nil, err
	}
	d := diff.Compute(fromSnap, toSnap)
	return &d, nil
}

// Initialize creates the sync link for a (location, master menu) pair.
func (s *Service) Initialize(ctx context.Context, locationID, menuID, masterMenuID string, mode models.SyncMode) (*models.BranchSyncLink, error) {
	return s.links.Initialize(ctx, locationID, menuID, masterMenuID, mode)
}

// Dashboard aggregates sync state across a franchise's master menus.
func (s *Service) Dashboard(ctx context.Context, franchiseID string) (*models.DashboardReport, error) {
	return s.dashboard.Report(ctx, franchiseID)
}

// Flush waits for in-flight auto syncs; called on shutdown.
func (s *Service) Flush() {
	s.controller.Flush()
}
