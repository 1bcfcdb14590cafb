// internal/models/sync.go
package models

import "time"

// SyncMode governs how a branch picks up new master menu versions.
type SyncMode string

const (
	SyncModeAuto     SyncMode = "auto"
	SyncModeManual   SyncMode = "manual"
	SyncModeDisabled SyncMode = "disabled"
)

// ValidSyncMode reports whether m is one of the known sync modes.
func ValidSyncMode(m SyncMode) bool {
	switch m {
	case SyncModeAuto, SyncModeManual, SyncModeDisabled:
		return true
	}
	return false
}

// BranchSyncLink ties one branch location's local menu to a master menu and
// tracks how far that branch has synced. SyncedVersion == 0 means never synced.
type BranchSyncLink struct {
	ID            string     `json:"id"`
	LocationID    string     `json:"locationId"`
	MenuID        string     `json:"menuId"`
	MasterMenuID  string     `json:"masterMenuId"`
	SyncedVersion int        `json:"syncedVersion"`
	SyncMode      SyncMode   `json:"syncMode"`
	LastSyncedAt  *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`

	// PendingVersions is derived: master current_version - synced_version.
	PendingVersions int `json:"pendingVersions"`
}

// ItemOverride pins branch-local values for one master menu item.
// Locked fields are never touched by an incoming sync, even on full resync.
type ItemOverride struct {
	ID                   string    `json:"id"`
	BranchSyncID         string    `json:"branchSyncId"`
	MasterMenuItemID     string    `json:"masterMenuItemId"`
	PriceOverride        *float64  `json:"priceOverride,omitempty"`
	AvailabilityOverride *bool     `json:"availabilityOverride,omitempty"`
	PriceLocked          bool      `json:"priceLocked"`
	AvailabilityLocked   bool      `json:"availabilityLocked"`
	FullyLocked          bool      `json:"fullyLocked"`
	OverrideReason       string    `json:"overrideReason,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// LocksField reports whether the override pins the given snapshot field
// against incoming sync changes.
func (o *ItemOverride) LocksField(field string) bool {
	if o.FullyLocked {
		return true
	}
	switch field {
	case "price":
		return o.PriceLocked
	case "is_available":
		return o.AvailabilityLocked
	}
	return false
}

// ConflictDetail records one suppressed incoming change: the branch kept its
// locked value instead of the master's.
type ConflictDetail struct {
	ItemID        string      `json:"itemId"`
	Field         string      `json:"field"`
	LockedValue   interface{} `json:"lockedValue"`
	IncomingValue interface{} `json:"incomingValue"`
}

// SyncStats aggregates the outcome of one sync run. Conflicts are a counted
// outcome, not a failure.
type SyncStats struct {
	Added           int              `json:"added"`
	Updated         int              `json:"updated"`
	Removed         int              `json:"removed"`
	Conflicts       int              `json:"conflicts"`
	ConflictDetails []ConflictDetail `json:"conflictDetails,omitempty"`
}

// SyncResult is the outcome of a single-branch sync.
type SyncResult struct {
	Success      bool      `json:"success"`
	BranchSyncID string    `json:"branchSyncId"`
	FromVersion  int       `json:"fromVersion"`
	ToVersion    int       `json:"toVersion"`
	NoOp         bool      `json:"noOp"`
	Stats        SyncStats `json:"stats"`
}

// SyncLogEntry is one write-once audit record of a completed sync.
type SyncLogEntry struct {
	ID           string    `json:"id"`
	BranchSyncID string    `json:"branchSyncId"`
	FromVersion  int       `json:"fromVersion"`
	ToVersion    int       `json:"toVersion"`
	Stats        SyncStats `json:"stats"`
	TriggeredBy  string    `json:"triggeredBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BulkSyncDetail reports one branch's outcome inside a bulk fan-out.
type BulkSyncDetail struct {
	BranchSyncID string     `json:"branchSyncId"`
	LocationID   string     `json:"locationId"`
	Success      bool       `json:"success"`
	Error        string     `json:"error,omitempty"`
	Stats        *SyncStats `json:"stats,omitempty"`
}

// BulkSyncResult aggregates a bulk fan-out. Total counts eligible branches
// (sync_mode != disabled); one branch's failure never rolls back another's.
type BulkSyncResult struct {
	Total      int              `json:"total"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Details    []BulkSyncDetail `json:"details"`
}

// BranchMenuItem is the branch's local copy of one master menu item, as
// written by the sync executor.
type BranchMenuItem struct {
	BranchSyncID     string    `json:"branchSyncId"`
	MasterMenuItemID string    `json:"masterMenuItemId"`
	CategoryID       string    `json:"categoryId"`
	Name             string    `json:"name"`
	Price            float64   `json:"price"`
	Description      string    `json:"description,omitempty"`
	ImageURL         string    `json:"imageUrl,omitempty"`
	IsAvailable      bool      `json:"isAvailable"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DashboardMenuSummary is the per-master-menu aggregate shown on the
// franchise sync dashboard. Computed on demand, never cached.
type DashboardMenuSummary struct {
	MasterMenuID    string `json:"masterMenuId"`
	MenuName        string `json:"menuName"`
	CurrentVersion  int    `json:"currentVersion"`
	TotalBranches   int    `json:"totalBranches"`
	SyncedBranches  int    `json:"syncedBranches"`
	PendingBranches int    `json:"pendingBranches"`
	AutoEnabled     int    `json:"autoEnabled"`
}

// DashboardReport aggregates sync state across all master menus of a franchise.
type DashboardReport struct {
	FranchiseID string                 `json:"franchiseId"`
	Menus       []DashboardMenuSummary `json:"menus"`
}
