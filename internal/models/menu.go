// internal/models/menu.go
package models

import "time"

// ChangeType classifies what kind of edit produced a menu version.
type ChangeType string

const (
	ChangeItemAdded       ChangeType = "item_added"
	ChangeItemRemoved     ChangeType = "item_removed"
	ChangeItemModified    ChangeType = "item_modified"
	ChangeCategoryAdded   ChangeType = "category_added"
	ChangeCategoryRemoved ChangeType = "category_removed"
	ChangeBulk            ChangeType = "bulk"
)

// ValidChangeType reports whether t is one of the known change types.
func ValidChangeType(t ChangeType) bool {
	switch t {
	case ChangeItemAdded, ChangeItemRemoved, ChangeItemModified,
		ChangeCategoryAdded, ChangeCategoryRemoved, ChangeBulk:
		return true
	}
	return false
}

// MasterMenu is the franchise-level canonical menu template.
// CurrentVersion is monotonic and only advances through version-creating edits.
type MasterMenu struct {
	ID             string    `json:"id"`
	FranchiseID    string    `json:"franchiseId"`
	Name           string    `json:"name"`
	Currency       string    `json:"currency"`
	CurrentVersion int       `json:"currentVersion"`
	IsDefault      bool      `json:"isDefault"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// MenuItem is a single sellable item inside a snapshot.
type MenuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	IsAvailable bool    `json:"isAvailable"`
}

// MenuCategory groups items inside a snapshot.
type MenuCategory struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

// Snapshot is the full materialized category/item tree of a master menu
// at one version. Snapshots are immutable once persisted.
type Snapshot struct {
	Categories []MenuCategory `json:"categories"`
}

// ItemByID returns the item with the given id and the id of its category.
func (s Snapshot) ItemByID(itemID string) (MenuItem, string, bool) {
	for _, cat := range s.Categories {
		for _, it := range cat.Items {
			if it.ID == itemID {
				return it, cat.ID, true
			}
		}
	}
	return MenuItem{}, "", false
}

// MenuVersion is one immutable entry in a master menu's version chain.
type MenuVersion struct {
	MasterMenuID  string     `json:"masterMenuId"`
	VersionNumber int        `json:"versionNumber"`
	ChangeType    ChangeType `json:"changeType"`
	ChangeSummary string     `json:"changeSummary"`
	Snapshot      Snapshot   `json:"snapshot"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// VersionMeta is version metadata without the snapshot payload, used for listings.
type VersionMeta struct {
	VersionNumber int        `json:"versionNumber"`
	ChangeType    ChangeType `json:"changeType"`
	ChangeSummary string     `json:"changeSummary"`
	CreatedAt     time.Time  `json:"createdAt"`
}
