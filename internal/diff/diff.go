// internal/diff/diff.go
// Package diff computes structural differences between two menu snapshots.
// All functions are pure and deterministic: item identity is by stable item
// id, never by array position, and outputs are sorted by id so that the same
// pair of snapshots always yields the same diff regardless of input order.
package diff

import (
	"sort"

	"menusync/internal/models"
)

// Snapshot scalar fields compared per item, in reporting order.
const (
	FieldName        = "name"
	FieldPrice       = "price"
	FieldDescription = "description"
	FieldImageURL    = "image_url"
	FieldAvailable   = "is_available"
)

// FieldDelta is one before/after change on a single item field.
type FieldDelta struct {
	Field string      `json:"field"`
	From  interface{} `json:"from"`
	To    interface{} `json:"to"`
}

// ItemModification reports an item present in both snapshots with at least
// one changed scalar field. Changes preserves the fixed field order.
type ItemModification struct {
	Item    models.MenuItem `json:"item"`
	Changes []FieldDelta    `json:"changes"`
}

// CategoryChange reports a category that appears in only one snapshot.
type CategoryChange struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StructuralDiff is the full structural difference between two snapshots.
// Items inside an added category are also reported in ItemsAdded, and
// likewise for removed categories.
type StructuralDiff struct {
	ItemsAdded        []models.MenuItem  `json:"itemsAdded"`
	ItemsRemoved      []models.MenuItem  `json:"itemsRemoved"`
	ItemsModified     []ItemModification `json:"itemsModified"`
	CategoriesAdded   []CategoryChange   `json:"categoriesAdded"`
	CategoriesRemoved []CategoryChange   `json:"categoriesRemoved"`
}

// Empty reports whether the diff contains no changes at all.
func (d StructuralDiff) Empty() bool {
	return len(d.ItemsAdded) == 0 &&
		len(d.ItemsRemoved) == 0 &&
		len(d.ItemsModified) == 0 &&
		len(d.CategoriesAdded) == 0 &&
		len(d.CategoriesRemoved) == 0
}

// Compute diffs two snapshots. Diff(S, S) yields all-empty lists.
func Compute(from, to models.Snapshot) StructuralDiff {
	var d StructuralDiff

	fromItems := flatten(from)
	toItems := flatten(to)

	for id, it := range toItems {
		old, ok := fromItems[id]
		if !ok {
			d.ItemsAdded = append(d.ItemsAdded, it)
			continue
		}
		if changes := compareItems(old, it); len(changes) > 0 {
			d.ItemsModified = append(d.ItemsModified, ItemModification{Item: it, Changes: changes})
		}
	}
	for id, it := range fromItems {
		if _, ok := toItems[id]; !ok {
			d.ItemsRemoved = append(d.ItemsRemoved, it)
		}
	}

	fromCats := categories(from)
	toCats := categories(to)
	for id, c := range toCats {
		if _, ok := fromCats[id]; !ok {
			d.CategoriesAdded = append(d.CategoriesAdded, CategoryChange{ID: c.ID, Name: c.Name})
		}
	}
	for id, c := range fromCats {
		if _, ok := toCats[id]; !ok {
			d.CategoriesRemoved = append(d.CategoriesRemoved, CategoryChange{ID: c.ID, Name: c.Name})
		}
	}

	sort.Slice(d.ItemsAdded, func(i, j int) bool { return d.ItemsAdded[i].ID < d.ItemsAdded[j].ID })
	sort.Slice(d.ItemsRemoved, func(i, j int) bool { return d.ItemsRemoved[i].ID < d.ItemsRemoved[j].ID })
	sort.Slice(d.ItemsModified, func(i, j int) bool { return d.ItemsModified[i].Item.ID < d.ItemsModified[j].Item.ID })
	sort.Slice(d.CategoriesAdded, func(i, j int) bool { return d.CategoriesAdded[i].ID < d.CategoriesAdded[j].ID })
	sort.Slice(d.CategoriesRemoved, func(i, j int) bool { return d.CategoriesRemoved[i].ID < d.CategoriesRemoved[j].ID })

	return d
}

// compareItems returns the per-field deltas between two versions of the same
// item, in the fixed field order.
func compareItems(old, cur models.MenuItem) []FieldDelta {
	var changes []FieldDelta
	if old.Name != cur.Name {
		changes = append(changes, FieldDelta{Field: FieldName, From: old.Name, To: cur.Name})
	}
	if old.Price != cur.Price {
		changes = append(changes, FieldDelta{Field: FieldPrice, From: old.Price, To: cur.Price})
	}
	if old.Description != cur.Description {
		changes = append(changes, FieldDelta{Field: FieldDescription, From: old.Description, To: cur.Description})
	}
	if old.ImageURL != cur.ImageURL {
		changes = append(changes, FieldDelta{Field: FieldImageURL, From: old.ImageURL, To: cur.ImageURL})
	}
	if old.IsAvailable != cur.IsAvailable {
		changes = append(changes, FieldDelta{Field: FieldAvailable, From: old.IsAvailable, To: cur.IsAvailable})
	}
	return changes
}

func flatten(s models.Snapshot) map[string]models.MenuItem {
	out := make(map[string]models.MenuItem)
	for _, cat := range s.Categories {
		for _, it := range cat.Items {
			out[it.ID] = it
		}
	}
	return out
}

func categories(s models.Snapshot) map[string]models.MenuCategory {
	out := make(map[string]models.MenuCategory, len(s.Categories))
	for _, cat := range s.Categories {
		out[cat.ID] = cat
	}
	return out
}

// PriceChange is one item whose price differs between the synced and current
// versions, surfaced separately for branch preview.
type PriceChange struct {
	ItemID string  `json:"itemId"`
	Name   string  `json:"name"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
}

// PendingChanges is the branch-facing preview of what a sync would apply.
type PendingChanges struct {
	AddedItems   []models.MenuItem  `json:"addedItems"`
	RemovedItems []models.MenuItem  `json:"removedItems"`
	UpdatedItems []ItemModification `json:"updatedItems"`
	PriceChanges []PriceChange      `json:"priceChanges"`
}

// Pending derives the preview shape from a snapshot pair. Read-only; the
// branch state is untouched.
func Pending(from, to models.Snapshot) PendingChanges {
	d := Compute(from, to)
	p := PendingChanges{
		AddedItems:   d.ItemsAdded,
		RemovedItems: d.ItemsRemoved,
		UpdatedItems: d.ItemsModified,
	}
	for _, mod := range d.ItemsModified {
		for _, ch := range mod.Changes {
			if ch.Field != FieldPrice {
				continue
			}
			fromPrice, _ := ch.From.(float64)
			toPrice, _ := ch.To.(float64)
			p.PriceChanges = append(p.PriceChanges, PriceChange{
				ItemID: mod.Item.ID,
				Name:   mod.Item.Name,
				From:   fromPrice,
				To:     toPrice,
			})
		}
	}
	return p
}
