// internal/diff/diff_test.go
package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menusync/internal/models"
)

func snapshot(cats ...models.MenuCategory) models.Snapshot {
	return models.Snapshot{Categories: cats}
}

func item(id, name string, price float64, available bool) models.MenuItem {
	return models.MenuItem{ID: id, Name: name, Price: price, IsAvailable: available}
}

func TestComputeIdenticalSnapshots(t *testing.T) {
	s := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Burgers",
		Items: []models.MenuItem{
			item("item-1", "Classic Burger", 9.50, true),
			item("item-2", "Cheese Burger", 10.50, true),
		},
	})

	d := Compute(s, s)
	assert.True(t, d.Empty())
	assert.Empty(t, d.ItemsAdded)
	assert.Empty(t, d.ItemsRemoved)
	assert.Empty(t, d.ItemsModified)
	assert.Empty(t, d.CategoriesAdded)
	assert.Empty(t, d.CategoriesRemoved)
}

func TestComputeAddModifyRemove(t *testing.T) {
	from := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Burgers",
		Items: []models.MenuItem{
			item("item-1", "Classic Burger", 9.50, true),
			item("item-2", "Cheese Burger", 10.50, true),
		},
	})
	to := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Burgers",
		Items: []models.MenuItem{
			item("item-1", "Classic Burger", 10.00, true), // price bumped
			item("item-3", "Veggie Burger", 11.00, true),  // new
		},
	})

	d := Compute(from, to)
	require.False(t, d.Empty())

	require.Len(t, d.ItemsAdded, 1)
	assert.Equal(t, "item-3", d.ItemsAdded[0].ID)

	require.Len(t, d.ItemsRemoved, 1)
	assert.Equal(t, "item-2", d.ItemsRemoved[0].ID)

	require.Len(t, d.ItemsModified, 1)
	mod := d.ItemsModified[0]
	assert.Equal(t, "item-1", mod.Item.ID)
	require.Len(t, mod.Changes, 1)
	assert.Equal(t, FieldPrice, mod.Changes[0].Field)
	assert.Equal(t, 9.50, mod.Changes[0].From)
	assert.Equal(t, 10.00, mod.Changes[0].To)
}

func TestComputeIdentityByIDNotPosition(t *testing.T) {
	// Same items, reshuffled across the array: no changes.
	from := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Drinks",
		Items: []models.MenuItem{
			item("item-a", "Cola", 2.50, true),
			item("item-b", "Lemonade", 3.00, true),
		},
	})
	to := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Drinks",
		Items: []models.MenuItem{
			item("item-b", "Lemonade", 3.00, true),
			item("item-a", "Cola", 2.50, true),
		},
	})

	assert.True(t, Compute(from, to).Empty())
}

func TestComputeCategoryAddedReportsItems(t *testing.T) {
	from := snapshot()
	to := snapshot(models.MenuCategory{
		ID:   "cat-9",
		Name: "Desserts",
		Items: []models.MenuItem{
			item("item-9", "Brownie", 4.00, true),
		},
	})

	d := Compute(from, to)
	require.Len(t, d.CategoriesAdded, 1)
	assert.Equal(t, "cat-9", d.CategoriesAdded[0].ID)
	// Items inside an added category also surface in ItemsAdded.
	require.Len(t, d.ItemsAdded, 1)
	assert.Equal(t, "item-9", d.ItemsAdded[0].ID)
}

func TestComputeMultiFieldChangeOrder(t *testing.T) {
	from := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Mains",
		Items: []models.MenuItem{
			{ID: "item-1", Name: "Pasta", Price: 12.00, Description: "old", IsAvailable: true},
		},
	})
	to := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Mains",
		Items: []models.MenuItem{
			{ID: "item-1", Name: "Pasta Fresca", Price: 13.00, Description: "old", IsAvailable: false},
		},
	})

	d := Compute(from, to)
	require.Len(t, d.ItemsModified, 1)
	fields := make([]string, 0, 3)
	for _, ch := range d.ItemsModified[0].Changes {
		fields = append(fields, ch.Field)
	}
	assert.Equal(t, []string{FieldName, FieldPrice, FieldAvailable}, fields)
}

func TestComputeDeterministicOrdering(t *testing.T) {
	from := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Mains",
		Items: []models.MenuItem{
			item("item-c", "C", 1, true),
			item("item-a", "A", 1, true),
		},
	})
	to := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Mains",
		Items: []models.MenuItem{
			item("item-d", "D", 1, true),
			item("item-b", "B", 1, true),
		},
	})

	for i := 0; i < 10; i++ {
		d := Compute(from, to)
		require.Len(t, d.ItemsAdded, 2)
		require.Len(t, d.ItemsRemoved, 2)
		assert.Equal(t, "item-b", d.ItemsAdded[0].ID)
		assert.Equal(t, "item-d", d.ItemsAdded[1].ID)
		assert.Equal(t, "item-a", d.ItemsRemoved[0].ID)
		assert.Equal(t, "item-c", d.ItemsRemoved[1].ID)
	}
}

func TestPendingExtractsPriceChanges(t *testing.T) {
	from := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Burgers",
		Items: []models.MenuItem{
			item("item-1", "Classic Burger", 9.50, true),
			item("item-2", "Cheese Burger", 10.50, true),
		},
	})
	to := snapshot(models.MenuCategory{
		ID:   "cat-1",
		Name: "Burgers",
		Items: []models.MenuItem{
			item("item-1", "Classic Burger", 10.50, true),
			{ID: "item-2", Name: "Cheese Burger", Price: 10.50, Description: "now with cheddar", IsAvailable: true},
		},
	})

	p := Pending(from, to)
	assert.Empty(t, p.AddedItems)
	assert.Empty(t, p.RemovedItems)
	require.Len(t, p.UpdatedItems, 2)

	require.Len(t, p.PriceChanges, 1)
	pc := p.PriceChanges[0]
	assert.Equal(t, "item-1", pc.ItemID)
	assert.Equal(t, 9.50, pc.From)
	assert.Equal(t, 10.50, pc.To)
}
