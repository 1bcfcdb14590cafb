// internal/store/overrides_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "menusync/internal/common/errors"
	"menusync/internal/common/logger"
)

func newOverrideStore(t *testing.T) (*OverrideStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewOverrideStore(db, logger.NewTestLogger(t)), mock
}

func TestSetOverrideUpsert(t *testing.T) {
	store, mock := newOverrideStore(t)
	now := time.Now()

	price := 8.75
	mock.ExpectQuery(`INSERT INTO item_overrides`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("ovr-1", now))

	o, err := store.Set(context.Background(), "link-1", "item-1", OverrideParams{
		PriceOverride:  &price,
		PriceLocked:    true,
		OverrideReason: "local market pricing",
	})
	require.NoError(t, err)
	assert.Equal(t, "ovr-1", o.ID)
	assert.True(t, o.PriceLocked)
	require.NotNil(t, o.PriceOverride)
	assert.Equal(t, 8.75, *o.PriceOverride)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOverrideRejectsRedundantLockCombination(t *testing.T) {
	store, _ := newOverrideStore(t)

	_, err := store.Set(context.Background(), "link-1", "item-1", OverrideParams{
		FullyLocked: true,
		PriceLocked: true,
	})
	assert.True(t, engerrors.IsValidation(err))
}

func TestRemoveOverrideNotFound(t *testing.T) {
	store, mock := newOverrideStore(t)

	mock.ExpectExec(`DELETE FROM item_overrides`).
		WithArgs("link-1", "item-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Remove(context.Background(), "link-1", "item-9")
	assert.True(t, engerrors.IsNotFound(err))
}

func TestMapByItem(t *testing.T) {
	store, mock := newOverrideStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM item_overrides`).
		WithArgs("link-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "branch_sync_id", "master_menu_item_id",
			"price_override", "availability_override",
			"price_locked", "availability_locked", "fully_locked",
			"override_reason", "created_at", "updated_at",
		}).
			AddRow("ovr-1", "link-1", "item-1", 8.75, nil, true, false, false, "local pricing", now, now).
			AddRow("ovr-2", "link-1", "item-2", nil, false, false, true, false, nil, now, now))

	m, err := store.MapByItem(context.Background(), "link-1")
	require.NoError(t, err)
	require.Len(t, m, 2)

	require.NotNil(t, m["item-1"].PriceOverride)
	assert.True(t, m["item-1"].LocksField("price"))
	assert.False(t, m["item-1"].LocksField("is_available"))

	assert.True(t, m["item-2"].LocksField("is_available"))
	assert.False(t, m["item-2"].LocksField("name"))
}

func TestFullyLockedLocksEveryField(t *testing.T) {
	store, mock := newOverrideStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM item_overrides`).
		WithArgs("link-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "branch_sync_id", "master_menu_item_id",
			"price_override", "availability_override",
			"price_locked", "availability_locked", "fully_locked",
			"override_reason", "created_at", "updated_at",
		}).AddRow("ovr-1", "link-1", "item-1", nil, nil, false, false, true, "seasonal special", now, now))

	m, err := store.MapByItem(context.Background(), "link-1")
	require.NoError(t, err)

	o := m["item-1"]
	for _, field := range []string{"name", "price", "description", "image_url", "is_available"} {
		assert.True(t, o.LocksField(field), field)
	}
}
