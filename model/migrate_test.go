package model_test

import (
	"testing"

	"github.com/kasuganosora/worldsrv/model"
	"github.com/kasuganosora/worldsrv/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrate_InsertAndJoin(t *testing.T) {
	db := testutil.SetupTestDB(t)

	rec := &model.ItemRecord{ItemSN: 9001, ItemID: 2000000, Quantity: 10}
	require.NoError(t, db.Create(rec).Error)

	sn := rec.ItemSN
	row := &model.ShopEntry{CharacterID: 7, ItemSerial: &sn, Price: 100, Bundles: 3}
	require.NoError(t, db.Create(row).Error)
	assert.Positive(t, row.ID)

	var got model.ShopEntry
	require.NoError(t, db.Joins("Item").First(&got, row.ID).Error)
	require.NotNil(t, got.Item)
	assert.Equal(t, int32(2000000), got.Item.ItemID)
	assert.Equal(t, int32(3), got.Bundles)

	mesosOnly := &model.ShopEntry{CharacterID: 7, Sold: true, Mesos: 500}
	require.NoError(t, db.Create(mesosOnly).Error)
	var bare model.ShopEntry
	require.NoError(t, db.Joins("Item").First(&bare, mesosOnly.ID).Error)
	assert.Nil(t, bare.Item)
	assert.Nil(t, bare.ItemSerial)

	al := &model.AuditLog{TraceID: "trace-001", Action: "shop.sale"}
	require.NoError(t, db.Create(al).Error)
}

func TestAutoMigrate_EntryMustReferenceStoredItem(t *testing.T) {
	db := testutil.SetupTestDB(t)

	missing := int64(424242)
	err := db.Create(&model.ShopEntry{CharacterID: 7, ItemSerial: &missing, Bundles: 1}).Error
	assert.Error(t, err, "an entry may not point at an item row that does not exist")

	// the item row is the parent, so it can be written without any entry
	require.NoError(t, db.Create(&model.ItemRecord{ItemSN: 1, ItemID: 2000000}).Error)
	require.NoError(t, db.Create(&model.ItemRecord{ItemSN: 2, ItemID: 2000000}).Error)

	var n int64
	require.NoError(t, db.Model(&model.ItemRecord{}).Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "items", model.ItemRecord{}.TableName())
	assert.Equal(t, "player_shop", model.ShopEntry{}.TableName())
}
