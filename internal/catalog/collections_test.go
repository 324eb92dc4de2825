package catalog

import (
	"context"
	"testing"

	"shopmirror/internal/models"
	"shopmirror/internal/services/shopify"
	apperrors "shopmirror/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func loadCollection(t *testing.T, db *gorm.DB, remoteID int64) models.Collection {
	t.Helper()
	var c models.Collection
	require.NoError(t, db.Preload("Products").Where("remote_id = ?", remoteID).First(&c).Error)
	return c
}

func seedProducts(t *testing.T, engine *Engine, remote *fakeRemote) {
	t.Helper()
	remote.products = []shopify.Product{
		shopProduct(1, "Acme", "", shopVariant(101, "10.00", 1)),
		shopProduct(2, "Acme", "", shopVariant(201, "20.00", 1)),
	}
	_, err := engine.SyncProducts(context.Background())
	require.NoError(t, err)
}

func TestSyncCollections(t *testing.T) {
	engine, remote, db := newTestEngine(t)
	seedProducts(t, engine, remote)

	remote.custom = []shopify.Collection{{ID: 50, Title: "Featured", Handle: "featured", SortOrder: "manual"}}
	remote.smart = []shopify.Collection{{
		ID:    60,
		Title: "Cheap",
		Rules: []shopify.Rule{{Column: "variant_price", Relation: "less_than", Condition: "15"}},
	}}
	remote.members[50] = []int64{2, 1, 99}
	remote.members[60] = []int64{1}

	res, err := engine.SyncCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, []int64{50, 60}, res.Changes.Collections)

	custom := loadCollection(t, db, 50)
	assert.Equal(t, models.CollectionCustom, custom.Kind)
	assert.Equal(t, []int64{2, 1, 99}, []int64(custom.ProductOrder))
	assert.Len(t, custom.Products, 2, "unmirrored members are not linked")

	smart := loadCollection(t, db, 60)
	assert.Equal(t, models.CollectionSmart, smart.Kind)
	assert.Empty(t, smart.Products)
	require.Len(t, smart.Rules, 1)
	assert.Equal(t, "variant_price", smart.Rules[0].Column)

	remote.custom = nil
	res, err = engine.SyncCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.EqualValues(t, 1, countRows(t, db, &models.Collection{}))

	var links int64
	require.NoError(t, db.Table("collection_products").Count(&links).Error)
	assert.Zero(t, links)
}

func TestRefreshCollection(t *testing.T) {
	engine, remote, db := newTestEngine(t)
	seedProducts(t, engine, remote)
	ctx := context.Background()

	changes, err := engine.RefreshCollection(ctx, 77)
	require.NoError(t, err, "unknown collection is skipped")
	assert.True(t, changes.Empty())

	remote.custom = []shopify.Collection{{ID: 77, Title: "Sale"}}
	remote.members[77] = []int64{1}
	changes, err = engine.RefreshCollection(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, []int64{77}, changes.Collections)
	assert.Len(t, loadCollection(t, db, 77).Products, 1)

	remote.members[77] = []int64{2}
	_, err = engine.RefreshCollection(ctx, 77)
	require.NoError(t, err)
	c := loadCollection(t, db, 77)
	require.Len(t, c.Products, 1)
	assert.Equal(t, int64(2), c.Products[0].RemoteID)
}

func TestUpsertCollectionRejectsEmptyPayload(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	for _, remote := range []*shopify.Collection{nil, {Title: "No id"}} {
		changes, err := engine.UpsertCollection(ctx, remote)
		assert.True(t, apperrors.IsValidation(err))
		assert.True(t, changes.Empty())
	}
}

func TestDeleteProductUnlinksCollections(t *testing.T) {
	engine, remote, db := newTestEngine(t)
	seedProducts(t, engine, remote)
	ctx := context.Background()

	remote.custom = []shopify.Collection{{ID: 50, Title: "Featured"}}
	remote.members[50] = []int64{1, 2}
	_, err := engine.RefreshCollection(ctx, 50)
	require.NoError(t, err)

	_, err = engine.DeleteProduct(ctx, 1)
	require.NoError(t, err)
	c := loadCollection(t, db, 50)
	require.Len(t, c.Products, 1)
	assert.Equal(t, int64(2), c.Products[0].RemoteID)
}
