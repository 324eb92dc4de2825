package catalog

import (
	"context"
	"testing"

	"shopmirror/internal/models"
	"shopmirror/internal/services/shopify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncVendorsKeepsCuratedFlags(t *testing.T) {
	engine, remote, db := newTestEngine(t)
	ctx := context.Background()
	remote.products = []shopify.Product{
		shopProduct(1, "Acme", "", shopVariant(101, "10.00", 1)),
		shopProduct(2, "Bolt", "", shopVariant(201, "10.00", 1)),
		shopProduct(3, "Cargo", "", shopVariant(301, "10.00", 1)),
	}
	_, err := engine.SyncProducts(ctx)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Vendor{}).Where("slug = ?", "acme").Update("published", false).Error)
	require.NoError(t, db.Model(&models.Vendor{}).Where("slug = ?", "bolt").Update("pinned", true).Error)

	remote.products = remote.products[:1]
	remote.products[0].ProductType = "Boots"
	_, err = engine.SyncProducts(ctx)
	require.NoError(t, err)

	var vendors []models.Vendor
	require.NoError(t, db.Order("slug").Find(&vendors).Error)
	require.Len(t, vendors, 2, "cargo removed, pinned bolt kept")

	assert.Equal(t, "acme", vendors[0].Slug)
	assert.False(t, vendors[0].Published, "curated flag survives a resync")
	assert.Equal(t, []string{"Boots"}, []string(vendors[0].Types))
	assert.Equal(t, "bolt", vendors[1].Slug)
	assert.True(t, vendors[1].Pinned)
}

func TestSyncVendorsScoped(t *testing.T) {
	engine, remote, db := newTestEngine(t)
	ctx := context.Background()
	remote.products = []shopify.Product{
		shopProduct(1, "Acme", "", shopVariant(101, "10.00", 1)),
		shopProduct(2, "Bolt", "", shopVariant(201, "10.00", 1)),
	}
	_, err := engine.SyncProducts(ctx)
	require.NoError(t, err)

	_, err = engine.DeleteProduct(ctx, 1)
	require.NoError(t, err)
	_, err = engine.DeleteProduct(ctx, 2)
	require.NoError(t, err)

	changes, err := engine.SyncVendors(ctx, VendorScope{Slugs: []string{"acme"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, changes.Vendors)

	var slugs []string
	require.NoError(t, db.Model(&models.Vendor{}).Order("slug").Pluck("slug", &slugs).Error)
	assert.Equal(t, []string{"bolt"}, slugs, "vendors outside the scope are untouched")

	_, err = engine.SyncVendors(ctx, VendorScope{Slugs: []string{"bolt"}, KeepEmpty: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countRows(t, db, &models.Vendor{}))
}
