package catalog

import (
	"context"
	"testing"

	"shopmirror/internal/models"
	"shopmirror/internal/services/shopify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncCustomers(t *testing.T) {
	engine, remote, db := newTestEngine(t)
	ctx := context.Background()
	remote.customers = []shopify.Customer{
		{ID: 1, Email: "a@example.com", State: "enabled"},
		{ID: 2, Email: "b@example.com", State: "disabled"},
		{ID: 3, Email: "c@example.com"},
	}

	res, err := engine.RunSync(ctx, KindCustomers)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Upserted)

	remote.customers = remote.customers[1:]
	remote.customers[0].Email = "b@new.example.com"
	res, err = engine.RunSync(ctx, KindCustomers)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []int64{1, 2, 3}, res.Changes.Customers)

	var customers []models.Customer
	require.NoError(t, db.Order("remote_id").Find(&customers).Error)
	require.Len(t, customers, 2)
	assert.Equal(t, "b@new.example.com", customers[0].Email)
}

func TestUpsertCustomerRequiresID(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.UpsertCustomer(context.Background(), &shopify.Customer{Email: "x@example.com"})
	assert.Error(t, err)
}

func TestDeleteCustomerMissing(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	changes, err := engine.DeleteCustomer(context.Background(), 404)
	require.NoError(t, err)
	assert.True(t, changes.Empty())
}
