package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shopmirror/internal/database/dbtest"
	"shopmirror/internal/logger"
	"shopmirror/internal/models"
	"shopmirror/internal/services/shopify"
	apperrors "shopmirror/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRemote struct {
	checkout  *shopify.Checkout
	err       error
	completed bool
	items     []shopify.CheckoutLineItem
}

func (f *fakeRemote) CreateCheckout(ctx context.Context, items []shopify.CheckoutLineItem) (*shopify.Checkout, error) {
	f.items = items
	if f.err != nil {
		return nil, f.err
	}
	return f.checkout, nil
}

func (f *fakeRemote) CheckoutCompleted(ctx context.Context, id string) (bool, error) {
	return f.completed, nil
}

const session = "session-1"

func newTestService(t *testing.T) (*Service, *fakeRemote, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t)

	product := models.Product{RemoteID: 1, Title: "Shoe"}
	require.NoError(t, db.Create(&product).Error)
	for _, v := range []models.Variant{
		{RemoteID: 10, ProductID: product.ID, SKU: "SHOE-10", Price: decimal.NewFromInt(500)},
		{RemoteID: 11, ProductID: product.ID, SKU: "SHOE-11", Price: decimal.RequireFromString("12.50")},
	} {
		require.NoError(t, db.Create(&v).Error)
	}

	remote := &fakeRemote{checkout: &shopify.Checkout{ID: "abc", WebURL: "https://x/checkout/abc"}}
	svc := NewService(NewGormStore(db), NewCatalogVariants(db), remote, logger.NewNop())
	return svc, remote, db
}

func TestAddItemAdditiveAndAbsolute(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.AddItem(ctx, session, 10, 2, ModeAdditive)
	require.NoError(t, err)
	assert.True(t, res.ShowCart)
	assert.Equal(t, []string{session}, res.Changes.Carts)
	assert.Equal(t, StatePopulated, res.Cart.State())

	res, err = svc.AddItem(ctx, session, 10, 1, ModeAdditive)
	require.NoError(t, err)
	require.Len(t, res.Cart.Lines, 1, "one line per variant")
	assert.Equal(t, 3, res.Cart.Lines[0].Quantity)
	assert.Equal(t, "SHOE-10", res.Cart.Lines[0].SKU)

	res, err = svc.AddItem(ctx, session, 10, 5, ModeAbsolute)
	require.NoError(t, err)
	assert.False(t, res.ShowCart, "absolute edits do not open the cart")
	assert.Equal(t, 5, res.Cart.Lines[0].Quantity)
	assert.True(t, res.Cart.Total.Equal(decimal.NewFromInt(2500)))
}

func TestAddItemZeroQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.AddItem(ctx, session, 10, 0, ModeAdditive)
	require.NoError(t, err)
	assert.Empty(t, res.Cart.Lines)
	assert.True(t, res.Changes.Empty(), "no-op reports no change")

	_, err = svc.AddItem(ctx, session, 10, 2, ModeAdditive)
	require.NoError(t, err)
	res, err = svc.AddItem(ctx, session, 10, -2, ModeAdditive)
	require.NoError(t, err)
	assert.Empty(t, res.Cart.Lines)
	assert.Equal(t, StateEmpty, res.Cart.State())
}

func TestAddItemUnknownVariant(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.AddItem(context.Background(), session, 999, 1, ModeAdditive)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.AddItem(context.Background(), session, 0, 1, ModeAdditive)
	assert.True(t, apperrors.IsValidation(err))
}

func TestTotalFollowsLivePrice(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, session, 10, 2, ModeAdditive)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Variant{}).Where("remote_id = ?", 10).
		Update("price", decimal.NewFromInt(600)).Error)

	c, err := svc.Get(ctx, session)
	require.NoError(t, err)
	assert.True(t, c.Total.Equal(decimal.NewFromInt(1200)), "total is %s", c.Total)
}

func TestRemoveItem(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RemoveItem(ctx, session, 10)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.AddItem(ctx, session, 10, 1, ModeAdditive)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, session, 11, 2, ModeAdditive)
	require.NoError(t, err)

	res, err := svc.RemoveItem(ctx, session, 10)
	require.NoError(t, err)
	require.Len(t, res.Cart.Lines, 1)
	assert.Equal(t, int64(11), res.Cart.Lines[0].VariantID)
	assert.True(t, res.Cart.Total.Equal(decimal.NewFromInt(25)))
}

func TestCheckoutLifecycle(t *testing.T) {
	svc, remote, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, session, 10, 2, ModeAdditive)
	require.NoError(t, err)

	res, err := svc.Checkout(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, res.Cart.Checkout)
	assert.Equal(t, "abc", res.Cart.Checkout.ID)
	assert.Equal(t, "https://x/checkout/abc", res.Cart.Checkout.URL)
	assert.True(t, res.Cart.CheckoutStarted)
	assert.Equal(t, StateCheckoutStarted, res.Cart.State())

	require.Len(t, remote.items, 1)
	assert.Equal(t, shopify.EncodeVariantID(10), remote.items[0].VariantID)
	assert.Equal(t, 2, remote.items[0].Quantity)

	_, err = svc.AddItem(ctx, session, 11, 1, ModeAdditive)
	require.NoError(t, err, "edits stay legal while checkout is started")

	_, err = svc.Reset(ctx, session)
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, session)
	assert.ErrorIs(t, err, apperrors.ErrEmptyCart)
}

func TestCheckoutRejectedLeavesCart(t *testing.T) {
	svc, remote, _ := newTestService(t)
	ctx := context.Background()
	remote.err = &apperrors.ErrRemoteValidation{Messages: []string{"Variant is sold out"}}

	_, err := svc.AddItem(ctx, session, 10, 1, ModeAdditive)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, session)
	var rejected *apperrors.ErrCheckoutRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Variant is sold out", rejected.Message)

	c, err := svc.Get(ctx, session)
	require.NoError(t, err)
	assert.False(t, c.CheckoutStarted)
	assert.Empty(t, c.Lines[0].RemoteLineItemID, "failed checkout writes nothing")

	remote.err = &apperrors.ErrRemoteUnavailable{Op: "checkout", Err: errors.New("timeout")}
	_, err = svc.Checkout(ctx, session)
	assert.True(t, apperrors.IsRemoteUnavailable(err))
}

func TestStopCheckout(t *testing.T) {
	svc, remote, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, session, 10, 1, ModeAdditive)
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, session)
	require.NoError(t, err)

	res, err := svc.StopCheckout(ctx, session)
	require.NoError(t, err)
	assert.False(t, res.Cart.CheckoutStarted)
	assert.Nil(t, res.Cart.Checkout)
	assert.Equal(t, StatePopulated, res.Cart.State())

	_, err = svc.Checkout(ctx, session)
	require.NoError(t, err)
	remote.completed = true
	res, err = svc.StopCheckout(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, res.Cart.State(), "completed checkout empties the cart")
}

func TestConcurrentAddsSerialize(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, session, 11, 1, ModeAdditive)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := svc.Get(ctx, session)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 10, c.Lines[0].Quantity)
	assert.Empty(t, svc.sessions, "session locks are released")
}
