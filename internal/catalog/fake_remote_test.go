package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"shopmirror/internal/database/dbtest"
	"shopmirror/internal/logger"
	"shopmirror/internal/queue"
	"shopmirror/internal/services/shopify"
	apperrors "shopmirror/pkg/errors"

	"gorm.io/gorm"
)

var syncTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeRemote serves in-memory listings with offset cursors.
type fakeRemote struct {
	mu          sync.Mutex
	products    []shopify.Product
	custom      []shopify.Collection
	smart       []shopify.Collection
	members     map[int64][]int64
	customers   []shopify.Customer
	webhooks    []shopify.Webhook
	listErr     error
	createdHook []string
}

func paginate[T any](items []T, params url.Values) ([]T, url.Values, error) {
	limit, _ := strconv.Atoi(params.Get("limit"))
	if limit <= 0 {
		limit = 250
	}
	start, _ := strconv.Atoi(params.Get("page_info"))
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	var next url.Values
	if end < len(items) {
		next = url.Values{"limit": {params.Get("limit")}, "page_info": {strconv.Itoa(end)}}
		if f := params.Get("fields"); f != "" {
			next.Set("fields", f)
		}
	}
	return append([]T(nil), items[start:end]...), next, nil
}

func (f *fakeRemote) ListProducts(ctx context.Context, params url.Values) ([]shopify.Product, url.Values, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	items := f.products
	if params.Get("fields") == "id" {
		items = make([]shopify.Product, 0, len(f.products))
		for _, p := range f.products {
			items = append(items, shopify.Product{ID: p.ID})
		}
	}
	return paginate(items, params)
}

func (f *fakeRemote) ListCollectionProducts(ctx context.Context, collectionID int64, params url.Values) ([]shopify.Product, url.Values, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]shopify.Product, 0, len(f.members[collectionID]))
	for _, id := range f.members[collectionID] {
		items = append(items, shopify.Product{ID: id})
	}
	return paginate(items, params)
}

func (f *fakeRemote) ListCustomCollections(ctx context.Context, params url.Values) ([]shopify.Collection, url.Values, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	return paginate(f.custom, params)
}

func (f *fakeRemote) ListSmartCollections(ctx context.Context, params url.Values) ([]shopify.Collection, url.Values, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	items := make([]shopify.Collection, 0, len(f.smart))
	for _, c := range f.smart {
		c.Smart = true
		items = append(items, c)
	}
	return paginate(items, params)
}

func (f *fakeRemote) GetCollection(ctx context.Context, id int64) (*shopify.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.smart {
		if c.ID == id {
			c.Smart = true
			return &c, nil
		}
	}
	for _, c := range f.custom {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, &apperrors.ErrNotFound{Resource: "collection", ID: strconv.FormatInt(id, 10)}
}

func (f *fakeRemote) ListCustomers(ctx context.Context, params url.Values) ([]shopify.Customer, url.Values, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	return paginate(f.customers, params)
}

func (f *fakeRemote) ListWebhooks(ctx context.Context, params url.Values) ([]shopify.Webhook, url.Values, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return paginate(f.webhooks, params)
}

func (f *fakeRemote) CreateWebhook(ctx context.Context, topic, address string) (*shopify.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := shopify.Webhook{ID: int64(len(f.webhooks) + 1), Topic: topic, Address: address, Format: "json"}
	f.webhooks = append(f.webhooks, w)
	f.createdHook = append(f.createdHook, topic)
	return &w, nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeRemote, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t)
	remote := &fakeRemote{members: map[int64][]int64{}}
	engine := NewEngine(db, remote, queue.New(db), logger.NewNop(), Options{PageSize: 2})
	engine.now = func() time.Time { return syncTime }
	return engine, remote, db
}

func shopVariant(id int64, price string, qty int) shopify.Variant {
	return shopify.Variant{
		ID:                id,
		Price:             price,
		Position:          int(id % 100),
		InventoryPolicy:   "deny",
		InventoryQuantity: qty,
		Sku:               fmt.Sprintf("SKU-%d", id),
	}
}

func shopProduct(id int64, vendor, tags string, variants ...shopify.Variant) shopify.Product {
	return shopify.Product{
		ID:          id,
		Title:       fmt.Sprintf("Product %d", id),
		Handle:      fmt.Sprintf("product-%d", id),
		Vendor:      vendor,
		ProductType: "Shoes",
		Tags:        tags,
		Variants:    variants,
		UpdatedAt:   syncTime.Add(-time.Hour),
	}
}
