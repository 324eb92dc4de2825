package search

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"shopmirror/internal/models"
	"shopmirror/internal/services/shopify"
	apperrors "shopmirror/pkg/errors"

	"gorm.io/gorm"
)

// FilterHook narrows the query further. Hooks only run for show=available.
type FilterHook func(q *gorm.DB, f Filter) *gorm.DB

// PublishedVendorsOnly hides products of vendors marked unpublished.
func PublishedVendorsOnly(q *gorm.DB, f Filter) *gorm.DB {
	return q.Where("NOT EXISTS (SELECT 1 FROM vendors WHERE vendors.slug = products.vendor_slug AND vendors.published = ?)", false)
}

type Page struct {
	Count int64            `json:"count"`
	Items []models.Product `json:"items"`
}

type Builder struct {
	db    *gorm.DB
	hooks []FilterHook
	now   func() time.Time
}

func NewBuilder(db *gorm.DB, hooks ...FilterHook) *Builder {
	return &Builder{db: db, hooks: hooks, now: func() time.Time { return time.Now().UTC() }}
}

// Search runs f and returns one page of matching products with the total count.
func (b *Builder) Search(ctx context.Context, f Filter) (*Page, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	q, manual, err := b.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	page, perPage := f.limits()

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, err
	}

	items := []models.Product{}
	if f.Sort == SortManual && len(manual) > 0 {
		// the manual order lives outside the database, so sort before paging
		if err := preload(q).Order("products.title ASC, products.id ASC").Find(&items).Error; err != nil {
			return nil, err
		}
		sortManual(items, manual)
		items = pageOf(items, page, perPage)
	} else {
		err := preload(q).Order(orderBy(f.Sort)).
			Offset((page - 1) * perPage).Limit(perPage).
			Find(&items).Error
		if err != nil {
			return nil, err
		}
	}
	return &Page{Count: count, Items: items}, nil
}

// Product loads one product by its Shopify id, children included. It ignores
// publication so admin tooling can inspect hidden products.
func (b *Builder) Product(ctx context.Context, remoteID int64) (*models.Product, error) {
	var product models.Product
	err := preload(b.db.WithContext(ctx)).First(&product, "remote_id = ?", remoteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperrors.ErrNotFound{Resource: "product", ID: strconv.FormatInt(remoteID, 10)}
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Query builds the filtered product query without order or paging, plus the
// manual order context when the filter names a collection.
func (b *Builder) Query(ctx context.Context, f Filter) (*gorm.DB, []int64, error) {
	q := b.db.WithContext(ctx).Model(&models.Product{})
	manual := f.ManualOrder

	if f.Show != ShowAll {
		q = q.Where("products.published_at IS NOT NULL AND products.published_at <= ?", b.now()).
			Where("(products.is_available = ? OR products.is_preorder = ?)", true, true)
		for _, hook := range b.hooks {
			q = hook(q, f)
		}
	}

	if f.MinPrice != nil {
		q = q.Where("products.low_price >= ?", f.MinPrice.InexactFloat64())
	}
	if f.MaxPrice != nil {
		q = q.Where("products.low_price <= ?", f.MaxPrice.InexactFloat64())
	}

	if f.Vendor != "" {
		q = q.Where("(products.vendor_slug = ? OR LOWER(products.vendor) = ?)",
			shopify.VendorSlug(f.Vendor), strings.ToLower(f.Vendor))
	}

	for _, expr := range f.Tags {
		cond, args := tagCondition(expr)
		if cond != "" {
			q = q.Where(cond, args...)
		}
	}

	if f.CollectionID != 0 {
		var collection models.Collection
		err := b.db.WithContext(ctx).Where("remote_id = ?", f.CollectionID).First(&collection).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &apperrors.ErrNotFound{Resource: "collection", ID: strconv.FormatInt(f.CollectionID, 10)}
		}
		if err != nil {
			return nil, nil, err
		}

		if collection.Kind == models.CollectionSmart {
			cond, args, err := rulesCondition(collection.Rules, collection.Disjunctive)
			if err != nil {
				return nil, nil, err
			}
			if cond != "" {
				q = q.Where(cond, args...)
			}
		} else {
			q = q.Where("products.id IN (SELECT product_id FROM collection_products WHERE collection_id = ?)", collection.ID)
		}
		if len(manual) == 0 {
			manual = collection.ProductOrder
		}
	}

	cond, args, err := rulesCondition(f.Rules, f.Disjunctive)
	if err != nil {
		return nil, nil, err
	}
	if cond != "" {
		q = q.Where(cond, args...)
	}

	return q.Session(&gorm.Session{}), manual, nil
}

// tagCondition matches each term as a case-insensitive substring of a tag name.
func tagCondition(expr string) (string, []interface{}) {
	groups := tagGroups(expr)
	if len(groups) == 0 {
		return "", nil
	}
	var alts []string
	var args []interface{}
	for _, terms := range groups {
		var all []string
		for _, term := range terms {
			all = append(all, tagExists)
			args = append(args, "%"+escapeLike(term)+"%")
		}
		alts = append(alts, "("+strings.Join(all, " AND ")+")")
	}
	return "(" + strings.Join(alts, " OR ") + ")", args
}

const tagExists = `EXISTS (SELECT 1 FROM product_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.product_id = products.id AND LOWER(t.name) LIKE ? ESCAPE '\')`

func orderBy(sortKey string) string {
	switch sortKey {
	case SortTitleDesc:
		return "products.title DESC, products.id DESC"
	case SortPriceAsc:
		return "products.low_price ASC, products.id ASC"
	case SortPriceDesc:
		return "products.low_price DESC, products.id DESC"
	case SortDateAsc:
		return "products.remote_created_at ASC, products.id ASC"
	case SortDateDesc:
		return "products.remote_created_at DESC, products.id DESC"
	default:
		return "products.title ASC, products.id ASC"
	}
}

func preload(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Tags")
}

// sortManual orders items by their position in order. Items missing from
// order compare as before anything, including each other.
func sortManual(items []models.Product, order []int64) {
	pos := make(map[int64]int, len(order))
	for i, id := range order {
		if _, ok := pos[id]; !ok {
			pos[id] = i
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, okA := pos[items[i].RemoteID]
		if !okA {
			return true
		}
		b, okB := pos[items[j].RemoteID]
		if !okB {
			return false
		}
		return a < b
	})
}

func pageOf(items []models.Product, page, perPage int) []models.Product {
	start := (page - 1) * perPage
	if start >= len(items) {
		return []models.Product{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
