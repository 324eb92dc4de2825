package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"shopmirror/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VendorScope narrows a vendor pass. The zero value refreshes every vendor.
type VendorScope struct {
	// Slugs limits the pass to these vendors.
	Slugs []string
	// KeepEmpty leaves vendors without products in place.
	KeepEmpty bool
}

func (s VendorScope) scoped() bool {
	return len(s.Slugs) > 0
}

type vendorAggregate struct {
	title string
	types map[string]struct{}
	tags  map[string]struct{}
}

// SyncVendors rebuilds vendor rows from the mirrored products. New vendors
// are published; the published and pinned flags of existing vendors are kept.
// Unpinned vendors left without products are removed.
func (e *Engine) SyncVendors(ctx context.Context, scope VendorScope) (models.ChangeSet, error) {
	var changes models.ChangeSet

	groups, err := e.aggregateVendors(ctx, scope)
	if err != nil {
		return changes, err
	}

	slugs := make([]string, 0, len(groups))
	for s := range groups {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range slugs {
			agg := groups[s]
			types := sortedKeys(agg.types)
			tags := sortedKeys(agg.tags)

			var vendor models.Vendor
			err := tx.Where("slug = ?", s).First(&vendor).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				vendor = models.Vendor{Slug: s, Published: true}
			case err != nil:
				return err
			default:
				if vendor.Title == agg.title && slices.Equal([]string(vendor.Types), types) && slices.Equal([]string(vendor.Tags), tags) {
					continue
				}
			}

			vendor.Title = agg.title
			vendor.Types = types
			vendor.Tags = tags
			if err := tx.Save(&vendor).Error; err != nil {
				return fmt.Errorf("save vendor %s: %w", s, err)
			}
			changes.Vendors = append(changes.Vendors, s)
		}

		if scope.KeepEmpty {
			return nil
		}

		q := tx.Where("pinned = ?", false)
		if scope.scoped() {
			q = q.Where("slug IN ?", scope.Slugs)
		}
		var candidates []models.Vendor
		if err := q.Find(&candidates).Error; err != nil {
			return err
		}
		for _, v := range candidates {
			if _, ok := groups[v.Slug]; ok {
				continue
			}
			if err := tx.Delete(&v).Error; err != nil {
				return fmt.Errorf("delete vendor %s: %w", v.Slug, err)
			}
			e.logger.Info("vendor removed", zap.String("slug", v.Slug))
			changes.Vendors = append(changes.Vendors, v.Slug)
		}
		return nil
	})
	if err != nil {
		return models.ChangeSet{}, fmt.Errorf("vendor sync failed: %w", err)
	}

	var out models.ChangeSet
	out.Merge(changes)
	return out, nil
}

func (e *Engine) aggregateVendors(ctx context.Context, scope VendorScope) (map[string]*vendorAggregate, error) {
	type productRow struct {
		Vendor      string
		VendorSlug  string
		ProductType string
	}
	type tagRow struct {
		VendorSlug string
		Name       string
	}

	pq := e.db.WithContext(ctx).Model(&models.Product{}).
		Select("vendor, vendor_slug, product_type").
		Where("vendor_slug <> ''")
	if scope.scoped() {
		pq = pq.Where("vendor_slug IN ?", scope.Slugs)
	}
	var products []productRow
	if err := pq.Order("id").Scan(&products).Error; err != nil {
		return nil, fmt.Errorf("load vendor products: %w", err)
	}

	tq := e.db.WithContext(ctx).Table("products").
		Select("products.vendor_slug, tags.name").
		Joins("JOIN product_tags ON product_tags.product_id = products.id").
		Joins("JOIN tags ON tags.id = product_tags.tag_id").
		Where("products.vendor_slug <> ''")
	if scope.scoped() {
		tq = tq.Where("products.vendor_slug IN ?", scope.Slugs)
	}
	var tags []tagRow
	if err := tq.Scan(&tags).Error; err != nil {
		return nil, fmt.Errorf("load vendor tags: %w", err)
	}

	groups := map[string]*vendorAggregate{}
	for _, p := range products {
		agg, ok := groups[p.VendorSlug]
		if !ok {
			agg = &vendorAggregate{title: p.Vendor, types: map[string]struct{}{}, tags: map[string]struct{}{}}
			groups[p.VendorSlug] = agg
		}
		if p.ProductType != "" {
			agg.types[p.ProductType] = struct{}{}
		}
	}
	for _, t := range tags {
		if agg, ok := groups[t.VendorSlug]; ok {
			agg.tags[t.Name] = struct{}{}
		}
	}
	return groups, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
