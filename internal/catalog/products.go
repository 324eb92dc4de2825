package catalog

import (
	"context"
	"errors"
	"fmt"

	"shopmirror/internal/models"
	"shopmirror/internal/pager"
	"shopmirror/internal/services/shopify"
	apperrors "shopmirror/pkg/errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertProduct normalizes one remote product and writes it, its variants,
// images and tag links in a single transaction. Applying the same payload
// twice leaves the same rows.
func (e *Engine) UpsertProduct(ctx context.Context, remote *shopify.Product) (models.ChangeSet, error) {
	incoming, err := e.transformer.TransformProduct(remote)
	if err != nil {
		return models.ChangeSet{}, err
	}
	// network I/O stays outside the transaction
	incoming.Images = e.images.MaterializeAll(ctx, incoming.RemoteID, incoming.Images)

	touched := models.ChangeSet{
		Products: []int64{incoming.RemoteID},
		Vendors:  []string{incoming.VendorSlug},
		Tags:     incoming.TagNames,
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		err := tx.Where("remote_id = ?", incoming.RemoteID).First(&product).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if product.ID != 0 && product.VendorSlug != incoming.VendorSlug {
			touched.Vendors = append(touched.Vendors, product.VendorSlug)
		}

		mergeProduct(&product, incoming)
		if err := tx.Omit(clause.Associations).Save(&product).Error; err != nil {
			return fmt.Errorf("save product: %w", err)
		}
		if err := saveVariants(tx, product.ID, incoming.Variants); err != nil {
			return err
		}
		if err := saveImages(tx, product.ID, incoming.Images); err != nil {
			return err
		}

		tags, err := resolveTags(tx, incoming.TagNames)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			return tx.Model(&product).Association("Tags").Clear()
		}
		return tx.Model(&product).Association("Tags").Replace(tags)
	})
	if err != nil {
		return models.ChangeSet{}, fmt.Errorf("upsert product %d: %w", incoming.RemoteID, err)
	}

	var changes models.ChangeSet
	changes.Merge(touched)
	return changes, nil
}

// mergeProduct copies the remotely owned fields of src onto dst, leaving
// local identity and timestamps alone.
func mergeProduct(dst, src *models.Product) {
	dst.RemoteID = src.RemoteID
	dst.Title = src.Title
	dst.Handle = src.Handle
	dst.BodyHTML = src.BodyHTML
	dst.Vendor = src.Vendor
	dst.VendorSlug = src.VendorSlug
	dst.ProductType = src.ProductType
	dst.IsAvailable = src.IsAvailable
	dst.IsPreorder = src.IsPreorder
	dst.LowPrice = src.LowPrice
	dst.Options = src.Options
	dst.PublishedAt = src.PublishedAt
	dst.RemoteCreatedAt = src.RemoteCreatedAt
	dst.RemoteUpdatedAt = src.RemoteUpdatedAt
}

func saveVariants(tx *gorm.DB, productID uint, incoming []models.Variant) error {
	ids := make([]int64, 0, len(incoming))
	for _, v := range incoming {
		ids = append(ids, v.RemoteID)
	}

	// variants are matched across products so one moved upstream keeps its row
	existing := map[int64]models.Variant{}
	if len(ids) > 0 {
		var rows []models.Variant
		if err := tx.Where("remote_id IN ?", ids).Find(&rows).Error; err != nil {
			return fmt.Errorf("load variants: %w", err)
		}
		for _, r := range rows {
			existing[r.RemoteID] = r
		}
	}

	for _, v := range incoming {
		v.ProductID = productID
		if old, ok := existing[v.RemoteID]; ok {
			v.ID = old.ID
			v.CreatedAt = old.CreatedAt
		}
		if err := tx.Save(&v).Error; err != nil {
			return fmt.Errorf("save variant %d: %w", v.RemoteID, err)
		}
	}

	stale := tx.Where("product_id = ?", productID)
	if len(ids) > 0 {
		stale = stale.Where("remote_id NOT IN ?", ids)
	}
	if err := stale.Delete(&models.Variant{}).Error; err != nil {
		return fmt.Errorf("delete stale variants: %w", err)
	}
	return nil
}

func saveImages(tx *gorm.DB, productID uint, incoming []models.Image) error {
	var rows []models.Image
	if err := tx.Where("product_id = ?", productID).Find(&rows).Error; err != nil {
		return fmt.Errorf("load images: %w", err)
	}
	existing := make(map[int64]models.Image, len(rows))
	for _, r := range rows {
		existing[r.RemoteID] = r
	}

	keep := make([]uint, 0, len(incoming))
	for _, img := range incoming {
		img.ProductID = productID
		if old, ok := existing[img.RemoteID]; ok {
			img.ID = old.ID
			img.CreatedAt = old.CreatedAt
		}
		if err := tx.Save(&img).Error; err != nil {
			return fmt.Errorf("save image %d: %w", img.RemoteID, err)
		}
		keep = append(keep, img.ID)
	}

	stale := tx.Where("product_id = ?", productID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.Image{}).Error; err != nil {
		return fmt.Errorf("delete stale images: %w", err)
	}
	return nil
}

// resolveTags matches names case-sensitively against existing tags and creates the rest.
func resolveTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var found []models.Tag
	if err := tx.Where("name IN ?", names).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	byName := make(map[string]models.Tag, len(found))
	for _, t := range found {
		byName[t.Name] = t
	}

	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag, ok := byName[name]
		if !ok {
			tag = models.Tag{Name: name}
			if err := tx.Create(&tag).Error; err != nil {
				return nil, fmt.Errorf("create tag %q: %w", name, err)
			}
			byName[name] = tag
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// DeleteProduct removes a product with its variants, images and links.
// Deleting a product that is not mirrored is a no-op.
func (e *Engine) DeleteProduct(ctx context.Context, remoteID int64) (models.ChangeSet, error) {
	var changes models.ChangeSet
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		err := tx.Where("remote_id = ?", remoteID).First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Where("product_id = ?", product.ID).Delete(&models.Variant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.Image{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&product).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM collection_products WHERE product_id = ?", product.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&product).Error; err != nil {
			return err
		}

		changes = models.ChangeSet{Products: []int64{remoteID}, Vendors: []string{product.VendorSlug}}
		return nil
	})
	if err != nil {
		return models.ChangeSet{}, fmt.Errorf("delete product %d: %w", remoteID, err)
	}
	return changes, nil
}

// SyncProducts pulls every published product updated since the last
// successful run, sweeps orphans and refreshes vendors. The watermark only
// moves when all of that succeeds.
func (e *Engine) SyncProducts(ctx context.Context) (Result, error) {
	var res Result
	started := e.now()

	since, err := e.watermarks.Get(ctx, string(KindProducts))
	if err != nil {
		return res, err
	}
	params := e.listParams(since)
	params.Set("published_status", "published")

	pages := pager.New(e.remote.ListProducts, params)
	for pages.Next(ctx) {
		for i := range pages.Page() {
			remote := &pages.Page()[i]
			changes, err := e.UpsertProduct(ctx, remote)
			if err != nil {
				if skippable(err) {
					res.Skipped++
					e.logger.Warn("skipping product", zap.Int64("remote_id", remote.ID), zap.Error(err))
					continue
				}
				return res, err
			}
			res.Upserted++
			res.Changes.Merge(changes)
		}
	}
	if err := pages.Err(); err != nil {
		return res, fmt.Errorf("product sync aborted: %w", err)
	}

	sweep := e.idParams()
	sweep.Set("published_status", "published")
	listing, err := pager.All(ctx, e.remote.ListProducts, sweep)
	if err != nil {
		return res, fmt.Errorf("product sweep aborted: %w", err)
	}
	live := make(map[int64]bool, len(listing))
	for _, p := range listing {
		live[p.ID] = true
	}

	var local []models.Product
	if err := e.db.WithContext(ctx).Select("id", "remote_id").Find(&local).Error; err != nil {
		return res, fmt.Errorf("load local products: %w", err)
	}
	for _, p := range local {
		if live[p.RemoteID] {
			continue
		}
		changes, err := e.DeleteProduct(ctx, p.RemoteID)
		if err != nil {
			return res, err
		}
		res.Deleted++
		res.Changes.Merge(changes)
	}

	vendorChanges, err := e.SyncVendors(ctx, VendorScope{})
	if err != nil {
		return res, err
	}
	res.Changes.Merge(vendorChanges)

	if err := e.watermarks.Set(ctx, string(KindProducts), started); err != nil {
		return res, err
	}
	e.logger.Info("product sync finished",
		zap.Int("upserted", res.Upserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("deleted", res.Deleted),
	)
	return res, nil
}

// skippable errors affect one remote item and must not abort a batch.
func skippable(err error) bool {
	return apperrors.IsNotFound(err) || apperrors.IsValidation(err)
}
