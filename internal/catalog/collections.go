package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"shopmirror/internal/models"
	"shopmirror/internal/pager"
	"shopmirror/internal/services/shopify"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertCollection stores a collection with its remote product order. Custom
// collections also get explicit product links; smart collections are
// resolved from their rules at query time.
func (e *Engine) UpsertCollection(ctx context.Context, remote *shopify.Collection) (models.ChangeSet, error) {
	if remote == nil || remote.ID == 0 {
		return models.ChangeSet{}, validationError("collection payload has no id")
	}
	incoming := e.transformer.TransformCollection(remote)

	members, err := pager.All(ctx, func(ctx context.Context, params url.Values) ([]shopify.Product, url.Values, error) {
		return e.remote.ListCollectionProducts(ctx, remote.ID, params)
	}, e.idParams())
	if err != nil {
		return models.ChangeSet{}, fmt.Errorf("list products of collection %d: %w", remote.ID, err)
	}
	order := make([]int64, 0, len(members))
	for _, m := range members {
		order = append(order, m.ID)
	}
	incoming.ProductOrder = order

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var collection models.Collection
		err := tx.Where("remote_id = ?", incoming.RemoteID).First(&collection).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		mergeCollection(&collection, incoming)
		if err := tx.Omit(clause.Associations).Save(&collection).Error; err != nil {
			return fmt.Errorf("save collection: %w", err)
		}

		links := tx.Model(&collection).Association("Products")
		if collection.Kind != models.CollectionCustom || len(order) == 0 {
			return links.Clear()
		}
		var products []models.Product
		if err := tx.Where("remote_id IN ?", order).Find(&products).Error; err != nil {
			return err
		}
		if len(products) == 0 {
			return links.Clear()
		}
		return links.Replace(products)
	})
	if err != nil {
		return models.ChangeSet{}, fmt.Errorf("upsert collection %d: %w", remote.ID, err)
	}
	return models.ChangeSet{Collections: []int64{remote.ID}}, nil
}

func mergeCollection(dst, src *models.Collection) {
	dst.RemoteID = src.RemoteID
	dst.Kind = src.Kind
	dst.Title = src.Title
	dst.Handle = src.Handle
	dst.BodyHTML = src.BodyHTML
	dst.PublishedAt = src.PublishedAt
	dst.SortOrder = src.SortOrder
	dst.Disjunctive = src.Disjunctive
	dst.Rules = src.Rules
	dst.ProductOrder = src.ProductOrder
	dst.RemoteUpdatedAt = src.RemoteUpdatedAt
}

// RefreshCollection re-reads one collection from the remote. A collection the
// remote no longer knows is logged and left alone; its delete event removes it.
func (e *Engine) RefreshCollection(ctx context.Context, remoteID int64) (models.ChangeSet, error) {
	remote, err := e.remote.GetCollection(ctx, remoteID)
	if err != nil {
		if skippable(err) {
			e.logger.Warn("collection refresh skipped", zap.Int64("remote_id", remoteID), zap.Error(err))
			return models.ChangeSet{}, nil
		}
		return models.ChangeSet{}, err
	}
	return e.UpsertCollection(ctx, remote)
}

func (e *Engine) DeleteCollection(ctx context.Context, remoteID int64) (models.ChangeSet, error) {
	var changes models.ChangeSet
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var collection models.Collection
		err := tx.Where("remote_id = ?", remoteID).First(&collection).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&collection).Association("Products").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&collection).Error; err != nil {
			return err
		}
		changes.Collections = []int64{remoteID}
		return nil
	})
	if err != nil {
		return models.ChangeSet{}, fmt.Errorf("delete collection %d: %w", remoteID, err)
	}
	return changes, nil
}

// SyncCollections mirrors custom and smart collections updated since the
// last successful run, then removes local collections the remote dropped.
func (e *Engine) SyncCollections(ctx context.Context) (Result, error) {
	var res Result
	started := e.now()

	since, err := e.watermarks.Get(ctx, string(KindCollections))
	if err != nil {
		return res, err
	}

	listings := []pager.FetchFunc[shopify.Collection]{e.remote.ListCustomCollections, e.remote.ListSmartCollections}
	for _, list := range listings {
		pages := pager.New(list, e.listParams(since))
		for pages.Next(ctx) {
			for i := range pages.Page() {
				remote := &pages.Page()[i]
				changes, err := e.UpsertCollection(ctx, remote)
				if err != nil {
					if skippable(err) {
						res.Skipped++
						e.logger.Warn("skipping collection", zap.Int64("remote_id", remote.ID), zap.Error(err))
						continue
					}
					return res, err
				}
				res.Upserted++
				res.Changes.Merge(changes)
			}
		}
		if err := pages.Err(); err != nil {
			return res, fmt.Errorf("collection sync aborted: %w", err)
		}
	}

	live := map[int64]bool{}
	for _, list := range listings {
		items, err := pager.All(ctx, list, e.idParams())
		if err != nil {
			return res, fmt.Errorf("collection sweep aborted: %w", err)
		}
		for _, c := range items {
			live[c.ID] = true
		}
	}

	var local []models.Collection
	if err := e.db.WithContext(ctx).Select("id", "remote_id").Find(&local).Error; err != nil {
		return res, fmt.Errorf("load local collections: %w", err)
	}
	for _, c := range local {
		if live[c.RemoteID] {
			continue
		}
		changes, err := e.DeleteCollection(ctx, c.RemoteID)
		if err != nil {
			return res, err
		}
		res.Deleted++
		res.Changes.Merge(changes)
	}

	if err := e.watermarks.Set(ctx, string(KindCollections), started); err != nil {
		return res, err
	}
	e.logger.Info("collection sync finished",
		zap.Int("upserted", res.Upserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("deleted", res.Deleted),
	)
	return res, nil
}
