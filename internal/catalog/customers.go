package catalog

import (
	"context"
	"errors"
	"fmt"

	"shopmirror/internal/models"
	"shopmirror/internal/pager"
	"shopmirror/internal/services/shopify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (e *Engine) UpsertCustomer(ctx context.Context, remote *shopify.Customer) (models.ChangeSet, error) {
	if remote.ID == 0 {
		return models.ChangeSet{}, validationError("customer payload has no id")
	}
	incoming := e.transformer.TransformCustomer(remote)

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		err := tx.Where("remote_id = ?", incoming.RemoteID).First(&customer).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		customer.RemoteID = incoming.RemoteID
		customer.Email = incoming.Email
		customer.FirstName = incoming.FirstName
		customer.LastName = incoming.LastName
		customer.State = incoming.State
		customer.AcceptsMarketing = incoming.AcceptsMarketing
		customer.RemoteUpdatedAt = incoming.RemoteUpdatedAt
		return tx.Save(&customer).Error
	})
	if err != nil {
		return models.ChangeSet{}, fmt.Errorf("upsert customer %d: %w", remote.ID, err)
	}
	return models.ChangeSet{Customers: []int64{remote.ID}}, nil
}

func (e *Engine) DeleteCustomer(ctx context.Context, remoteID int64) (models.ChangeSet, error) {
	res := e.db.WithContext(ctx).Where("remote_id = ?", remoteID).Delete(&models.Customer{})
	if res.Error != nil {
		return models.ChangeSet{}, fmt.Errorf("delete customer %d: %w", remoteID, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ChangeSet{}, nil
	}
	return models.ChangeSet{Customers: []int64{remoteID}}, nil
}

// SyncCustomers mirrors customers updated since the last successful run and
// removes the ones the remote no longer lists.
func (e *Engine) SyncCustomers(ctx context.Context) (Result, error) {
	var res Result
	started := e.now()

	since, err := e.watermarks.Get(ctx, string(KindCustomers))
	if err != nil {
		return res, err
	}

	pages := pager.New(e.remote.ListCustomers, e.listParams(since))
	for pages.Next(ctx) {
		for i := range pages.Page() {
			remote := &pages.Page()[i]
			changes, err := e.UpsertCustomer(ctx, remote)
			if err != nil {
				if skippable(err) {
					res.Skipped++
					e.logger.Warn("skipping customer", zap.Int64("remote_id", remote.ID), zap.Error(err))
					continue
				}
				return res, err
			}
			res.Upserted++
			res.Changes.Merge(changes)
		}
	}
	if err := pages.Err(); err != nil {
		return res, fmt.Errorf("customer sync aborted: %w", err)
	}

	listing, err := pager.All(ctx, e.remote.ListCustomers, e.idParams())
	if err != nil {
		return res, fmt.Errorf("customer sweep aborted: %w", err)
	}
	live := make(map[int64]bool, len(listing))
	for _, c := range listing {
		live[c.ID] = true
	}

	var local []models.Customer
	if err := e.db.WithContext(ctx).Select("id", "remote_id").Find(&local).Error; err != nil {
		return res, fmt.Errorf("load local customers: %w", err)
	}
	for _, c := range local {
		if live[c.RemoteID] {
			continue
		}
		changes, err := e.DeleteCustomer(ctx, c.RemoteID)
		if err != nil {
			return res, err
		}
		res.Deleted++
		res.Changes.Merge(changes)
	}

	if err := e.watermarks.Set(ctx, string(KindCustomers), started); err != nil {
		return res, err
	}
	e.logger.Info("customer sync finished",
		zap.Int("upserted", res.Upserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("deleted", res.Deleted),
	)
	return res, nil
}
