// Package processors drains the durable work queue: verified webhooks and
// queued full syncs.
package processors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopmirror/internal/catalog"
	"shopmirror/internal/lock"
	"shopmirror/internal/logger"
	"shopmirror/internal/models"
	"shopmirror/internal/queue"
	"shopmirror/internal/services/shopify"
	"shopmirror/internal/worker/processors/export"
	apperrors "shopmirror/pkg/errors"

	"go.uber.org/zap"
)

// Catalog is the part of the sync engine the processor dispatches to.
type Catalog interface {
	UpsertProduct(ctx context.Context, p *shopify.Product) (models.ChangeSet, error)
	DeleteProduct(ctx context.Context, remoteID int64) (models.ChangeSet, error)
	SyncVendors(ctx context.Context, scope catalog.VendorScope) (models.ChangeSet, error)
	RefreshCollection(ctx context.Context, remoteID int64) (models.ChangeSet, error)
	DeleteCollection(ctx context.Context, remoteID int64) (models.ChangeSet, error)
	UpsertCustomer(ctx context.Context, c *shopify.Customer) (models.ChangeSet, error)
	DeleteCustomer(ctx context.Context, remoteID int64) (models.ChangeSet, error)
	RunSync(ctx context.Context, kind catalog.Kind) (catalog.Result, error)
}

type WorkQueue interface {
	Claim(ctx context.Context) (*models.QueueItem, error)
	Delete(ctx context.Context, id uint) error
	Release(ctx context.Context, id uint, cause error) error
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Hooks run around every dispatched item. An error from Before fails the
// item as if its handler had failed.
type Hooks struct {
	Before func(ctx context.Context, item *models.QueueItem) error
	After  func(ctx context.Context, item *models.QueueItem, changes models.ChangeSet, err error)
}

type Options struct {
	// MaxAttempts bounds retries; an item failing this often is dropped.
	MaxAttempts int
	// StaleClaimAfter returns claims older than this to the queue. It runs
	// under the processing lock, where no claim can belong to a live worker.
	// Zero disables it.
	StaleClaimAfter time.Duration
	Hooks           Hooks
}

type EventProcessor struct {
	queue       WorkQueue
	locker      lock.Locker
	catalog     Catalog
	publisher   export.Publisher
	hooks       Hooks
	maxAttempts int
	staleAfter  time.Duration
	logger      *logger.Logger
}

func NewEventProcessor(q WorkQueue, locker lock.Locker, c Catalog, publisher export.Publisher, log *logger.Logger, opts Options) *EventProcessor {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &EventProcessor{
		queue:       q,
		locker:      locker,
		catalog:     c,
		publisher:   publisher,
		hooks:       opts.Hooks,
		maxAttempts: maxAttempts,
		staleAfter:  opts.StaleClaimAfter,
		logger:      log.Named("processor"),
	}
}

// ProcessNext takes the processing lock, claims one item and handles it.
// It reports false when the lock is held elsewhere or the queue is empty.
func (p *EventProcessor) ProcessNext(ctx context.Context) (bool, error) {
	acquired, err := p.locker.Acquire(ctx, lock.WebhookProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to acquire processing lock: %w", err)
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		// the lock must go even when ctx was cancelled mid-item
		if err := p.locker.Release(context.WithoutCancel(ctx), lock.WebhookProcessing); err != nil {
			p.logger.Error("failed to release processing lock", zap.Error(err))
		}
	}()

	if p.staleAfter > 0 {
		n, err := p.queue.ReclaimStale(ctx, p.staleAfter)
		if err != nil {
			return false, err
		}
		if n > 0 {
			p.logger.Warn("reclaimed stale items", zap.Int64("count", n))
		}
	}

	item, err := p.queue.Claim(ctx)
	if errors.Is(err, queue.ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	log := p.logger.With(zap.Uint("item", item.ID), zap.String("topic", item.Topic), zap.Int("attempts", item.Attempts))
	changes, err := p.process(ctx, item)
	switch {
	case err == nil:
		if err := p.queue.Delete(ctx, item.ID); err != nil {
			return true, err
		}
		log.Debug("item processed")
		if err := p.publisher.Publish(ctx, item.Topic, changes); err != nil {
			log.Warn("failed to publish changes", zap.Error(err))
		}

	case permanent(err):
		log.Warn("dropping unprocessable item", zap.Error(err))
		if err := p.queue.Delete(ctx, item.ID); err != nil {
			return true, err
		}

	case item.Attempts+1 >= p.maxAttempts:
		log.Error("dropping item after repeated failures", zap.Error(err))
		if err := p.queue.Delete(ctx, item.ID); err != nil {
			return true, err
		}

	default:
		log.Warn("item failed, released for retry", zap.Error(err))
		if err := p.queue.Release(context.WithoutCancel(ctx), item.ID, err); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Drain processes items until the queue is empty, the lock is busy or max
// items were handled. It returns the number handled.
func (p *EventProcessor) Drain(ctx context.Context, max int) (int, error) {
	n := 0
	for max <= 0 || n < max {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := p.ProcessNext(ctx)
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		n++
	}
	return n, nil
}

func (p *EventProcessor) process(ctx context.Context, item *models.QueueItem) (models.ChangeSet, error) {
	if p.hooks.Before != nil {
		if err := p.hooks.Before(ctx, item); err != nil {
			return models.ChangeSet{}, err
		}
	}
	changes, err := p.Dispatch(ctx, item.Topic, []byte(item.Payload))
	if p.hooks.After != nil {
		p.hooks.After(ctx, item, changes, err)
	}
	return changes, err
}

// Dispatch applies one event to the local mirror. Topics with no local
// effect, such as order events, succeed without changes.
func (p *EventProcessor) Dispatch(ctx context.Context, topic string, payload []byte) (models.ChangeSet, error) {
	if strings.HasPrefix(topic, catalog.SyncTopicPrefix) {
		kind, err := catalog.ParseKind(strings.TrimPrefix(topic, catalog.SyncTopicPrefix))
		if err != nil {
			return models.ChangeSet{}, err
		}
		res, err := p.catalog.RunSync(ctx, kind)
		return res.Changes, err
	}

	switch topic {
	case "products/create", "products/update":
		var product shopify.Product
		if err := decode(payload, &product); err != nil {
			return models.ChangeSet{}, err
		}
		changes, err := p.catalog.UpsertProduct(ctx, &product)
		if err != nil {
			return changes, err
		}
		return p.refreshVendors(ctx, changes)

	case "products/delete":
		id, err := decodeID(payload)
		if err != nil {
			return models.ChangeSet{}, err
		}
		changes, err := p.catalog.DeleteProduct(ctx, id)
		if err != nil {
			return changes, err
		}
		return p.refreshVendors(ctx, changes)

	case "collections/create", "collections/update":
		id, err := decodeID(payload)
		if err != nil {
			return models.ChangeSet{}, err
		}
		return p.catalog.RefreshCollection(ctx, id)

	case "collections/delete":
		id, err := decodeID(payload)
		if err != nil {
			return models.ChangeSet{}, err
		}
		return p.catalog.DeleteCollection(ctx, id)

	case "customers/create", "customers/update":
		var customer shopify.Customer
		if err := decode(payload, &customer); err != nil {
			return models.ChangeSet{}, err
		}
		return p.catalog.UpsertCustomer(ctx, &customer)

	case "customers/delete":
		id, err := decodeID(payload)
		if err != nil {
			return models.ChangeSet{}, err
		}
		return p.catalog.DeleteCustomer(ctx, id)
	}

	p.logger.Debug("no local action for topic", zap.String("topic", topic))
	return models.ChangeSet{}, nil
}

// refreshVendors reruns the vendor pass for the vendors a product event touched.
func (p *EventProcessor) refreshVendors(ctx context.Context, changes models.ChangeSet) (models.ChangeSet, error) {
	if len(changes.Vendors) == 0 {
		return changes, nil
	}
	vendorChanges, err := p.catalog.SyncVendors(ctx, catalog.VendorScope{Slugs: changes.Vendors})
	if err != nil {
		return changes, err
	}
	changes.Merge(vendorChanges)
	return changes, nil
}

func decode(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &apperrors.ErrValidation{Message: fmt.Sprintf("invalid payload: %v", err)}
	}
	return nil
}

func decodeID(payload []byte) (int64, error) {
	var body shopify.DeletePayload
	if err := decode(payload, &body); err != nil {
		return 0, err
	}
	if body.ID == 0 {
		return 0, &apperrors.ErrValidation{Message: "payload has no id"}
	}
	return body.ID, nil
}

// permanent errors will fail the same way on every retry.
func permanent(err error) bool {
	return apperrors.IsValidation(err) || apperrors.IsNotFound(err)
}
