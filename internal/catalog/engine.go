// Package catalog mirrors the remote catalog into local storage, through full
// syncs and through single-entity webhook updates that share one normalization path.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"shopmirror/internal/logger"
	"shopmirror/internal/services/shopify"
	apperrors "shopmirror/pkg/errors"

	"gorm.io/gorm"
)

type Kind string

const (
	KindProducts    Kind = "products"
	KindCollections Kind = "collections"
	KindVendors     Kind = "vendors"
	KindCustomers   Kind = "customers"
)

// SyncTopicPrefix prefixes queue topics that carry full sync jobs.
const SyncTopicPrefix = "sync/"

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindProducts, KindCollections, KindVendors, KindCustomers:
		return k, nil
	}
	return "", &apperrors.ErrValidation{
		Message: fmt.Sprintf("unknown sync kind %q", s),
		Fields:  map[string]string{"kind": s},
	}
}

func (k Kind) Topic() string {
	return SyncTopicPrefix + string(k)
}

// Remote is the part of the Shopify client the engine reads from.
type Remote interface {
	ListProducts(ctx context.Context, params url.Values) ([]shopify.Product, url.Values, error)
	ListCollectionProducts(ctx context.Context, collectionID int64, params url.Values) ([]shopify.Product, url.Values, error)
	ListCustomCollections(ctx context.Context, params url.Values) ([]shopify.Collection, url.Values, error)
	ListSmartCollections(ctx context.Context, params url.Values) ([]shopify.Collection, url.Values, error)
	GetCollection(ctx context.Context, id int64) (*shopify.Collection, error)
	ListCustomers(ctx context.Context, params url.Values) ([]shopify.Customer, url.Values, error)
	ListWebhooks(ctx context.Context, params url.Values) ([]shopify.Webhook, url.Values, error)
	CreateWebhook(ctx context.Context, topic, address string) (*shopify.Webhook, error)
}

// Queue is used to schedule full syncs.
type Queue interface {
	EnqueueUnique(ctx context.Context, topic string, payload []byte) (bool, error)
}

type Engine struct {
	db          *gorm.DB
	remote      Remote
	queue       Queue
	transformer *shopify.Transformer
	images      *ImageMaterializer
	watermarks  *WatermarkStore
	logger      *logger.Logger
	pageSize    int
	now         func() time.Time
}

type Options struct {
	PageSize int
	Images   *ImageMaterializer
}

func NewEngine(db *gorm.DB, remote Remote, queue Queue, log *logger.Logger, opts Options) *Engine {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 250
	}
	return &Engine{
		db:          db,
		remote:      remote,
		queue:       queue,
		transformer: shopify.NewTransformer(),
		images:      opts.Images,
		watermarks:  NewWatermarkStore(db),
		logger:      log.Named("catalog"),
		pageSize:    pageSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RequestSync queues a full sync of kind. It fails with ErrConcurrentSync when
// a sync of that kind is already waiting or running.
func (e *Engine) RequestSync(ctx context.Context, kind Kind) error {
	queued, err := e.queue.EnqueueUnique(ctx, kind.Topic(), []byte("{}"))
	if err != nil {
		return err
	}
	if !queued {
		return &apperrors.ErrConcurrentSync{Kind: string(kind)}
	}
	return nil
}

// RunSync performs the full sync of kind in the calling goroutine.
func (e *Engine) RunSync(ctx context.Context, kind Kind) (Result, error) {
	switch kind {
	case KindProducts:
		return e.SyncProducts(ctx)
	case KindCollections:
		return e.SyncCollections(ctx)
	case KindVendors:
		changes, err := e.SyncVendors(ctx, VendorScope{})
		return Result{Changes: changes}, err
	case KindCustomers:
		return e.SyncCustomers(ctx)
	}
	return Result{}, &apperrors.ErrValidation{Message: fmt.Sprintf("unknown sync kind %q", kind)}
}

func (e *Engine) listParams(since time.Time) url.Values {
	return url.Values{
		"limit":          {strconv.Itoa(e.pageSize)},
		"updated_at_min": {since.UTC().Format(time.RFC3339)},
	}
}

func (e *Engine) idParams() url.Values {
	return url.Values{
		"limit":  {strconv.Itoa(e.pageSize)},
		"fields": {"id"},
	}
}

func validationError(msg string) error {
	return &apperrors.ErrValidation{Message: msg}
}
