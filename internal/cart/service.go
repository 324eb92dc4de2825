package cart

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"shopmirror/internal/logger"
	"shopmirror/internal/models"
	"shopmirror/internal/services/shopify"
	apperrors "shopmirror/pkg/errors"

	"go.uber.org/zap"
)

// Remote creates and inspects checkouts on the storefront.
type Remote interface {
	CreateCheckout(ctx context.Context, items []shopify.CheckoutLineItem) (*shopify.Checkout, error)
	CheckoutCompleted(ctx context.Context, id string) (bool, error)
}

// Result is returned by every mutating operation.
type Result struct {
	Cart *Cart
	// ShowCart asks the front-end to open the cart after an additive add.
	ShowCart bool
	Changes  models.ChangeSet
}

type Service struct {
	store    Store
	variants VariantSource
	remote   Remote
	logger   *logger.Logger

	mu       sync.Mutex
	sessions map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(store Store, variants VariantSource, remote Remote, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		variants: variants,
		remote:   remote,
		logger:   log.Named("cart"),
		sessions: map[string]*sessionLock{},
	}
}

// lock serializes operations on one session within this process.
func (s *Service) lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.sessions[sessionID]
	if !ok {
		l = &sessionLock{}
		s.sessions[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.sessions, sessionID)
		}
		s.mu.Unlock()
	}
}

// Get returns the session cart repriced against the live catalog.
func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	c, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.reprice(ctx, c)
	return c, nil
}

type edit struct {
	showCart bool
	noop     bool
}

// mutate applies fn to a copy of the stored cart and saves the copy only
// when fn succeeds, so a failed operation never leaves a partial write.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(c *Cart) (edit, error)) (*Result, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	current, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	next := current.clone()

	e, err := fn(next)
	if err != nil {
		return nil, err
	}
	s.reprice(ctx, next)
	if e.noop {
		return &Result{Cart: next}, nil
	}
	if err := s.store.Save(ctx, sessionID, next); err != nil {
		return nil, err
	}
	return &Result{
		Cart:     next,
		ShowCart: e.showCart,
		Changes:  models.ChangeSet{Carts: []string{sessionID}},
	}, nil
}

// AddItem adds quantity to the line for variantID (additive) or sets it
// (absolute). A resulting quantity of zero or less removes the line.
func (s *Service) AddItem(ctx context.Context, sessionID string, variantID int64, quantity int, mode Mode) (*Result, error) {
	if variantID <= 0 {
		return nil, &apperrors.ErrValidation{
			Message: "variant_id must be a positive integer",
			Fields:  map[string]string{"variant_id": strconv.FormatInt(variantID, 10)},
		}
	}
	if mode != ModeAdditive && mode != ModeAbsolute {
		return nil, &apperrors.ErrValidation{Message: "unknown cart mode " + strconv.Quote(string(mode))}
	}

	return s.mutate(ctx, sessionID, func(c *Cart) (edit, error) {
		idx, found := c.find(variantID)
		desired := quantity
		if mode == ModeAdditive && found {
			desired += c.Lines[idx].Quantity
		}

		if desired <= 0 {
			if !found {
				return edit{noop: true}, nil
			}
			c.remove(idx)
			return edit{}, nil
		}

		// price and sku always come from the catalog, never from the caller
		v, err := s.variants.Variant(ctx, variantID)
		if err != nil {
			return edit{}, err
		}
		line := Line{VariantID: variantID, SKU: v.SKU, Price: v.Price, Quantity: desired}
		if found {
			line.RemoteLineItemID = c.Lines[idx].RemoteLineItemID
			c.Lines[idx] = line
		} else {
			c.Lines = append(c.Lines, line)
		}
		return edit{showCart: mode == ModeAdditive}, nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, sessionID string, variantID int64) (*Result, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) (edit, error) {
		idx, found := c.find(variantID)
		if !found {
			return edit{}, &apperrors.ErrNotFound{Resource: "cart item", ID: strconv.FormatInt(variantID, 10)}
		}
		c.remove(idx)
		return edit{}, nil
	})
}

func (s *Service) Reset(ctx context.Context, sessionID string) (*Result, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) (edit, error) {
		*c = Cart{}
		return edit{}, nil
	})
}

// Checkout submits the cart lines to the storefront and records the
// returned checkout. A rejected checkout leaves the cart untouched.
func (s *Service) Checkout(ctx context.Context, sessionID string) (*Result, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) (edit, error) {
		if len(c.Lines) == 0 {
			return edit{}, apperrors.ErrEmptyCart
		}

		items := make([]shopify.CheckoutLineItem, 0, len(c.Lines))
		for i := range c.Lines {
			if c.Lines[i].RemoteLineItemID == "" {
				c.Lines[i].RemoteLineItemID = shopify.EncodeVariantID(c.Lines[i].VariantID)
			}
			items = append(items, shopify.CheckoutLineItem{
				VariantID: c.Lines[i].RemoteLineItemID,
				Quantity:  c.Lines[i].Quantity,
			})
		}

		co, err := s.remote.CreateCheckout(ctx, items)
		if err != nil {
			var rejected *apperrors.ErrRemoteValidation
			if errors.As(err, &rejected) {
				return edit{}, &apperrors.ErrCheckoutRejected{Message: strings.Join(rejected.Messages, "; ")}
			}
			return edit{}, err
		}

		c.Checkout = &Checkout{ID: co.ID, URL: co.WebURL}
		c.CheckoutStarted = true
		s.logger.Info("checkout started", zap.String("session", sessionID), zap.String("checkout_id", co.ID))
		return edit{}, nil
	})
}

// StopCheckout leaves the checkout-started state. A checkout the storefront
// reports as completed empties the cart instead.
func (s *Service) StopCheckout(ctx context.Context, sessionID string) (*Result, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) (edit, error) {
		if c.Checkout != nil {
			completed, err := s.remote.CheckoutCompleted(ctx, c.Checkout.ID)
			if err != nil {
				s.logger.Warn("checkout status unknown",
					zap.String("session", sessionID),
					zap.String("checkout_id", c.Checkout.ID),
					zap.Error(err),
				)
			}
			if completed {
				*c = Cart{}
				return edit{}, nil
			}
		}
		c.Checkout = nil
		c.CheckoutStarted = false
		return edit{}, nil
	})
}

// reprice refreshes line prices from the catalog and recomputes the total.
// Lines whose variant has left the catalog keep their last known price.
func (s *Service) reprice(ctx context.Context, c *Cart) {
	for i := range c.Lines {
		v, err := s.variants.Variant(ctx, c.Lines[i].VariantID)
		if err != nil {
			if !apperrors.IsNotFound(err) {
				s.logger.Warn("reprice failed", zap.Int64("variant_id", c.Lines[i].VariantID), zap.Error(err))
			}
			continue
		}
		c.Lines[i].Price = v.Price
		c.Lines[i].SKU = v.SKU
	}
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	c.recomputeTotal()
}
