// Package cart holds the per-session shopping cart and its transitions
// from empty through checkout.
package cart

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "shopmirror/pkg/errors"

	"github.com/shopspring/decimal"
)

type Line struct {
	VariantID        int64           `json:"variant_id"`
	SKU              string          `json:"sku"`
	Price            decimal.Decimal `json:"price"`
	Quantity         int             `json:"quantity"`
	RemoteLineItemID string          `json:"remote_line_item_id,omitempty"`
}

type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Cart is the JSON snapshot returned to clients and stored per session.
type Cart struct {
	Lines           []Line          `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Checkout        *Checkout       `json:"checkout,omitempty"`
	CheckoutStarted bool            `json:"checkoutStarted"`
}

type State string

const (
	StateEmpty           State = "empty"
	StatePopulated       State = "populated"
	StateCheckoutStarted State = "checkout_started"
)

func (c *Cart) State() State {
	switch {
	case c.CheckoutStarted:
		return StateCheckoutStarted
	case len(c.Lines) > 0:
		return StatePopulated
	default:
		return StateEmpty
	}
}

func (c *Cart) find(variantID int64) (int, bool) {
	for i, l := range c.Lines {
		if l.VariantID == variantID {
			return i, true
		}
	}
	return -1, false
}

func (c *Cart) remove(i int) {
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

func (c *Cart) clone() *Cart {
	out := *c
	out.Lines = append([]Line(nil), c.Lines...)
	if c.Checkout != nil {
		co := *c.Checkout
		out.Checkout = &co
	}
	return &out
}

func (c *Cart) recomputeTotal() {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	c.Total = total
}

// Mode decides how an add combines with an existing line.
type Mode string

const (
	// ModeAdditive adds the quantity to the current line.
	ModeAdditive Mode = "additive"
	// ModeAbsolute sets the line to the quantity.
	ModeAbsolute Mode = "absolute"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAdditive:
		return ModeAdditive, nil
	case ModeAbsolute:
		return ModeAbsolute, nil
	}
	return "", &apperrors.ErrValidation{
		Message: fmt.Sprintf("unknown cart mode %q", s),
		Fields:  map[string]string{"mode": s},
	}
}

// ParseItem validates raw request input: the variant id must be a positive
// integer and the quantity an integer, possibly negative.
func ParseItem(variantID, quantity string) (int64, int, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(variantID), 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, &apperrors.ErrValidation{
			Message: "variant_id must be a positive integer",
			Fields:  map[string]string{"variant_id": variantID},
		}
	}
	qty, err := strconv.Atoi(strings.TrimSpace(quantity))
	if err != nil {
		return 0, 0, &apperrors.ErrValidation{
			Message: "quantity must be an integer",
			Fields:  map[string]string{"quantity": quantity},
		}
	}
	return id, qty, nil
}
