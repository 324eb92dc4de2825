package shopify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	apperrors "shopmirror/pkg/errors"
)

const checkoutCreateMutation = `mutation checkoutCreate($input: CheckoutCreateInput!) {
  checkoutCreate(input: $input) {
    checkout {
      id
      webUrl
    }
    checkoutUserErrors {
      code
      field
      message
    }
  }
}`

const checkoutCompletedQuery = `query checkoutCompleted($id: ID!) {
  node(id: $id) {
    ... on Checkout {
      completedAt
      order {
        id
      }
    }
  }
}`

type CheckoutLineItem struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type Checkout struct {
	ID     string `json:"id"`
	WebURL string `json:"webUrl"`
}

// EncodeVariantID turns a numeric variant id into the Storefront API line item id.
func EncodeVariantID(id int64) string {
	gid := fmt.Sprintf("gid://shopify/ProductVariant/%d", id)
	return base64.StdEncoding.EncodeToString([]byte(gid))
}

// CreateCheckout submits the line items and returns the created checkout.
// User errors from the remote come back as *errors.ErrRemoteValidation.
func (c *Client) CreateCheckout(ctx context.Context, items []CheckoutLineItem) (*Checkout, error) {
	resp, err := c.Execute(ctx, checkoutCreateMutation, map[string]interface{}{
		"input": map[string]interface{}{"lineItems": items},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, &apperrors.ErrRemoteValidation{Messages: resp.ErrorMessages()}
	}

	var data struct {
		CheckoutCreate struct {
			Checkout           *Checkout `json:"checkout"`
			CheckoutUserErrors []struct {
				Message string `json:"message"`
			} `json:"checkoutUserErrors"`
		} `json:"checkoutCreate"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode checkout: %w", err)
	}

	if userErrs := data.CheckoutCreate.CheckoutUserErrors; len(userErrs) > 0 {
		msgs := make([]string, len(userErrs))
		for i, e := range userErrs {
			msgs[i] = e.Message
		}
		return nil, &apperrors.ErrRemoteValidation{Messages: msgs}
	}
	if data.CheckoutCreate.Checkout == nil {
		return nil, &apperrors.ErrRemoteValidation{Messages: []string{"no checkout returned"}}
	}
	return data.CheckoutCreate.Checkout, nil
}

// CheckoutCompleted reports whether the customer finished paying for the checkout.
func (c *Client) CheckoutCompleted(ctx context.Context, id string) (bool, error) {
	resp, err := c.Execute(ctx, checkoutCompletedQuery, map[string]interface{}{"id": id})
	if err != nil {
		return false, err
	}
	if len(resp.Errors) > 0 {
		return false, &apperrors.ErrRemoteValidation{Messages: resp.ErrorMessages()}
	}

	var data struct {
		Node *struct {
			CompletedAt *string `json:"completedAt"`
			Order       *struct {
				ID string `json:"id"`
			} `json:"order"`
		} `json:"node"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return false, fmt.Errorf("failed to decode checkout: %w", err)
	}
	if data.Node == nil {
		return false, &apperrors.ErrNotFound{Resource: "checkout", ID: id}
	}
	return data.Node.CompletedAt != nil || data.Node.Order != nil, nil
}
