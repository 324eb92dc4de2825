package shopify

import (
	"encoding/json"
	"time"
)

// Product represents a Shopify product
type Product struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	BodyHTML    string     `json:"body_html"`
	Vendor      string     `json:"vendor"`
	ProductType string     `json:"product_type"`
	Handle      string     `json:"handle"`
	Status      string     `json:"status"`
	Tags        string     `json:"tags"`
	Variants    []Variant  `json:"variants"`
	Images      []Image    `json:"images"`
	Options     []Option   `json:"options"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at"`
}

// Variant represents a product variant
type Variant struct {
	ID                int64   `json:"id"`
	ProductID         int64   `json:"product_id"`
	Title             string  `json:"title"`
	Price             string  `json:"price"`
	Sku               string  `json:"sku"`
	Position          int     `json:"position"`
	InventoryPolicy   string  `json:"inventory_policy"`
	CompareAtPrice    *string `json:"compare_at_price"`
	Option1           *string `json:"option1"`
	Option2           *string `json:"option2"`
	Option3           *string `json:"option3"`
	Taxable           bool    `json:"taxable"`
	ImageID           *int64  `json:"image_id"`
	Weight            float64 `json:"weight"`
	WeightUnit        string  `json:"weight_unit"`
	InventoryQuantity int     `json:"inventory_quantity"`
	RequiresShipping  bool    `json:"requires_shipping"`
}

// Image represents a product image
type Image struct {
	ID         int64   `json:"id"`
	ProductID  int64   `json:"product_id"`
	Position   int     `json:"position"`
	Alt        *string `json:"alt"`
	Src        string  `json:"src"`
	VariantIDs []int64 `json:"variant_ids"`
}

// Option represents a product option
type Option struct {
	ID        int64    `json:"id"`
	ProductID int64    `json:"product_id"`
	Name      string   `json:"name"`
	Position  int      `json:"position"`
	Values    []string `json:"values"`
}

// Collection covers both custom and smart collections; Rules is empty for custom ones.
type Collection struct {
	ID          int64      `json:"id"`
	Handle      string     `json:"handle"`
	Title       string     `json:"title"`
	BodyHTML    string     `json:"body_html"`
	SortOrder   string     `json:"sort_order"`
	PublishedAt *time.Time `json:"published_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Disjunctive bool       `json:"disjunctive"`
	Rules       []Rule     `json:"rules"`

	Smart bool `json:"-"`
}

type Rule struct {
	Column    string `json:"column"`
	Relation  string `json:"relation"`
	Condition string `json:"condition"`
}

type Customer struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	State            string    `json:"state"`
	AcceptsMarketing bool      `json:"accepts_marketing"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Webhook struct {
	ID      int64  `json:"id,omitempty"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format"`
}

// DeletePayload is the body of every */delete webhook.
type DeletePayload struct {
	ID int64 `json:"id"`
}

type productsEnvelope struct {
	Products []Product `json:"products"`
}

type customCollectionsEnvelope struct {
	CustomCollections []Collection `json:"custom_collections"`
}

type smartCollectionsEnvelope struct {
	SmartCollections []Collection `json:"smart_collections"`
}

type customersEnvelope struct {
	Customers []Customer `json:"customers"`
}

type webhooksEnvelope struct {
	Webhooks []Webhook `json:"webhooks"`
}

// GraphQLRequest is the body of a Storefront GraphQL call
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLResponse is the decoded envelope; a non-empty Errors means partial or total failure
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

type GraphQLError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}
