package shopify

import (
	"testing"
	"time"

	"shopmirror/internal/models"
	apperrors "shopmirror/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func sampleProduct() *Product {
	published := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
	return &Product{
		ID:          1001,
		Title:       "Trail Shoe",
		Vendor:      " Acme Outdoor ",
		ProductType: "Shoes",
		Handle:      "trail-shoe",
		Tags:        "sale, Preorder-Spring ,  ,running,sale",
		PublishedAt: &published,
		Variants: []Variant{
			{ID: 2, Price: "89.00", Position: 2, InventoryPolicy: "deny", InventoryQuantity: 0, Option1: strPtr("10")},
			{ID: 1, Price: "79.50", Position: 1, InventoryPolicy: "deny", InventoryQuantity: -3, CompareAtPrice: strPtr("99.00")},
		},
		Images: []Image{
			{ID: 20, Position: 2, Src: "https://cdn.shopify.com/b.jpg"},
			{ID: 10, Position: 1, Src: "https://cdn.shopify.com/a.jpg?v=1", Alt: strPtr("front")},
		},
		Options: []Option{{Name: "Color", Position: 2}, {Name: "Size", Position: 1, Values: []string{"10", "11"}}},
	}
}

func TestTransformProductDerivedFields(t *testing.T) {
	p, err := NewTransformer().TransformProduct(sampleProduct())
	require.NoError(t, err)

	assert.Equal(t, int64(1001), p.RemoteID)
	assert.Equal(t, "Acme Outdoor", p.Vendor)
	assert.Equal(t, "acme-outdoor", p.VendorSlug)
	assert.True(t, p.IsPreorder)
	assert.Equal(t, []string{"sale", "Preorder-Spring", "running"}, p.TagNames)
	assert.Equal(t, time.UTC, p.PublishedAt.Location())

	require.Len(t, p.Variants, 2)
	assert.Equal(t, int64(1), p.Variants[0].RemoteID, "variants ordered by position")
	assert.Equal(t, 1, p.Variants[0].InventoryQuantity, "negative inventory normalized to 1")
	assert.True(t, p.Variants[0].CompareAtPrice.Valid)
	assert.False(t, p.Variants[1].CompareAtPrice.Valid)
	assert.Equal(t, "10", p.Variants[1].Option1)

	assert.True(t, p.IsAvailable)
	assert.True(t, p.LowPrice.Equal(decimal.RequireFromString("79.50")))

	require.Len(t, p.Images, 2)
	assert.Equal(t, int64(10), p.Images[0].RemoteID)
	assert.True(t, p.Images[0].Primary)
	assert.False(t, p.Images[1].Primary)
	assert.Equal(t, "front", p.Images[0].Alt)

	assert.Equal(t, "Size", p.Options[0].Name)
}

func TestTransformProductUnavailable(t *testing.T) {
	src := sampleProduct()
	src.Tags = ""
	src.Variants = []Variant{{ID: 5, Price: "10", InventoryPolicy: "deny", InventoryQuantity: 0}}

	p, err := NewTransformer().TransformProduct(src)
	require.NoError(t, err)
	assert.False(t, p.IsAvailable)
	assert.False(t, p.IsPreorder)
	assert.Nil(t, p.TagNames)
}

func TestTransformProductIsDeterministic(t *testing.T) {
	tr := NewTransformer()
	a, err := tr.TransformProduct(sampleProduct())
	require.NoError(t, err)
	b, err := tr.TransformProduct(sampleProduct())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTransformProductRejectsBadPrice(t *testing.T) {
	src := sampleProduct()
	src.Variants[0].Price = "free"

	_, err := NewTransformer().TransformProduct(src)
	assert.True(t, apperrors.IsValidation(err))
}

func TestTransformProductRequiresID(t *testing.T) {
	_, err := NewTransformer().TransformProduct(&Product{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestDeriveInvariants(t *testing.T) {
	variants := []models.Variant{
		{Price: decimal.NewFromInt(30), InventoryPolicy: "deny"},
		{Price: decimal.NewFromInt(12), InventoryPolicy: "deny"},
		{Price: decimal.NewFromInt(20), InventoryPolicy: "continue"},
	}
	available, low := Derive(variants)
	assert.True(t, available)
	assert.True(t, low.Equal(decimal.NewFromInt(12)))

	available, low = Derive(nil)
	assert.False(t, available)
	assert.True(t, low.IsZero())
}

func TestTransformCollection(t *testing.T) {
	c := NewTransformer().TransformCollection(&Collection{
		ID:          7,
		Title:       "Sale",
		Smart:       true,
		Disjunctive: true,
		Rules:       []Rule{{Column: "tag", Relation: "equals", Condition: "sale"}},
	})
	assert.Equal(t, models.CollectionSmart, c.Kind)
	assert.True(t, c.Disjunctive)
	assert.Equal(t, "sale", c.Rules[0].Condition)

	c = NewTransformer().TransformCollection(&Collection{ID: 8})
	assert.Equal(t, models.CollectionCustom, c.Kind)
	assert.Empty(t, c.Rules)
}

func TestSplitTags(t *testing.T) {
	assert.Nil(t, SplitTags("  "))
	assert.Equal(t, []string{"A", "a"}, SplitTags("A, a,A"))
}
