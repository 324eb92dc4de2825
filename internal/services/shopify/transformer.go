package shopify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"shopmirror/internal/models"
	apperrors "shopmirror/pkg/errors"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// TransformProduct converts a Shopify product into the local model and derives
// every computed field. Full syncs and webhooks both go through here.
func (t *Transformer) TransformProduct(p *Product) (*models.Product, error) {
	if p.ID == 0 {
		return nil, &apperrors.ErrValidation{Message: "product payload has no id"}
	}

	variants := make([]models.Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		variant, err := t.TransformVariant(&v)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", p.ID, err)
		}
		variants = append(variants, *variant)
	}
	sort.SliceStable(variants, func(i, j int) bool { return variants[i].Position < variants[j].Position })

	images := make([]models.Image, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, models.Image{
			RemoteID: img.ID,
			Position: img.Position,
			Src:      img.Src,
			Alt:      deref(img.Alt),
		})
	}
	sort.SliceStable(images, func(i, j int) bool { return images[i].Position < images[j].Position })
	if len(images) > 0 {
		images[0].Primary = true
	}

	options := make([]models.ProductOption, 0, len(p.Options))
	for _, o := range p.Options {
		options = append(options, models.ProductOption{Name: o.Name, Position: o.Position, Values: o.Values})
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].Position < options[j].Position })

	product := &models.Product{
		RemoteID:        p.ID,
		Title:           p.Title,
		Handle:          p.Handle,
		BodyHTML:        p.BodyHTML,
		Vendor:          strings.TrimSpace(p.Vendor),
		VendorSlug:      VendorSlug(p.Vendor),
		ProductType:     strings.TrimSpace(p.ProductType),
		IsPreorder:      strings.Contains(strings.ToLower(p.Tags), "preorder"),
		Options:         options,
		PublishedAt:     utcPtr(p.PublishedAt),
		RemoteCreatedAt: p.CreatedAt.UTC(),
		RemoteUpdatedAt: p.UpdatedAt.UTC(),
		Variants:        variants,
		Images:          images,
		TagNames:        SplitTags(p.Tags),
	}
	product.IsAvailable, product.LowPrice = Derive(variants)
	return product, nil
}

// TransformVariant converts one variant. Negative inventory means untracked
// upstream and is stored as 1.
func (t *Transformer) TransformVariant(v *Variant) (*models.Variant, error) {
	price, err := decimal.NewFromString(v.Price)
	if err != nil {
		return nil, &apperrors.ErrValidation{
			Message: fmt.Sprintf("variant %d has invalid price %q", v.ID, v.Price),
			Fields:  map[string]string{"price": v.Price},
		}
	}

	var compareAt decimal.NullDecimal
	if v.CompareAtPrice != nil && *v.CompareAtPrice != "" {
		d, err := decimal.NewFromString(*v.CompareAtPrice)
		if err != nil {
			return nil, &apperrors.ErrValidation{
				Message: fmt.Sprintf("variant %d has invalid compare_at_price %q", v.ID, *v.CompareAtPrice),
				Fields:  map[string]string{"compare_at_price": *v.CompareAtPrice},
			}
		}
		compareAt = decimal.NewNullDecimal(d)
	}

	qty := v.InventoryQuantity
	if qty < 0 {
		qty = 1
	}

	return &models.Variant{
		RemoteID:          v.ID,
		SKU:               v.Sku,
		Title:             v.Title,
		Position:          v.Position,
		Price:             price,
		CompareAtPrice:    compareAt,
		InventoryPolicy:   v.InventoryPolicy,
		InventoryQuantity: qty,
		Option1:           deref(v.Option1),
		Option2:           deref(v.Option2),
		Option3:           deref(v.Option3),
		Weight:            v.Weight,
		WeightUnit:        v.WeightUnit,
		Taxable:           v.Taxable,
		RequiresShipping:  v.RequiresShipping,
		RemoteImageID:     v.ImageID,
	}, nil
}

// Derive computes product availability and the lowest variant price.
func Derive(variants []models.Variant) (available bool, lowPrice decimal.Decimal) {
	for i, v := range variants {
		if v.IsAvailable() {
			available = true
		}
		if i == 0 || v.Price.LessThan(lowPrice) {
			lowPrice = v.Price
		}
	}
	return available, lowPrice
}

func (t *Transformer) TransformCollection(c *Collection) *models.Collection {
	kind := models.CollectionCustom
	if c.Smart {
		kind = models.CollectionSmart
	}
	rules := make([]models.CollectionRule, 0, len(c.Rules))
	for _, r := range c.Rules {
		rules = append(rules, models.CollectionRule{Column: r.Column, Relation: r.Relation, Condition: r.Condition})
	}
	return &models.Collection{
		RemoteID:        c.ID,
		Kind:            kind,
		Title:           c.Title,
		Handle:          c.Handle,
		BodyHTML:        c.BodyHTML,
		PublishedAt:     utcPtr(c.PublishedAt),
		SortOrder:       c.SortOrder,
		Disjunctive:     c.Disjunctive,
		Rules:           rules,
		RemoteUpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (t *Transformer) TransformCustomer(c *Customer) *models.Customer {
	return &models.Customer{
		RemoteID:         c.ID,
		Email:            c.Email,
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		State:            c.State,
		AcceptsMarketing: c.AcceptsMarketing,
		RemoteUpdatedAt:  c.UpdatedAt.UTC(),
	}
}

// SplitTags splits Shopify's comma separated tag string, dropping blanks.
func SplitTags(tags string) []string {
	if strings.TrimSpace(tags) == "" {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func VendorSlug(vendor string) string {
	return slug.Make(strings.TrimSpace(vendor))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
