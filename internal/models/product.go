package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	ID              uint                               `json:"id" gorm:"primaryKey"`
	RemoteID        int64                              `json:"remote_id" gorm:"uniqueIndex;not null"`
	Title           string                             `json:"title" gorm:"not null"`
	Handle          string                             `json:"handle" gorm:"index"`
	BodyHTML        string                             `json:"body_html"`
	Vendor          string                             `json:"vendor"`
	VendorSlug      string                             `json:"vendor_slug" gorm:"index"`
	ProductType     string                             `json:"product_type" gorm:"index"`
	IsAvailable     bool                               `json:"is_available" gorm:"index"`
	IsPreorder      bool                               `json:"is_preorder"`
	LowPrice        decimal.Decimal                    `json:"low_price" gorm:"type:decimal(12,2)"`
	Options         datatypes.JSONSlice[ProductOption] `json:"options"`
	PublishedAt     *time.Time                         `json:"published_at" gorm:"index"`
	RemoteCreatedAt time.Time                          `json:"remote_created_at"`
	RemoteUpdatedAt time.Time                          `json:"remote_updated_at"`
	CreatedAt       time.Time                          `json:"created_at"`
	UpdatedAt       time.Time                          `json:"updated_at"`

	Variants []Variant `json:"variants,omitempty" gorm:"foreignKey:ProductID"`
	Images   []Image   `json:"images,omitempty" gorm:"foreignKey:ProductID"`
	Tags     []Tag     `json:"tags,omitempty" gorm:"many2many:product_tags"`

	// TagNames is the split tag list produced by normalization, resolved to Tags on save.
	TagNames []string `json:"-" gorm:"-"`
}

type ProductOption struct {
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

type Variant struct {
	ID                uint                `json:"id" gorm:"primaryKey"`
	RemoteID          int64               `json:"remote_id" gorm:"uniqueIndex;not null"`
	ProductID         uint                `json:"product_id" gorm:"index;not null"`
	SKU               string              `json:"sku" gorm:"index"`
	Title             string              `json:"title"`
	Position          int                 `json:"position"`
	Price             decimal.Decimal     `json:"price" gorm:"type:decimal(12,2)"`
	CompareAtPrice    decimal.NullDecimal `json:"compare_at_price" gorm:"type:decimal(12,2)"`
	InventoryPolicy   string              `json:"inventory_policy"`
	InventoryQuantity int                 `json:"inventory_quantity"`
	Option1           string              `json:"option1"`
	Option2           string              `json:"option2"`
	Option3           string              `json:"option3"`
	Weight            float64             `json:"weight"`
	WeightUnit        string              `json:"weight_unit"`
	Taxable           bool                `json:"taxable"`
	RequiresShipping  bool                `json:"requires_shipping"`
	RemoteImageID     *int64              `json:"remote_image_id"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

const (
	InventoryPolicyDeny     = "deny"
	InventoryPolicyContinue = "continue"
)

// IsAvailable reports whether the variant can be sold right now.
func (v *Variant) IsAvailable() bool {
	return v.InventoryPolicy == InventoryPolicyContinue || v.InventoryQuantity > 0
}

type Image struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RemoteID  int64     `json:"remote_id" gorm:"index"`
	ProductID uint      `json:"product_id" gorm:"index;not null"`
	Position  int       `json:"position"`
	Src       string    `json:"src"`
	Ref       string    `json:"ref"`
	Alt       string    `json:"alt"`
	Primary   bool      `json:"primary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Tag struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

// PrimaryImage returns the image flagged primary, if any.
func (p *Product) PrimaryImage() *Image {
	for i := range p.Images {
		if p.Images[i].Primary {
			return &p.Images[i]
		}
	}
	return nil
}
