package models

import (
	"time"

	"gorm.io/datatypes"
)

type CollectionKind string

const (
	CollectionSmart  CollectionKind = "smart"
	CollectionCustom CollectionKind = "custom"
)

type Collection struct {
	ID              uint                                `json:"id" gorm:"primaryKey"`
	RemoteID        int64                               `json:"remote_id" gorm:"uniqueIndex;not null"`
	Kind            CollectionKind                      `json:"kind" gorm:"not null"`
	Title           string                              `json:"title"`
	Handle          string                              `json:"handle" gorm:"index"`
	BodyHTML        string                              `json:"body_html"`
	PublishedAt     *time.Time                          `json:"published_at"`
	SortOrder       string                              `json:"sort_order"`
	Disjunctive     bool                                `json:"disjunctive"`
	Rules           datatypes.JSONSlice[CollectionRule] `json:"rules"`
	// ProductOrder holds remote product ids in the collection's own sort order.
	ProductOrder    datatypes.JSONSlice[int64]          `json:"product_order"`
	RemoteUpdatedAt time.Time                           `json:"remote_updated_at"`
	CreatedAt       time.Time                           `json:"created_at"`
	UpdatedAt       time.Time                           `json:"updated_at"`

	// Products is only populated for custom collections.
	Products []Product `json:"-" gorm:"many2many:collection_products"`
}

type CollectionRule struct {
	Column    string `json:"column"`
	Relation  string `json:"relation"`
	Condition string `json:"condition"`
}
