package models

import (
	"time"

	"gorm.io/datatypes"
)

// Vendor is inferred from products; the remote has no vendor entity.
type Vendor struct {
	ID                uint                        `json:"id" gorm:"primaryKey"`
	Slug              string                      `json:"slug" gorm:"uniqueIndex;not null"`
	Title             string                      `json:"title"`
	Types             datatypes.JSONSlice[string] `json:"types"`
	Tags              datatypes.JSONSlice[string] `json:"tags"`
	Published         bool                        `json:"published"`
	Pinned            bool                        `json:"pinned"`
	ThumbnailOverride string                      `json:"thumbnail_override"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}
