package cart

import (
	"context"
	"errors"
	"strconv"

	"shopmirror/internal/models"
	apperrors "shopmirror/pkg/errors"

	"gorm.io/gorm"
)

// VariantSource looks up live variant data by remote variant id.
type VariantSource interface {
	Variant(ctx context.Context, remoteID int64) (*models.Variant, error)
}

// CatalogVariants reads variants from the local catalog mirror.
type CatalogVariants struct {
	db *gorm.DB
}

func NewCatalogVariants(db *gorm.DB) *CatalogVariants {
	return &CatalogVariants{db: db}
}

func (s *CatalogVariants) Variant(ctx context.Context, remoteID int64) (*models.Variant, error) {
	var v models.Variant
	err := s.db.WithContext(ctx).Where("remote_id = ?", remoteID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperrors.ErrNotFound{Resource: "variant", ID: strconv.FormatInt(remoteID, 10)}
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
