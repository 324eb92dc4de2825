package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopmirror/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WatermarkStore keeps the start time of the last successful full sync per key.
type WatermarkStore struct {
	db *gorm.DB
}

func NewWatermarkStore(db *gorm.DB) *WatermarkStore {
	return &WatermarkStore{db: db}
}

// Get returns the stored watermark, or the Unix epoch when none is stored.
func (s *WatermarkStore) Get(ctx context.Context, key string) (time.Time, error) {
	var state models.SyncState
	err := s.db.WithContext(ctx).Where("sync_key = ?", key).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Unix(0, 0).UTC(), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read watermark %s: %w", key, err)
	}
	return state.Watermark.UTC(), nil
}

func (s *WatermarkStore) Set(ctx context.Context, key string, t time.Time) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sync_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"watermark", "updated_at"}),
	}).Create(&models.SyncState{Key: key, Watermark: t.UTC()}).Error
	if err != nil {
		return fmt.Errorf("failed to write watermark %s: %w", key, err)
	}
	return nil
}
