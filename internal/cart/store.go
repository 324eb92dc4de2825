package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shopmirror/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists one cart document per session.
type Store interface {
	// Load returns an empty cart for unknown sessions.
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, c *Cart) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Load(ctx context.Context, sessionID string) (*Cart, error) {
	var row models.CartSession
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(row.Data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &c, nil
}

func (s *GormStore) Save(ctx context.Context, sessionID string, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	row := models.CartSession{SessionID: sessionID, Data: data, UpdatedAt: time.Now().UTC()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// PurgeIdle deletes carts untouched for longer than idle.
func (s *GormStore) PurgeIdle(ctx context.Context, idle time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-idle)
	res := s.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&models.CartSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge carts: %w", res.Error)
	}
	return res.RowsAffected, nil
}
