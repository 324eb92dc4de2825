// Package queue is a durable FIFO work queue backed by the database.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopmirror/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEmpty is returned by Claim when nothing is waiting.
var ErrEmpty = errors.New("queue is empty")

type Queue struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Queue {
	return &Queue{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (q *Queue) Enqueue(ctx context.Context, topic string, payload []byte) (*models.QueueItem, error) {
	item := &models.QueueItem{
		Topic:      topic,
		Payload:    string(payload),
		EnqueuedAt: q.now(),
	}
	if err := q.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", topic, err)
	}
	return item, nil
}

// EnqueueUnique adds an item only when no item with the same topic is still
// pending, claimed or not. It reports whether the item was added. For sync
// topics the unique index settles concurrent callers; the insert that loses
// does nothing.
func (q *Queue) EnqueueUnique(ctx context.Context, topic string, payload []byte) (bool, error) {
	queued := false
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.QueueItem{}).Where("topic = ?", topic).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.QueueItem{Topic: topic, Payload: string(payload), EnqueuedAt: q.now()})
		if res.Error != nil {
			return res.Error
		}
		queued = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s: %w", topic, err)
	}
	return queued, nil
}

// Claim takes the oldest unclaimed item. It returns ErrEmpty when there is none.
func (q *Queue) Claim(ctx context.Context) (*models.QueueItem, error) {
	db := q.db.WithContext(ctx)
	for {
		var item models.QueueItem
		err := db.Where("claimed_at IS NULL").Order("id").First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmpty
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read queue: %w", err)
		}

		now := q.now()
		res := db.Model(&models.QueueItem{}).
			Where("id = ? AND claimed_at IS NULL", item.ID).
			Update("claimed_at", now)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to claim item %d: %w", item.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			item.ClaimedAt = &now
			return &item, nil
		}
		// another worker won the race; try the next one
	}
}

func (q *Queue) Delete(ctx context.Context, id uint) error {
	if err := q.db.WithContext(ctx).Delete(&models.QueueItem{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, err)
	}
	return nil
}

// Release hands a claimed item back for another attempt and records why it failed.
func (q *Queue) Release(ctx context.Context, id uint, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
		if len(msg) > 1024 {
			msg = msg[:1024]
		}
	}
	err := q.db.WithContext(ctx).Model(&models.QueueItem{}).Where("id = ?", id).Updates(map[string]interface{}{
		"claimed_at": nil,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": msg,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to release item %d: %w", id, err)
	}
	return nil
}

// Pending counts items whose topic equals topic or, when topic ends in "/", starts with it.
func (q *Queue) Pending(ctx context.Context, topic string) (int64, error) {
	query := q.db.WithContext(ctx).Model(&models.QueueItem{})
	if strings.HasSuffix(topic, "/") {
		query = query.Where("topic LIKE ?", topic+"%")
	} else if topic != "" {
		query = query.Where("topic = ?", topic)
	}

	var n int64
	if err := query.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

// ReclaimStale releases items claimed longer ago than olderThan, for workers that died mid-item.
func (q *Queue) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := q.now().Add(-olderThan)
	res := q.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("claimed_at IS NOT NULL AND claimed_at < ?", cutoff).
		Updates(map[string]interface{}{"claimed_at": nil, "last_error": "claim expired"})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reclaim stale items: %w", res.Error)
	}
	return res.RowsAffected, nil
}
