package models

import "time"

// QueueItem is one unit of durable work: a verified webhook or a queued full sync.
// At most one item per sync topic can exist at a time.
type QueueItem struct {
	ID         uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Topic      string     `json:"topic" gorm:"index;uniqueIndex:idx_queue_items_sync_topic,where:topic LIKE 'sync/%';not null"`
	Payload    string     `json:"payload" gorm:"type:text"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	ClaimedAt  *time.Time `json:"claimed_at" gorm:"index"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error"`
}

type SyncState struct {
	Key       string    `gorm:"primaryKey;column:sync_key"`
	Watermark time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type Lock struct {
	Name      string    `gorm:"primaryKey"`
	Owner     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index"`
}
