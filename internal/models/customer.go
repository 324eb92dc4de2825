package models

import "time"

type Customer struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	RemoteID         int64     `json:"remote_id" gorm:"uniqueIndex;not null"`
	Email            string    `json:"email" gorm:"index"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	State            string    `json:"state"`
	AcceptsMarketing bool      `json:"accepts_marketing"`
	RemoteUpdatedAt  time.Time `json:"remote_updated_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
