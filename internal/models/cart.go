package models

import (
	"time"

	"gorm.io/datatypes"
)

type CartSession struct {
	SessionID string         `gorm:"primaryKey"`
	Data      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"index"`
}
