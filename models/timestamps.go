package models

import "time"

// Timestamps adds GORM auto-times. Content rows are hard-deleted, so there is no DeletedAt.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
