package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	LogSourceWeb  = "web"
	LogSourceGame = "game"
)

// SystemLog is an audit trail entry written as a side effect of staff actions.
type SystemLog struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    *string        `json:"user_id" gorm:"index"`
	Username  string         `json:"username" gorm:"default:'System'"`
	Action    string         `json:"action" gorm:"index;not null"`
	Details   string         `json:"details" gorm:"type:text"`
	Source    string         `json:"source" gorm:"type:varchar(16);index;default:'web'"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}
