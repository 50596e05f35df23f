package models

import "time"

var SuggestionStatuses = []string{"pending", "approved", "rejected", "implemented"}

type Suggestion struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Nickname  string    `json:"nickname"`
	Type      string    `json:"type" gorm:"not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	Status    string    `json:"status" gorm:"type:varchar(16);default:'pending'"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
