package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TicketStatusOpen     = "open"
	TicketStatusPending  = "pending"
	TicketStatusResolved = "resolved"
	TicketStatusClosed   = "closed"
)

const (
	TicketPriorityLow    = "low"
	TicketPriorityMedium = "medium"
	TicketPriorityHigh   = "high"
	TicketPriorityUrgent = "urgent"
)

var TicketStatuses = []string{TicketStatusOpen, TicketStatusPending, TicketStatusResolved, TicketStatusClosed}

var TicketPriorities = []string{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent}

type Ticket struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	UserID      string `json:"user_id" gorm:"index;not null"`
	Subject     string `json:"subject" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`
	Priority    string `json:"priority" gorm:"type:varchar(16);default:'medium'"`
	Status      string `json:"status" gorm:"type:varchar(16);index;default:'open'"`

	// Attachments holds uploaded image URLs.
	Attachments datatypes.JSONSlice[string] `json:"attachments"`

	Timestamps
}

type TicketMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TicketID  uint      `json:"ticket_id" gorm:"index;not null"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	IsStaff   bool      `json:"is_staff" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
