package models

import "time"

// Poll is global when ThreadID is nil. At most one global poll is meant to be
// active at a time; that is enforced on create, not by a constraint.
type Poll struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null"`
	TitleEN     string     `json:"title_en" gorm:"column:title_en"`
	Question    string     `json:"question" gorm:"not null"`
	QuestionEN  string     `json:"question_en" gorm:"column:question_en"`
	IsActive    bool       `json:"is_active" gorm:"index;default:true"`
	ClosesAt    *time.Time `json:"closes_at"`
	ThreadID    *uint      `json:"thread_id" gorm:"index"`
	DiscordLink *string    `json:"discord_link"`

	Options []PollOption `json:"options,omitempty" gorm:"foreignKey:PollID"`

	Timestamps
}

type PollOption struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	PollID  uint   `json:"poll_id" gorm:"index;not null"`
	Label   string `json:"label" gorm:"not null"`
	LabelEN string `json:"label_en" gorm:"column:label_en"`
	Votes   int    `json:"votes" gorm:"default:0"`
}

func (p *Poll) IsGlobal() bool {
	return p.ThreadID == nil
}
