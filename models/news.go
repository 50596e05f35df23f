package models

const (
	NewsStatusDraft     = "Draft"
	NewsStatusPublished = "Published"
)

type News struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Title     string `json:"title" gorm:"not null"`
	TitleEN   string `json:"title_en" gorm:"column:title_en"`
	Slug      string `json:"slug" gorm:"uniqueIndex;not null"`
	Category  string `json:"category"`
	Content   string `json:"content" gorm:"type:text"`
	ContentEN string `json:"content_en" gorm:"column:content_en;type:text"`
	Image     string `json:"image"`
	Status    string `json:"status" gorm:"default:'Draft'"`
	AuthorID  string `json:"author_id" gorm:"index"`
	Views     int    `json:"views" gorm:"default:0"`

	Timestamps
}

// Comment keeps a denormalized copy of the author so listings need no identity lookup.
type Comment struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	NewsID     uint   `json:"news_id" gorm:"index;not null"`
	UserID     string `json:"user_id" gorm:"index"`
	UserName   string `json:"user_name"`
	UserAvatar string `json:"user_avatar"`
	UserRole   string `json:"user_role"`
	Content    string `json:"content" gorm:"type:text;not null"`

	Timestamps
}
