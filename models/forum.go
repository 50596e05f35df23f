package models

// NewsCategoryID is the forum board that mirrors published news. Threads
// can only be opened in ForumCategoryIDs.
const NewsCategoryID uint = 1

var ForumCategoryIDs = []uint{2, 3, 4}

// ForumThread keeps a denormalized copy of its author, like Comment.
type ForumThread struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	CategoryID   uint   `json:"category_id" gorm:"index;not null"`
	UserID       string `json:"user_id" gorm:"index"`
	AuthorName   string `json:"author_name"`
	AuthorAvatar string `json:"author_avatar"`
	AuthorRole   string `json:"author_role"`
	Title        string `json:"title" gorm:"not null"`
	Content      string `json:"content" gorm:"type:text"`
	Slug         string `json:"slug" gorm:"uniqueIndex;not null"`
	Views        int    `json:"views" gorm:"default:0"`
	Pinned       bool   `json:"pinned" gorm:"default:false"`
	PollID       *uint  `json:"poll_id"`

	Timestamps
}

type ForumPost struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	ThreadID     uint   `json:"thread_id" gorm:"index;not null"`
	UserID       string `json:"user_id" gorm:"index"`
	AuthorName   string `json:"author_name"`
	AuthorAvatar string `json:"author_avatar"`
	AuthorRole   string `json:"author_role"`
	Content      string `json:"content" gorm:"type:text;not null"`

	Timestamps
}
