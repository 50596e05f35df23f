package models

type WikiArticle struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	Title         string `json:"title" gorm:"not null"`
	TitleEN       string `json:"title_en" gorm:"column:title_en"`
	Slug          string `json:"slug" gorm:"uniqueIndex;not null"`
	Description   string `json:"description"`
	DescriptionEN string `json:"description_en" gorm:"column:description_en"`
	Content       string `json:"content" gorm:"type:text"`
	ContentEN     string `json:"content_en" gorm:"column:content_en;type:text"`
	Category      string `json:"category" gorm:"index"`
	Icon          string `json:"icon"`

	Timestamps
}
