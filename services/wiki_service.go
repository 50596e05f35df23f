package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crystaltides-web/models"
	"crystaltides-web/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type WikiService struct {
	DB         *gorm.DB
	Translator *Translator
	Audit      *AuditLog
	log        zerolog.Logger
}

func NewWikiService(db *gorm.DB, translator *Translator, audit *AuditLog, log zerolog.Logger) *WikiService {
	return &WikiService{
		DB:         db,
		Translator: translator,
		Audit:      audit,
		log:        log.With().Str("component", "wiki").Logger(),
	}
}

type wikiInput struct {
	Title         *string `json:"title"`
	TitleEN       *string `json:"title_en"`
	Slug          *string `json:"slug"`
	Description   *string `json:"description"`
	DescriptionEN *string `json:"description_en"`
	Content       *string `json:"content"`
	ContentEN     *string `json:"content_en"`
	Category      *string `json:"category"`
	Icon          *string `json:"icon"`
}

func (s *WikiService) List(ctx context.Context, category string) ([]models.WikiArticle, error) {
	articles := []models.WikiArticle{}
	q := s.DB.WithContext(ctx).Order("created_at DESC, id DESC")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	return articles, q.Find(&articles).Error
}

func (s *WikiService) BySlug(ctx context.Context, slug string) (*models.WikiArticle, error) {
	var a models.WikiArticle
	if err := s.DB.WithContext(ctx).Where("slug = ?", slug).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("article")
		}
		return nil, err
	}
	return &a, nil
}

func (s *WikiService) Create(ctx context.Context, caller *models.Caller, in wikiInput) (*models.WikiArticle, error) {
	title, content, category := str(in.Title), str(in.Content), str(in.Category)
	if title == "" || content == "" || category == "" {
		return nil, invalid("title, content and category are required")
	}

	source := str(in.Slug)
	if source == "" {
		source = title
	}
	slug, err := utils.UniqueSlug(source, func(candidate string) (bool, error) {
		var n int64
		err := s.DB.WithContext(ctx).Model(&models.WikiArticle{}).Where("slug = ?", candidate).Count(&n).Error
		return n > 0, err
	})
	if err != nil {
		return nil, err
	}

	desc := str(in.Description)
	a := models.WikiArticle{
		Title:         title,
		TitleEN:       s.Translator.fillEnglish(ctx, str(in.TitleEN), title),
		Slug:          slug,
		Description:   desc,
		DescriptionEN: s.Translator.fillEnglish(ctx, str(in.DescriptionEN), desc),
		Content:       content,
		ContentEN:     s.Translator.fillEnglish(ctx, str(in.ContentEN), content),
		Category:      category,
		Icon:          str(in.Icon),
	}
	if err := s.DB.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(entryFor(caller, "CREATE_WIKI", fmt.Sprintf("Created wiki article: %s", a.Title)))
	return &a, nil
}

func (s *WikiService) Update(ctx context.Context, caller *models.Caller, id uint, in wikiInput) (*models.WikiArticle, error) {
	var a models.WikiArticle
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("article")
		}
		return nil, err
	}

	updates := map[string]interface{}{}
	set := func(col string, v *string) {
		if v != nil {
			updates[col] = strings.TrimSpace(*v)
		}
	}
	set("title", in.Title)
	set("title_en", in.TitleEN)
	set("slug", in.Slug)
	set("description", in.Description)
	set("description_en", in.DescriptionEN)
	set("content", in.Content)
	set("content_en", in.ContentEN)
	set("category", in.Category)
	set("icon", in.Icon)
	for _, required := range []string{"title", "slug", "content", "category"} {
		if v, ok := updates[required]; ok && v == "" {
			delete(updates, required)
		}
	}

	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&a).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(entryFor(caller, "UPDATE_WIKI", fmt.Sprintf("Updated wiki article: %s", a.Title)))
	return &a, nil
}

func (s *WikiService) Delete(ctx context.Context, caller *models.Caller, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.WikiArticle{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("article")
	}
	s.Audit.Record(entryFor(caller, "DELETE_WIKI", fmt.Sprintf("Deleted wiki article #%d", id)))
	return nil
}

// GetArticles handles GET /api/wiki.
func (s *WikiService) GetArticles(c *fiber.Ctx) error {
	articles, err := s.List(c.UserContext(), c.Query("category"))
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(articles)
}

// GetArticle handles GET /api/wiki/:slug.
func (s *WikiService) GetArticle(c *fiber.Ctx) error {
	a, err := s.BySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(a)
}

// CreateArticle handles POST /api/wiki.
func (s *WikiService) CreateArticle(c *fiber.Ctx) error {
	var body wikiInput
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	a, err := s.Create(c.UserContext(), callerFrom(c), body)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

// UpdateArticle handles PUT /api/wiki/:id.
func (s *WikiService) UpdateArticle(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, s.log, err)
	}
	var body wikiInput
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	a, err := s.Update(c.UserContext(), callerFrom(c), id, body)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(a)
}

// DeleteArticle handles DELETE /api/wiki/:id.
func (s *WikiService) DeleteArticle(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, s.log, err)
	}
	if err := s.Delete(c.UserContext(), callerFrom(c), id); err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
