// services/news_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crystaltides-web/models"
	"crystaltides-web/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type NewsService struct {
	DB         *gorm.DB
	Translator *Translator
	Discord    *DiscordNotifier
	Audit      *AuditLog
	log        zerolog.Logger
}

func NewNewsService(db *gorm.DB, translator *Translator, discord *DiscordNotifier, audit *AuditLog, log zerolog.Logger) *NewsService {
	return &NewsService{
		DB:         db,
		Translator: translator,
		Discord:    discord,
		Audit:      audit,
		log:        log.With().Str("component", "news").Logger(),
	}
}

// NewsItem is a news row with its comment count.
type NewsItem struct {
	models.News
	Replies int64 `json:"replies"`
}

type newsInput struct {
	Title     *string `json:"title"`
	TitleEN   *string `json:"title_en"`
	Content   *string `json:"content"`
	ContentEN *string `json:"content_en"`
	Category  *string `json:"category"`
	Image     *string `json:"image"`
	Status    *string `json:"status"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// find resolves a numeric id or a slug.
func (s *NewsService) find(ctx context.Context, idOrSlug string) (*models.News, error) {
	var item models.News
	q := s.DB.WithContext(ctx)
	if id, err := strconv.ParseUint(idOrSlug, 10, 64); err == nil {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("slug = ?", idOrSlug)
	}
	if err := q.First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("news")
		}
		return nil, err
	}
	return &item, nil
}

func (s *NewsService) slugFor(ctx context.Context, title string, selfID uint) (string, error) {
	return utils.UniqueSlug(title, func(candidate string) (bool, error) {
		var n int64
		err := s.DB.WithContext(ctx).Model(&models.News{}).
			Where("slug = ? AND id <> ?", candidate, selfID).
			Count(&n).Error
		return n > 0, err
	})
}

// List returns every item newest first with its reply count.
func (s *NewsService) List(ctx context.Context) ([]NewsItem, error) {
	var news []models.News
	if err := s.DB.WithContext(ctx).Order("created_at DESC, id DESC").Find(&news).Error; err != nil {
		return nil, err
	}
	out := make([]NewsItem, len(news))
	if len(news) == 0 {
		return out, nil
	}

	ids := make([]uint, len(news))
	for i, n := range news {
		ids[i] = n.ID
	}
	var counts []struct {
		NewsID uint
		Total  int64
	}
	err := s.DB.WithContext(ctx).Model(&models.Comment{}).
		Select("news_id, COUNT(*) AS total").
		Where("news_id IN ?", ids).
		Group("news_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	replies := make(map[uint]int64, len(counts))
	for _, c := range counts {
		replies[c.NewsID] = c.Total
	}
	for i, n := range news {
		out[i] = NewsItem{News: n, Replies: replies[n.ID]}
	}
	return out, nil
}

// View fetches one item and counts the visit. Concurrent visits may be lost.
func (s *NewsService) View(ctx context.Context, idOrSlug string) (*models.News, error) {
	item, err := s.find(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	item.Views++
	if err := s.DB.WithContext(ctx).Model(item).UpdateColumn("views", item.Views).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (s *NewsService) Create(ctx context.Context, caller *models.Caller, in newsInput) (*models.News, error) {
	title, content := str(in.Title), str(in.Content)
	if title == "" || content == "" {
		return nil, invalid("title and content are required")
	}
	slug, err := s.slugFor(ctx, title, 0)
	if err != nil {
		return nil, err
	}

	item := models.News{
		Title:     title,
		TitleEN:   s.Translator.fillEnglish(ctx, str(in.TitleEN), title),
		Slug:      slug,
		Category:  str(in.Category),
		Content:   content,
		ContentEN: s.Translator.fillEnglish(ctx, str(in.ContentEN), content),
		Image:     str(in.Image),
		Status:    models.NewsStatusDraft,
	}
	if st := str(in.Status); st != "" {
		item.Status = st
	}
	if caller != nil {
		item.AuthorID = caller.ID
	}

	if err := s.DB.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}

	s.Audit.Record(entryFor(caller, "CREATE_NEWS", fmt.Sprintf("Created news: %s", item.Title)))
	if item.Status == models.NewsStatusPublished {
		s.Discord.AnnounceNews(item)
	}
	return &item, nil
}

func (s *NewsService) Update(ctx context.Context, caller *models.Caller, idOrSlug string, in newsInput) (*models.News, error) {
	item, err := s.find(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	wasPublished := item.Status == models.NewsStatusPublished

	updates := map[string]interface{}{}
	if t := str(in.Title); t != "" && t != item.Title {
		slug, err := s.slugFor(ctx, t, item.ID)
		if err != nil {
			return nil, err
		}
		updates["title"] = t
		updates["slug"] = slug
	}
	if in.TitleEN != nil {
		updates["title_en"] = str(in.TitleEN)
	}
	if c := str(in.Content); c != "" {
		updates["content"] = c
	}
	if in.ContentEN != nil {
		updates["content_en"] = str(in.ContentEN)
	}
	if in.Category != nil {
		updates["category"] = str(in.Category)
	}
	if in.Image != nil {
		updates["image"] = str(in.Image)
	}
	if st := str(in.Status); st != "" {
		updates["status"] = st
	}

	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	if err := s.DB.WithContext(ctx).First(item, item.ID).Error; err != nil {
		return nil, err
	}

	s.Audit.Record(entryFor(caller, "UPDATE_NEWS", fmt.Sprintf("Updated news: %s", item.Title)))
	if !wasPublished && item.Status == models.NewsStatusPublished {
		s.Discord.AnnounceNews(*item)
	}
	return item, nil
}

func (s *NewsService) Delete(ctx context.Context, caller *models.Caller, idOrSlug string) error {
	item, err := s.find(ctx, idOrSlug)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("news_id = ?", item.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.News{}, item.ID).Error
	})
	if err != nil {
		return err
	}
	s.Audit.Record(entryFor(caller, "DELETE_NEWS", fmt.Sprintf("Deleted news: %s", item.Title)))
	return nil
}

// PruneStale removes items older than cutoff that never drew an audience.
func (s *NewsService) PruneStale(ctx context.Context, cutoff time.Time, minViews int) (int64, error) {
	var ids []uint
	err := s.DB.WithContext(ctx).Model(&models.News{}).
		Where("created_at < ? AND views < ?", cutoff, minViews).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	var removed int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("news_id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.News{})
		removed = res.RowsAffected
		return res.Error
	})
	return removed, err
}

func (s *NewsService) Comments(ctx context.Context, idOrSlug string) ([]models.Comment, error) {
	item, err := s.find(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	comments := []models.Comment{}
	err = s.DB.WithContext(ctx).
		Where("news_id = ?", item.ID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}

// AddComment stores a comment authored by caller. Author fields come from the
// verified identity only.
func (s *NewsService) AddComment(ctx context.Context, caller *models.Caller, idOrSlug, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content is required")
	}
	item, err := s.find(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}

	name := caller.Username
	if name == "" {
		name, _, _ = strings.Cut(caller.Email, "@")
	}
	comment := models.Comment{
		NewsID:     item.ID,
		UserID:     caller.ID,
		UserName:   name,
		UserAvatar: caller.AvatarURL,
		UserRole:   caller.Role,
		Content:    content,
	}
	if err := s.DB.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ownsComment matches on user id. Rows written before ids were stored fall
// back to the display name.
func ownsComment(c *models.Comment, caller *models.Caller) bool {
	if c.UserID != "" {
		return c.UserID == caller.ID
	}
	return c.UserName != "" && c.UserName == caller.Username
}

func (s *NewsService) comment(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("comment")
		}
		return nil, err
	}
	return &c, nil
}

func (s *NewsService) EditComment(ctx context.Context, caller *models.Caller, id uint, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content is required")
	}
	c, err := s.comment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownsComment(c, caller) {
		return nil, forbidden("you can only edit your own comments")
	}
	if err := s.DB.WithContext(ctx).Model(c).Update("content", content).Error; err != nil {
		return nil, err
	}
	c.Content = content
	return c, nil
}

func (s *NewsService) DeleteComment(ctx context.Context, caller *models.Caller, id uint) error {
	c, err := s.comment(ctx, id)
	if err != nil {
		return err
	}
	if !ownsComment(c, caller) && !models.HasRole(caller.Role, models.CommentModeratorRoles) {
		return forbidden("you cannot delete this comment")
	}
	return s.DB.WithContext(ctx).Delete(c).Error
}

// GetNews handles GET /api/news.
func (s *NewsService) GetNews(c *fiber.Ctx) error {
	items, err := s.List(c.UserContext())
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(items)
}

// GetNewsItem handles GET /api/news/:id.
func (s *NewsService) GetNewsItem(c *fiber.Ctx) error {
	item, err := s.View(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(item)
}

// CreateNews handles POST /api/news.
func (s *NewsService) CreateNews(c *fiber.Ctx) error {
	var body newsInput
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	item, err := s.Create(c.UserContext(), callerFrom(c), body)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// UpdateNews handles PUT /api/news/:id.
func (s *NewsService) UpdateNews(c *fiber.Ctx) error {
	var body newsInput
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	item, err := s.Update(c.UserContext(), callerFrom(c), c.Params("id"), body)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(item)
}

// DeleteNews handles DELETE /api/news/:id.
func (s *NewsService) DeleteNews(c *fiber.Ctx) error {
	if err := s.Delete(c.UserContext(), callerFrom(c), c.Params("id")); err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetComments handles GET /api/news/:id/comments.
func (s *NewsService) GetComments(c *fiber.Ctx) error {
	comments, err := s.Comments(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(comments)
}

type commentBody struct {
	Content string `json:"content"`
}

// PostComment handles POST /api/news/:id/comments.
func (s *NewsService) PostComment(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	var body commentBody
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	comment, err := s.AddComment(c.UserContext(), caller, c.Params("id"), body.Content)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// PutComment handles PUT /api/news/comments/:id.
func (s *NewsService) PutComment(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, s.log, err)
	}
	var body commentBody
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	comment, err := s.EditComment(c.UserContext(), caller, id, body.Content)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(comment)
}

// RemoveComment handles DELETE /api/news/comments/:id.
func (s *NewsService) RemoveComment(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, s.log, err)
	}
	if err := s.DeleteComment(c.UserContext(), caller, id); err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
