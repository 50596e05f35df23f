package services

import (
	"context"
	"strings"

	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type SuggestionService struct {
	DB  *gorm.DB
	log zerolog.Logger
}

func NewSuggestionService(db *gorm.DB, log zerolog.Logger) *SuggestionService {
	return &SuggestionService{DB: db, log: log.With().Str("component", "suggestions").Logger()}
}

type suggestionInput struct {
	Nickname string `json:"nickname"`
	Type     string `json:"type"`
	Message  string `json:"message"`
}

func (s *SuggestionService) Create(ctx context.Context, in suggestionInput) (*models.Suggestion, error) {
	in.Type = strings.TrimSpace(in.Type)
	in.Message = strings.TrimSpace(in.Message)
	if in.Type == "" || in.Message == "" {
		return nil, invalid("type and message are required")
	}
	nick := strings.TrimSpace(in.Nickname)
	if nick == "" {
		nick = "Anónimo"
	}
	sug := models.Suggestion{Nickname: nick, Type: in.Type, Message: in.Message, Status: "pending"}
	return &sug, s.DB.WithContext(ctx).Create(&sug).Error
}

func (s *SuggestionService) List(ctx context.Context) ([]models.Suggestion, error) {
	out := []models.Suggestion{}
	return out, s.DB.WithContext(ctx).Order("created_at DESC, id DESC").Find(&out).Error
}

func (s *SuggestionService) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Suggestion{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("suggestion")
	}
	return nil
}

func (s *SuggestionService) SetStatus(ctx context.Context, id uint, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if !contains(models.SuggestionStatuses, status) {
		return invalid("invalid status %q", status)
	}
	res := s.DB.WithContext(ctx).Model(&models.Suggestion{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("suggestion")
	}
	return nil
}

// PostSuggestion handles POST /api/suggestions.
func (s *SuggestionService) PostSuggestion(c *fiber.Ctx) error {
	var body suggestionInput
	if err := c.BodyParser(&body); err != nil {
		return sendFailure(c, s.log, invalid("invalid request body"))
	}
	sug, err := s.Create(c.UserContext(), body)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusCreated, sug, "Suggestion received")
}

// GetSuggestions handles GET /api/suggestions.
func (s *SuggestionService) GetSuggestions(c *fiber.Ctx) error {
	list, err := s.List(c.UserContext())
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, list, "")
}

// DeleteSuggestion handles DELETE /api/suggestions/:id.
func (s *SuggestionService) DeleteSuggestion(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	if err := s.Delete(c.UserContext(), id); err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, nil, "Suggestion deleted")
}

// PatchSuggestionStatus handles PATCH /api/suggestions/:id/status.
func (s *SuggestionService) PatchSuggestionStatus(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return sendFailure(c, s.log, invalid("invalid request body"))
	}
	if err := s.SetStatus(c.UserContext(), id, body.Status); err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, nil, "Status updated")
}
