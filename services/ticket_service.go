// services/ticket_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TicketService struct {
	DB    *gorm.DB
	Panel PanelAPI
	Audit *AuditLog
	log   zerolog.Logger
}

func NewTicketService(db *gorm.DB, panel PanelAPI, audit *AuditLog, log zerolog.Logger) *TicketService {
	return &TicketService{
		DB:    db,
		Panel: panel,
		Audit: audit,
		log:   log.With().Str("component", "tickets").Logger(),
	}
}

type TicketStats struct {
	Open   int64 `json:"open"`
	Urgent int64 `json:"urgent"`
}

type ticketInput struct {
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Attachments []string `json:"attachments"`
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s *TicketService) Create(ctx context.Context, caller *models.Caller, in ticketInput) (*models.Ticket, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Description = strings.TrimSpace(in.Description)
	if in.Subject == "" || in.Description == "" {
		return nil, invalid("subject and description are required")
	}
	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	if priority == "" {
		priority = models.TicketPriorityMedium
	}
	if !contains(models.TicketPriorities, priority) {
		return nil, invalid("invalid priority %q", in.Priority)
	}

	t := models.Ticket{
		UserID:      caller.ID,
		Subject:     in.Subject,
		Description: in.Description,
		Priority:    priority,
		Status:      models.TicketStatusOpen,
		Attachments: datatypes.JSONSlice[string](in.Attachments),
	}
	if t.Attachments == nil {
		t.Attachments = datatypes.JSONSlice[string]{}
	}
	if err := s.DB.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(entryFor(caller, "CREATE_TICKET", fmt.Sprintf("Opened ticket #%d: %s", t.ID, t.Subject)))
	return &t, nil
}

func (s *TicketService) List(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	q := s.DB.WithContext(ctx).Order("created_at DESC, id DESC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	return tickets, q.Find(&tickets).Error
}

// Stats counts unfinished tickets and the high-priority share of them.
func (s *TicketService) Stats(ctx context.Context) (*TicketStats, error) {
	done := []string{models.TicketStatusClosed, models.TicketStatusResolved}
	stats := &TicketStats{}
	db := s.DB.WithContext(ctx).Model(&models.Ticket{})
	if err := db.Where("status = ?", models.TicketStatusOpen).Count(&stats.Open).Error; err != nil {
		return nil, err
	}
	err := s.DB.WithContext(ctx).Model(&models.Ticket{}).
		Where("priority IN ? AND status NOT IN ?", []string{models.TicketPriorityHigh, models.TicketPriorityUrgent}, done).
		Count(&stats.Urgent).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// accessible loads a ticket the caller owns or, for staff, any ticket.
func (s *TicketService) accessible(ctx context.Context, caller *models.Caller, id uint) (*models.Ticket, error) {
	var t models.Ticket
	if err := s.DB.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("ticket")
		}
		return nil, err
	}
	if t.UserID != caller.ID && !caller.IsStaff() {
		return nil, forbidden("not your ticket")
	}
	return &t, nil
}

func (s *TicketService) UpdateStatus(ctx context.Context, caller *models.Caller, id uint, status string) (*models.Ticket, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !contains(models.TicketStatuses, status) {
		return nil, invalid("invalid status %q", status)
	}
	t, err := s.accessible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(t).Update("status", status).Error; err != nil {
		return nil, err
	}
	t.Status = status
	s.Audit.Record(entryFor(caller, "UPDATE_TICKET", fmt.Sprintf("Ticket #%d set to %s", t.ID, status)))
	return t, nil
}

func (s *TicketService) Messages(ctx context.Context, caller *models.Caller, id uint) ([]models.TicketMessage, error) {
	if _, err := s.accessible(ctx, caller, id); err != nil {
		return nil, err
	}
	msgs := []models.TicketMessage{}
	err := s.DB.WithContext(ctx).Where("ticket_id = ?", id).Order("created_at ASC, id ASC").Find(&msgs).Error
	return msgs, err
}

func (s *TicketService) AddMessage(ctx context.Context, caller *models.Caller, id uint, message string) (*models.TicketMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalid("message is required")
	}
	if _, err := s.accessible(ctx, caller, id); err != nil {
		return nil, err
	}
	msg := models.TicketMessage{
		TicketID: id,
		UserID:   caller.ID,
		Message:  message,
		IsStaff:  caller.IsStaff(),
	}
	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *TicketService) Delete(ctx context.Context, caller *models.Caller, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticket_id = ?", id).Delete(&models.TicketMessage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Ticket{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("ticket")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Audit.Record(entryFor(caller, "DELETE_TICKET", fmt.Sprintf("Deleted ticket #%d", id)))
	return nil
}

// Ban issues a console ban through the panel.
func (s *TicketService) Ban(ctx context.Context, caller *models.Caller, username, reason string) error {
	username = strings.TrimSpace(username)
	if username == "" || strings.ContainsAny(username, " \t\n;") {
		return invalid("a valid username is required")
	}
	if s.Panel == nil {
		return fmt.Errorf("%w: panel", ErrUnavailable)
	}
	reason = strings.TrimSpace(strings.ReplaceAll(reason, "\n", " "))
	if reason == "" {
		reason = "Banned via Web Panel"
	}
	if err := s.Panel.SendCommand(ctx, fmt.Sprintf("ban %s %s", username, reason)); err != nil {
		return err
	}
	s.Audit.Record(entryFor(caller, "BAN_USER", fmt.Sprintf("Banned %s: %s", username, reason)))
	return nil
}

// CreateTicket handles POST /api/tickets.
func (s *TicketService) CreateTicket(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	var body ticketInput
	if err := c.BodyParser(&body); err != nil {
		return sendFailure(c, s.log, invalid("invalid request body"))
	}
	t, err := s.Create(c.UserContext(), caller, body)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusCreated, t, "Ticket created")
}

// GetTickets handles GET /api/tickets.
func (s *TicketService) GetTickets(c *fiber.Ctx) error {
	tickets, err := s.List(c.UserContext(), "")
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, tickets, "")
}

// GetMyTickets handles GET /api/tickets/me.
func (s *TicketService) GetMyTickets(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	tickets, err := s.List(c.UserContext(), caller.ID)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, tickets, "")
}

// GetStats handles GET /api/tickets/stats.
func (s *TicketService) GetStats(c *fiber.Ctx) error {
	stats, err := s.Stats(c.UserContext())
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, stats, "")
}

// PatchStatus handles PATCH /api/tickets/:id/status.
func (s *TicketService) PatchStatus(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
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
	t, err := s.UpdateStatus(c.UserContext(), caller, id, body.Status)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, t, "Status updated")
}

// GetMessages handles GET /api/tickets/:id/messages.
func (s *TicketService) GetMessages(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	id, err := paramUint(c, "id")
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	msgs, err := s.Messages(c.UserContext(), caller, id)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, msgs, "")
}

// PostMessage handles POST /api/tickets/:id/messages.
func (s *TicketService) PostMessage(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	id, err := paramUint(c, "id")
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&body); err != nil {
		return sendFailure(c, s.log, invalid("invalid request body"))
	}
	msg, err := s.AddMessage(c.UserContext(), caller, id, body.Message)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusCreated, msg, "")
}

// DeleteTicket handles DELETE /api/tickets/:id.
func (s *TicketService) DeleteTicket(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	if err := s.Delete(c.UserContext(), callerFrom(c), id); err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, nil, "Ticket deleted")
}

// BanUser handles POST /api/tickets/ban.
func (s *TicketService) BanUser(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Reason   string `json:"reason"`
	}
	if err := c.BodyParser(&body); err != nil {
		return sendFailure(c, s.log, invalid("invalid request body"))
	}
	if err := s.Ban(c.UserContext(), callerFrom(c), body.Username, body.Reason); err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, nil, fmt.Sprintf("%s banned", body.Username))
}
