package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"crystaltides-web/constants"
	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEntry describes one action for the system log.
type AuditEntry struct {
	UserID   string
	Username string
	Action   string
	Details  string
	Source   string
	Metadata map[string]interface{}
}

// AuditLog writes system_logs rows. Record never blocks the caller and never
// surfaces a failure.
type AuditLog struct {
	DB  *gorm.DB
	log zerolog.Logger
	wg  sync.WaitGroup
}

func NewAuditLog(db *gorm.DB, log zerolog.Logger) *AuditLog {
	return &AuditLog{DB: db, log: log.With().Str("component", "audit").Logger()}
}

func entryFor(caller *models.Caller, action, details string) AuditEntry {
	e := AuditEntry{Action: action, Details: details}
	if caller != nil {
		e.UserID = caller.ID
		e.Username = caller.Username
	}
	return e
}

func (a *AuditLog) Record(e AuditEntry) {
	if a == nil || a.DB == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), constants.SideEffectTimeout)
		defer cancel()
		if _, err := a.insert(ctx, e); err != nil {
			a.log.Error().Err(err).Str("action", e.Action).Msg("failed to write audit entry")
		}
	}()
}

// Wait blocks until pending Record calls have finished.
func (a *AuditLog) Wait() {
	if a != nil {
		a.wg.Wait()
	}
}

func (a *AuditLog) insert(ctx context.Context, e AuditEntry) (*models.SystemLog, error) {
	row := models.SystemLog{
		Username: e.Username,
		Action:   e.Action,
		Details:  e.Details,
		Source:   e.Source,
	}
	if row.Username == "" {
		row.Username = "System"
	}
	if row.Source == "" {
		row.Source = models.LogSourceWeb
	}
	if e.UserID != "" {
		uid := e.UserID
		row.UserID = &uid
	}
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, err
		}
		row.Metadata = datatypes.JSON(raw)
	}
	if err := a.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns one page of entries, newest first.
func (a *AuditLog) List(ctx context.Context, page, limit int, source, search string) (*Page, error) {
	q := a.DB.WithContext(ctx).Model(&models.SystemLog{})
	if source != "" && source != "all" {
		q = q.Where("source = ?", source)
	}
	if search = strings.TrimSpace(search); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(action) LIKE ? OR LOWER(details) LIKE ?", term, term, term)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	logs := []models.SystemLog{}
	if err := q.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return &Page{Data: logs, Total: total, Page: page, TotalPages: totalPages(total, limit)}, nil
}

// Prune deletes entries created before cutoff.
func (a *AuditLog) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := a.DB.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	return res.RowsAffected, res.Error
}

type logRequest struct {
	Action   string                 `json:"action"`
	Details  string                 `json:"details"`
	Source   string                 `json:"source"`
	Username string                 `json:"username"`
	UserID   string                 `json:"user_id"`
	Metadata map[string]interface{} `json:"metadata"`
}

// GetLogs handles GET /api/logs.
func (a *AuditLog) GetLogs(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	result, err := a.List(c.UserContext(), page, limit, c.Query("source"), c.Query("search"))
	if err != nil {
		return respondError(c, a.log, err)
	}
	return c.JSON(result)
}

// CreateLog handles POST /api/logs for manual staff entries.
func (a *AuditLog) CreateLog(c *fiber.Ctx) error {
	var req logRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Action) == "" {
		return respondError(c, a.log, invalid("action is required"))
	}
	e := entryFor(callerFrom(c), req.Action, req.Details)
	e.Source = req.Source
	e.Metadata = req.Metadata
	row, err := a.insert(c.UserContext(), e)
	if err != nil {
		return respondError(c, a.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(row)
}

// BridgeLog handles POST /api/bridge/logs from the game server plugin.
func (a *AuditLog) BridgeLog(c *fiber.Ctx) error {
	var req logRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Action) == "" {
		return respondError(c, a.log, invalid("action is required"))
	}
	row, err := a.insert(c.UserContext(), AuditEntry{
		UserID:   req.UserID,
		Username: req.Username,
		Action:   req.Action,
		Details:  req.Details,
		Source:   models.LogSourceGame,
		Metadata: req.Metadata,
	})
	if err != nil {
		return respondError(c, a.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(row)
}
