// services/poll_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type PollService struct {
	DB         *gorm.DB
	Translator *Translator
	Audit      *AuditLog
	Now        func() time.Time
	log        zerolog.Logger
}

func NewPollService(db *gorm.DB, translator *Translator, audit *AuditLog, log zerolog.Logger) *PollService {
	return &PollService{
		DB:         db,
		Translator: translator,
		Audit:      audit,
		Now:        time.Now,
		log:        log.With().Str("component", "polls").Logger(),
	}
}

// OptionView is an option with its share of the vote.
type OptionView struct {
	ID      uint   `json:"id"`
	Label   string `json:"label"`
	LabelEN string `json:"label_en"`
	Votes   int    `json:"votes"`
	Percent int    `json:"percent"`
}

// PollView is a poll as shown to voters.
type PollView struct {
	ID          uint         `json:"id"`
	Title       string       `json:"title"`
	TitleEN     string       `json:"title_en"`
	Question    string       `json:"question"`
	QuestionEN  string       `json:"question_en"`
	IsActive    bool         `json:"is_active"`
	ClosesAt    *time.Time   `json:"closes_at"`
	ClosesIn    string       `json:"closesIn"`
	ThreadID    *uint        `json:"thread_id"`
	DiscordLink *string      `json:"discord_link"`
	Options     []OptionView `json:"options"`
	TotalVotes  int          `json:"totalVotes"`
	CreatedAt   time.Time    `json:"created_at"`
}

// PollSummary is one row of the staff poll listing.
type PollSummary struct {
	models.Poll
	TotalVotes int `json:"totalVotes"`
}

func percentOf(votes, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(votes) / float64(total) * 100))
}

// closesIn renders the time left in the site's wording.
func closesIn(closesAt *time.Time, now time.Time) string {
	if closesAt == nil {
		return "Indefinido"
	}
	left := closesAt.Sub(now)
	if left <= 0 {
		return "Finalizada"
	}
	days := int(left / (24 * time.Hour))
	if days > 0 {
		return fmt.Sprintf("%d días", days)
	}
	return fmt.Sprintf("%d horas", int(left/time.Hour)%24)
}

func (s *PollService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *PollService) view(p *models.Poll) *PollView {
	total := 0
	for _, o := range p.Options {
		total += o.Votes
	}
	opts := make([]OptionView, len(p.Options))
	for i, o := range p.Options {
		opts[i] = OptionView{
			ID:      o.ID,
			Label:   o.Label,
			LabelEN: o.LabelEN,
			Votes:   o.Votes,
			Percent: percentOf(o.Votes, total),
		}
	}
	return &PollView{
		ID:          p.ID,
		Title:       p.Title,
		TitleEN:     p.TitleEN,
		Question:    p.Question,
		QuestionEN:  p.QuestionEN,
		IsActive:    p.IsActive,
		ClosesAt:    p.ClosesAt,
		ClosesIn:    closesIn(p.ClosesAt, s.now()),
		ThreadID:    p.ThreadID,
		DiscordLink: p.DiscordLink,
		Options:     opts,
		TotalVotes:  total,
		CreatedAt:   p.CreatedAt,
	}
}

func orderedOptions(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// Active returns the most recent active poll, or nil when there is none.
func (s *PollService) Active(ctx context.Context) (*PollView, error) {
	var poll models.Poll
	err := s.DB.WithContext(ctx).
		Preload("Options", orderedOptions).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.view(&poll), nil
}

func (s *PollService) Get(ctx context.Context, id uint) (*PollView, error) {
	var poll models.Poll
	err := s.DB.WithContext(ctx).Preload("Options", orderedOptions).First(&poll, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("poll")
	}
	if err != nil {
		return nil, err
	}
	return s.view(&poll), nil
}

func (s *PollService) List(ctx context.Context, page, limit int) (*Page, error) {
	db := s.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Poll{}).Count(&total).Error; err != nil {
		return nil, err
	}
	var polls []models.Poll
	err := db.Preload("Options", orderedOptions).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&polls).Error
	if err != nil {
		return nil, err
	}

	rows := make([]PollSummary, len(polls))
	for i, p := range polls {
		rows[i] = PollSummary{Poll: p}
		for _, o := range p.Options {
			rows[i].TotalVotes += o.Votes
		}
	}
	return &Page{Data: rows, Total: total, Page: page, TotalPages: totalPages(total, limit)}, nil
}

// Vote adds one vote to an option. The read and the write are separate
// statements, so concurrent votes may be lost.
func (s *PollService) Vote(ctx context.Context, pollID, optionID uint) (int, error) {
	db := s.DB.WithContext(ctx)

	var poll models.Poll
	if err := db.First(&poll, pollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, notFound("poll")
		}
		return 0, err
	}
	if !poll.IsActive || (poll.ClosesAt != nil && !poll.ClosesAt.After(s.now())) {
		return 0, invalid("poll is closed")
	}

	var opt models.PollOption
	if err := db.Where("id = ? AND poll_id = ?", optionID, pollID).First(&opt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, notFound("option")
		}
		return 0, err
	}

	votes := opt.Votes + 1
	if err := db.Model(&opt).Update("votes", votes).Error; err != nil {
		return 0, err
	}
	return votes, nil
}

// optionInput accepts either "label" or {"label": ..., "label_en": ...}.
type optionInput struct {
	Label   string `json:"label"`
	LabelEN string `json:"label_en"`
}

func (o *optionInput) UnmarshalJSON(b []byte) error {
	var label string
	if err := json.Unmarshal(b, &label); err == nil {
		o.Label = label
		return nil
	}
	type plain optionInput
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*o = optionInput(p)
	return nil
}

type pollInput struct {
	Title       string        `json:"title"`
	TitleEN     string        `json:"title_en"`
	Question    string        `json:"question"`
	QuestionEN  string        `json:"question_en"`
	Options     []optionInput `json:"options"`
	ClosesAt    *string       `json:"closes_at"`
	ThreadID    *uint         `json:"thread_id"`
	DiscordLink *string       `json:"discord_link"`
}

var closeTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

func parseCloseTime(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	for _, layout := range closeTimeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(*raw)); err == nil {
			return &t, nil
		}
	}
	return nil, invalid("closes_at is not a valid date")
}

func cleanOptions(in []optionInput) []optionInput {
	out := make([]optionInput, 0, len(in))
	for _, o := range in {
		o.Label = strings.TrimSpace(o.Label)
		o.LabelEN = strings.TrimSpace(o.LabelEN)
		if o.Label != "" {
			out = append(out, o)
		}
	}
	return out
}

// Create stores a new poll. A global poll replaces whichever global poll is
// currently active.
func (s *PollService) Create(ctx context.Context, caller *models.Caller, in pollInput) (*models.Poll, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Question = strings.TrimSpace(in.Question)
	opts := cleanOptions(in.Options)
	if in.Title == "" || in.Question == "" || len(opts) < 2 {
		return nil, invalid("title, question and at least two options are required")
	}
	closesAt, err := parseCloseTime(in.ClosesAt)
	if err != nil {
		return nil, err
	}

	poll := models.Poll{
		Title:       in.Title,
		TitleEN:     s.Translator.fillEnglish(ctx, in.TitleEN, in.Title),
		Question:    in.Question,
		QuestionEN:  s.Translator.fillEnglish(ctx, in.QuestionEN, in.Question),
		IsActive:    true,
		ClosesAt:    closesAt,
		ThreadID:    in.ThreadID,
		DiscordLink: in.DiscordLink,
	}
	for _, o := range opts {
		poll.Options = append(poll.Options, models.PollOption{
			Label:   o.Label,
			LabelEN: s.Translator.fillEnglish(ctx, o.LabelEN, o.Label),
		})
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if poll.IsGlobal() {
			err := tx.Model(&models.Poll{}).
				Where("is_active = ? AND thread_id IS NULL", true).
				Update("is_active", false).Error
			if err != nil {
				return err
			}
		}
		return tx.Create(&poll).Error
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(entryFor(caller, "CREATE_POLL", fmt.Sprintf("Created poll: %s", poll.Title)))
	return &poll, nil
}

// Update rewrites a poll's texts and options. Existing options are matched by
// position in ascending id order: the first ones are relabelled, extras are
// appended and leftovers removed. Any option count is accepted, so a single
// label trims a poll down to one option.
func (s *PollService) Update(ctx context.Context, caller *models.Caller, id uint, in pollInput) (*models.Poll, error) {
	closesAt, err := parseCloseTime(in.ClosesAt)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.ClosesAt != nil {
		updates["closes_at"] = closesAt
	}
	if in.DiscordLink != nil {
		updates["discord_link"] = in.DiscordLink
	}
	// Translations go out before the transaction opens.
	if t := strings.TrimSpace(in.Title); t != "" {
		updates["title"] = t
		updates["title_en"] = s.Translator.fillEnglish(ctx, in.TitleEN, t)
	}
	if q := strings.TrimSpace(in.Question); q != "" {
		updates["question"] = q
		updates["question_en"] = s.Translator.fillEnglish(ctx, in.QuestionEN, q)
	}
	opts := cleanOptions(in.Options)
	for i := range opts {
		opts[i].LabelEN = s.Translator.fillEnglish(ctx, opts[i].LabelEN, opts[i].Label)
	}

	var poll models.Poll
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Options", orderedOptions).First(&poll, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("poll")
			}
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&poll).Updates(updates).Error; err != nil {
				return err
			}
		}
		if in.Options == nil {
			return nil
		}
		return syncOptions(tx, poll.ID, poll.Options, opts)
	})
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Preload("Options", orderedOptions).First(&poll, id).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(entryFor(caller, "UPDATE_POLL", fmt.Sprintf("Updated poll #%d: %s", poll.ID, poll.Title)))
	return &poll, nil
}

// syncOptions applies the positional option diff. existing must be in
// ascending id order and opts already translated.
func syncOptions(tx *gorm.DB, pollID uint, existing []models.PollOption, opts []optionInput) error {
	for i, o := range opts {
		if i < len(existing) {
			err := tx.Model(&existing[i]).Updates(map[string]interface{}{
				"label":    o.Label,
				"label_en": o.LabelEN,
			}).Error
			if err != nil {
				return err
			}
			continue
		}
		if err := tx.Create(&models.PollOption{PollID: pollID, Label: o.Label, LabelEN: o.LabelEN}).Error; err != nil {
			return err
		}
	}
	if len(existing) <= len(opts) {
		return nil
	}
	var stale []uint
	for _, o := range existing[len(opts):] {
		stale = append(stale, o.ID)
	}
	return tx.Where("id IN ?", stale).Delete(&models.PollOption{}).Error
}

// Close deactivates a poll for good.
func (s *PollService) Close(ctx context.Context, caller *models.Caller, id uint) error {
	res := s.DB.WithContext(ctx).Model(&models.Poll{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("poll")
	}
	s.Audit.Record(entryFor(caller, "CLOSE_POLL", fmt.Sprintf("Closed poll #%d", id)))
	return nil
}

func (s *PollService) Delete(ctx context.Context, caller *models.Caller, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("poll_id = ?", id).Delete(&models.PollOption{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Poll{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("poll")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Audit.Record(entryFor(caller, "DELETE_POLL", fmt.Sprintf("Deleted poll #%d", id)))
	return nil
}

// CloseExpired deactivates active polls whose close time has passed.
func (s *PollService) CloseExpired(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Poll{}).
		Where("is_active = ? AND closes_at IS NOT NULL AND closes_at <= ?", true, s.now()).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// GetActivePoll handles GET /api/polls/active.
func (s *PollService) GetActivePoll(c *fiber.Ctx) error {
	poll, err := s.Active(c.UserContext())
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, poll, "")
}

// GetPoll handles GET /api/polls/:id.
func (s *PollService) GetPoll(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	poll, err := s.Get(c.UserContext(), id)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, poll, "")
}

// GetPolls handles GET /api/polls.
func (s *PollService) GetPolls(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	result, err := s.List(c.UserContext(), page, limit)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, result, "")
}

// VotePoll handles POST /api/polls/vote.
func (s *PollService) VotePoll(c *fiber.Ctx) error {
	var body struct {
		PollID   uint `json:"pollId"`
		OptionID uint `json:"optionId"`
	}
	if err := c.BodyParser(&body); err != nil || body.PollID == 0 || body.OptionID == 0 {
		return sendFailure(c, s.log, invalid("pollId and optionId are required"))
	}
	votes, err := s.Vote(c.UserContext(), body.PollID, body.OptionID)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, fiber.Map{"votes": votes}, "Vote registered")
}

// CreatePoll handles POST /api/polls/create.
func (s *PollService) CreatePoll(c *fiber.Ctx) error {
	var body pollInput
	if err := c.BodyParser(&body); err != nil {
		return sendFailure(c, s.log, invalid("invalid request body"))
	}
	poll, err := s.Create(c.UserContext(), callerFrom(c), body)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusCreated, poll, "Poll created")
}

// UpdatePoll handles PUT /api/polls/update/:id.
func (s *PollService) UpdatePoll(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	var body pollInput
	if err := c.BodyParser(&body); err != nil {
		return sendFailure(c, s.log, invalid("invalid request body"))
	}
	poll, err := s.Update(c.UserContext(), callerFrom(c), id, body)
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, poll, "Poll updated")
}

// ClosePoll handles POST /api/polls/close/:id.
func (s *PollService) ClosePoll(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	if err := s.Close(c.UserContext(), callerFrom(c), id); err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, nil, "Poll closed")
}

// DeletePoll handles DELETE /api/polls/:id.
func (s *PollService) DeletePoll(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return sendFailure(c, s.log, err)
	}
	if err := s.Delete(c.UserContext(), callerFrom(c), id); err != nil {
		return sendFailure(c, s.log, err)
	}
	return sendSuccess(c, fiber.StatusOK, nil, "Poll deleted")
}
