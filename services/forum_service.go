// services/forum_service.go
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

type ForumService struct {
	DB      *gorm.DB
	Polls   *PollService
	Discord *DiscordNotifier
	Audit   *AuditLog
	log     zerolog.Logger
}

func NewForumService(db *gorm.DB, polls *PollService, discord *DiscordNotifier, audit *AuditLog, log zerolog.Logger) *ForumService {
	return &ForumService{
		DB:      db,
		Polls:   polls,
		Discord: discord,
		Audit:   audit,
		log:     log.With().Str("component", "forum").Logger(),
	}
}

// ThreadItem is a thread row in a listing.
type ThreadItem struct {
	models.ForumThread
	ReplyCount int64 `json:"reply_count"`
}

// ThreadView is a thread with its poll, when it has one.
type ThreadView struct {
	models.ForumThread
	Poll *PollView `json:"poll"`
}

// ThreadPage is everything the thread page renders.
type ThreadPage struct {
	ThreadView
	Posts []models.ForumPost `json:"posts"`
}

type LastPost struct {
	User string     `json:"user"`
	Date *time.Time `json:"date"`
}

type CategoryStats struct {
	ID       uint     `json:"id"`
	Topics   int64    `json:"topics"`
	Posts    int64    `json:"posts"`
	LastPost LastPost `json:"lastPost"`
}

type threadPollInput struct {
	Enabled     bool          `json:"enabled"`
	Question    string        `json:"question"`
	Options     []optionInput `json:"options"`
	ClosesAt    *string       `json:"closes_at"`
	DiscordLink *string       `json:"discord_link"`
}

type threadInput struct {
	CategoryID uint             `json:"category_id"`
	Title      string           `json:"title"`
	Content    string           `json:"content"`
	Poll       *threadPollInput `json:"poll_data"`
}

type threadUpdate struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	CategoryID *uint   `json:"category_id"`
	Pinned     *bool   `json:"pinned"`
}

func isForumCategory(id uint) bool {
	for _, c := range models.ForumCategoryIDs {
		if c == id {
			return true
		}
	}
	return false
}

func authorName(caller *models.Caller) string {
	if caller.Username != "" {
		return caller.Username
	}
	name, _, _ := strings.Cut(caller.Email, "@")
	return name
}

func (s *ForumService) find(ctx context.Context, idOrSlug string) (*models.ForumThread, error) {
	var t models.ForumThread
	q := s.DB.WithContext(ctx)
	if id, err := strconv.ParseUint(idOrSlug, 10, 64); err == nil {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("slug = ?", idOrSlug)
	}
	if err := q.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("thread")
		}
		return nil, err
	}
	return &t, nil
}

func (s *ForumService) slugFor(ctx context.Context, title string, selfID uint) (string, error) {
	return utils.UniqueSlug(title, func(candidate string) (bool, error) {
		var n int64
		err := s.DB.WithContext(ctx).Model(&models.ForumThread{}).
			Where("slug = ? AND id <> ?", candidate, selfID).
			Count(&n).Error
		return n > 0, err
	})
}

func (s *ForumService) withReplies(ctx context.Context, threads []models.ForumThread) ([]ThreadItem, error) {
	out := make([]ThreadItem, len(threads))
	if len(threads) == 0 {
		return out, nil
	}
	ids := make([]uint, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}
	var counts []struct {
		ThreadID uint
		Total    int64
	}
	err := s.DB.WithContext(ctx).Model(&models.ForumPost{}).
		Select("thread_id, COUNT(*) AS total").
		Where("thread_id IN ?", ids).
		Group("thread_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	replies := make(map[uint]int64, len(counts))
	for _, c := range counts {
		replies[c.ThreadID] = c.Total
	}
	for i, t := range threads {
		out[i] = ThreadItem{ForumThread: t, ReplyCount: replies[t.ID]}
	}
	return out, nil
}

// Threads lists a board with pinned threads first, newest first otherwise.
func (s *ForumService) Threads(ctx context.Context, categoryID uint) ([]ThreadItem, error) {
	var threads []models.ForumThread
	err := s.DB.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("pinned DESC, created_at DESC, id DESC").
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return s.withReplies(ctx, threads)
}

func (s *ForumService) UserThreads(ctx context.Context, userID string) ([]ThreadItem, error) {
	var threads []models.ForumThread
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return s.withReplies(ctx, threads)
}

// Thread resolves an id or slug and attaches the thread's poll. A poll that
// was deleted on its own leaves the thread without one.
func (s *ForumService) Thread(ctx context.Context, idOrSlug string) (*ThreadView, error) {
	t, err := s.find(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	view := &ThreadView{ForumThread: *t}
	if t.PollID != nil && s.Polls != nil {
		poll, err := s.Polls.Get(ctx, *t.PollID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		view.Poll = poll
	}
	return view, nil
}

// Page loads a thread for reading and counts the visit.
func (s *ForumService) Page(ctx context.Context, idOrSlug string) (*ThreadPage, error) {
	view, err := s.Thread(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Model(&models.ForumThread{}).
		Where("id = ?", view.ID).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
	if err != nil {
		return nil, err
	}
	view.Views++
	posts, err := s.postsOf(ctx, view.ID)
	if err != nil {
		return nil, err
	}
	return &ThreadPage{ThreadView: *view, Posts: posts}, nil
}

func (s *ForumService) postsOf(ctx context.Context, threadID uint) ([]models.ForumPost, error) {
	posts := []models.ForumPost{}
	err := s.DB.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Find(&posts).Error
	return posts, err
}

func (s *ForumService) Posts(ctx context.Context, idOrSlug string) ([]models.ForumPost, error) {
	t, err := s.find(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	return s.postsOf(ctx, t.ID)
}

// CreateThread opens a thread authored by caller, optionally with a
// thread-scoped poll. When the poll cannot be stored the thread is removed
// again.
func (s *ForumService) CreateThread(ctx context.Context, caller *models.Caller, in threadInput) (*models.ForumThread, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return nil, invalid("title and content are required")
	}
	if !isForumCategory(in.CategoryID) {
		return nil, invalid("invalid category %d", in.CategoryID)
	}

	withPoll := in.Poll != nil && in.Poll.Enabled
	if withPoll {
		if s.Polls == nil {
			return nil, fmt.Errorf("%w: polls", ErrUnavailable)
		}
		if len(cleanOptions(in.Poll.Options)) < 2 {
			return nil, invalid("a thread poll needs at least two options")
		}
		if _, err := parseCloseTime(in.Poll.ClosesAt); err != nil {
			return nil, err
		}
	}

	slug, err := s.slugFor(ctx, in.Title, 0)
	if err != nil {
		return nil, err
	}
	thread := models.ForumThread{
		CategoryID:   in.CategoryID,
		UserID:       caller.ID,
		AuthorName:   authorName(caller),
		AuthorAvatar: caller.AvatarURL,
		AuthorRole:   caller.Role,
		Title:        in.Title,
		Content:      in.Content,
		Slug:         slug,
	}
	if err := s.DB.WithContext(ctx).Create(&thread).Error; err != nil {
		return nil, err
	}

	if withPoll {
		question := strings.TrimSpace(in.Poll.Question)
		if question == "" {
			question = "Encuesta externa"
		}
		poll, err := s.Polls.Create(ctx, caller, pollInput{
			Title:       thread.Title + " - Encuesta",
			Question:    question,
			Options:     in.Poll.Options,
			ClosesAt:    in.Poll.ClosesAt,
			ThreadID:    &thread.ID,
			DiscordLink: in.Poll.DiscordLink,
		})
		if err == nil {
			err = s.DB.WithContext(ctx).Model(&thread).Update("poll_id", poll.ID).Error
			thread.PollID = &poll.ID
		}
		if err != nil {
			if derr := s.DB.WithContext(ctx).Delete(&models.ForumThread{}, thread.ID).Error; derr != nil {
				s.log.Error().Err(derr).Uint("thread_id", thread.ID).Msg("failed to roll back thread")
			}
			return nil, err
		}
	}

	s.Discord.AnnounceThread(thread)
	return &thread, nil
}

func canManageThread(t *models.ForumThread, caller *models.Caller) bool {
	return (t.UserID != "" && t.UserID == caller.ID) || caller.IsStaff()
}

// UpdateThread edits a thread. Authors may change the text; moving and
// pinning are staff actions.
func (s *ForumService) UpdateThread(ctx context.Context, caller *models.Caller, id uint, in threadUpdate) (*models.ForumThread, error) {
	t, err := s.find(ctx, strconv.FormatUint(uint64(id), 10))
	if err != nil {
		return nil, err
	}
	if !canManageThread(t, caller) {
		return nil, forbidden("not your thread")
	}
	if (in.Pinned != nil || in.CategoryID != nil) && !caller.IsStaff() {
		return nil, forbidden("only staff can move or pin threads")
	}

	updates := map[string]interface{}{}
	if title := str(in.Title); title != "" && title != t.Title {
		slug, err := s.slugFor(ctx, title, t.ID)
		if err != nil {
			return nil, err
		}
		updates["title"] = title
		updates["slug"] = slug
	}
	if content := str(in.Content); content != "" {
		updates["content"] = content
	}
	if in.CategoryID != nil {
		if !isForumCategory(*in.CategoryID) {
			return nil, invalid("invalid category %d", *in.CategoryID)
		}
		updates["category_id"] = *in.CategoryID
	}
	if in.Pinned != nil {
		updates["pinned"] = *in.Pinned
	}
	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(t).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	if err := s.DB.WithContext(ctx).First(t, t.ID).Error; err != nil {
		return nil, err
	}
	if caller.ID != t.UserID {
		s.Audit.Record(entryFor(caller, "UPDATE_THREAD", fmt.Sprintf("Edited thread #%d: %s", t.ID, t.Title)))
	}
	return t, nil
}

// DeleteThread removes the thread, its posts and its poll.
func (s *ForumService) DeleteThread(ctx context.Context, caller *models.Caller, id uint) error {
	t, err := s.find(ctx, strconv.FormatUint(uint64(id), 10))
	if err != nil {
		return err
	}
	if !canManageThread(t, caller) {
		return forbidden("not your thread")
	}

	if t.PollID != nil && s.Polls != nil {
		if err := s.Polls.Delete(ctx, caller, *t.PollID); err != nil && !errors.Is(err, ErrNotFound) {
			s.log.Error().Err(err).Uint("poll_id", *t.PollID).Msg("failed to delete thread poll")
		}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", t.ID).Delete(&models.ForumPost{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ForumThread{}, t.ID).Error
	})
	if err != nil {
		return err
	}
	s.Audit.Record(entryFor(caller, "DELETE_THREAD", fmt.Sprintf("Deleted thread #%d: %s", t.ID, t.Title)))
	return nil
}

func (s *ForumService) CreatePost(ctx context.Context, caller *models.Caller, threadIDOrSlug, content string) (*models.ForumPost, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content is required")
	}
	t, err := s.find(ctx, threadIDOrSlug)
	if err != nil {
		return nil, err
	}
	post := models.ForumPost{
		ThreadID:     t.ID,
		UserID:       caller.ID,
		AuthorName:   authorName(caller),
		AuthorAvatar: caller.AvatarURL,
		AuthorRole:   caller.Role,
		Content:      content,
	}
	if err := s.DB.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *ForumService) post(ctx context.Context, id uint) (*models.ForumPost, error) {
	var p models.ForumPost
	if err := s.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("post")
		}
		return nil, err
	}
	return &p, nil
}

func (s *ForumService) UpdatePost(ctx context.Context, caller *models.Caller, id uint, content string) (*models.ForumPost, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content is required")
	}
	p, err := s.post(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != caller.ID {
		return nil, forbidden("you can only edit your own posts")
	}
	if err := s.DB.WithContext(ctx).Model(p).Update("content", content).Error; err != nil {
		return nil, err
	}
	p.Content = content
	return p, nil
}

func (s *ForumService) DeletePost(ctx context.Context, caller *models.Caller, id uint) error {
	p, err := s.post(ctx, id)
	if err != nil {
		return err
	}
	if p.UserID != caller.ID && !caller.IsStaff() {
		return forbidden("you cannot delete this post")
	}
	return s.DB.WithContext(ctx).Delete(p).Error
}

// Stats summarises the news board and every forum board.
func (s *ForumService) Stats(ctx context.Context) ([]CategoryStats, error) {
	db := s.DB.WithContext(ctx)
	stats := make([]CategoryStats, 0, len(models.ForumCategoryIDs)+1)

	news := CategoryStats{ID: models.NewsCategoryID, LastPost: LastPost{User: "Staff"}}
	published := db.Model(&models.News{}).Where("status = ?", models.NewsStatusPublished)
	if err := published.Count(&news.Topics).Error; err != nil {
		return nil, err
	}
	news.Posts = news.Topics
	var latestNews []models.News
	err := db.Model(&models.News{}).
		Where("status = ?", models.NewsStatusPublished).
		Order("created_at DESC, id DESC").Limit(1).
		Find(&latestNews).Error
	if err != nil {
		return nil, err
	}
	if len(latestNews) == 1 {
		news.LastPost.Date = &latestNews[0].CreatedAt
	}
	stats = append(stats, news)

	for _, cat := range models.ForumCategoryIDs {
		st := CategoryStats{ID: cat, LastPost: LastPost{User: "-"}}
		if err := db.Model(&models.ForumThread{}).Where("category_id = ?", cat).Count(&st.Topics).Error; err != nil {
			return nil, err
		}
		err := db.Model(&models.ForumPost{}).
			Joins("JOIN forum_threads ON forum_threads.id = forum_posts.thread_id").
			Where("forum_threads.category_id = ?", cat).
			Count(&st.Posts).Error
		if err != nil {
			return nil, err
		}

		var threads []models.ForumThread
		err = db.Where("category_id = ?", cat).
			Order("created_at DESC, id DESC").Limit(1).
			Find(&threads).Error
		if err != nil {
			return nil, err
		}
		var posts []models.ForumPost
		err = db.Model(&models.ForumPost{}).
			Select("forum_posts.author_name, forum_posts.created_at").
			Joins("JOIN forum_threads ON forum_threads.id = forum_posts.thread_id").
			Where("forum_threads.category_id = ?", cat).
			Order("forum_posts.created_at DESC, forum_posts.id DESC").Limit(1).
			Find(&posts).Error
		if err != nil {
			return nil, err
		}

		switch {
		case len(posts) == 1 && (len(threads) == 0 || posts[0].CreatedAt.After(threads[0].CreatedAt)):
			st.LastPost = LastPost{User: posts[0].AuthorName, Date: &posts[0].CreatedAt}
		case len(threads) == 1:
			st.LastPost = LastPost{User: threads[0].AuthorName, Date: &threads[0].CreatedAt}
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// GetStats handles GET /api/forum/stats.
func (s *ForumService) GetStats(c *fiber.Ctx) error {
	stats, err := s.Stats(c.UserContext())
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(stats)
}

// GetThreads handles GET /api/forum/category/:categoryId.
func (s *ForumService) GetThreads(c *fiber.Ctx) error {
	id, err := paramUint(c, "categoryId")
	if err != nil {
		return respondError(c, s.log, err)
	}
	threads, err := s.Threads(c.UserContext(), id)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(threads)
}

// GetUserThreads handles GET /api/forum/user/:userId/threads.
func (s *ForumService) GetUserThreads(c *fiber.Ctx) error {
	threads, err := s.UserThreads(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(threads)
}

// GetThread handles GET /api/forum/thread/:id.
func (s *ForumService) GetThread(c *fiber.Ctx) error {
	view, err := s.Thread(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(view)
}

// GetThreadPage handles GET /api/forum/thread/:id/full.
func (s *ForumService) GetThreadPage(c *fiber.Ctx) error {
	page, err := s.Page(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(page)
}

// GetPosts handles GET /api/forum/thread/:id/posts.
func (s *ForumService) GetPosts(c *fiber.Ctx) error {
	posts, err := s.Posts(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(posts)
}

// PostThread handles POST /api/forum/thread.
func (s *ForumService) PostThread(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	var body threadInput
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	t, err := s.CreateThread(c.UserContext(), caller, body)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

// PutThread handles PUT /api/forum/thread/:id.
func (s *ForumService) PutThread(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, s.log, err)
	}
	var body threadUpdate
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	t, err := s.UpdateThread(c.UserContext(), caller, id, body)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(t)
}

// RemoveThread handles DELETE /api/forum/thread/:id.
func (s *ForumService) RemoveThread(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, s.log, err)
	}
	if err := s.DeleteThread(c.UserContext(), caller, id); err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"message": "Thread deleted"})
}

// PostReply handles POST /api/forum/thread/:id/posts.
func (s *ForumService) PostReply(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	p, err := s.CreatePost(c.UserContext(), caller, c.Params("id"), body.Content)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// PutPost handles PUT /api/forum/posts/:id.
func (s *ForumService) PutPost(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, s.log, err)
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	p, err := s.UpdatePost(c.UserContext(), caller, id, body.Content)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(p)
}

// RemovePost handles DELETE /api/forum/posts/:id.
func (s *ForumService) RemovePost(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, s.log, err)
	}
	if err := s.DeletePost(c.UserContext(), caller, id); err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}
