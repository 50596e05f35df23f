package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crystaltides-web/logger"
	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPollService(t *testing.T) *PollService {
	t.Helper()
	db := newTestDB(t)
	s := NewPollService(db, nil, NewAuditLog(db, logger.Nop()), logger.Nop())
	s.Now = func() time.Time { return fixedNow }
	return s
}

func opts(labels ...string) []optionInput {
	out := make([]optionInput, len(labels))
	for i, l := range labels {
		out[i] = optionInput{Label: l}
	}
	return out
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, 0, percentOf(0, 0))
	assert.Equal(t, 100, percentOf(4, 4))
	assert.Equal(t, 33, percentOf(1, 3))
	assert.Equal(t, 67, percentOf(2, 3))
}

func TestClosesIn(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		v := fixedNow.Add(d)
		return &v
	}
	cases := []struct {
		name     string
		closesAt *time.Time
		want     string
	}{
		{"no deadline", nil, "Indefinido"},
		{"past", at(-time.Minute), "Finalizada"},
		{"exactly now", at(0), "Finalizada"},
		{"days left", at(3*24*time.Hour + 2*time.Hour), "3 días"},
		{"hours left", at(5*time.Hour + 30*time.Minute), "5 horas"},
		{"under an hour", at(20 * time.Minute), "0 horas"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, closesIn(tc.closesAt, fixedNow))
		})
	}
}

func TestOptionInput_AcceptsStringsAndObjects(t *testing.T) {
	var in pollInput
	raw := `{"title":"t","question":"q","options":["Sí",{"label":"No","label_en":"Nope"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	require.Len(t, in.Options, 2)
	assert.Equal(t, optionInput{Label: "Sí"}, in.Options[0])
	assert.Equal(t, optionInput{Label: "No", LabelEN: "Nope"}, in.Options[1])
}

func TestPollCreate_Validation(t *testing.T) {
	s := newPollService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, admin, pollInput{Title: "t", Question: "q", Options: opts("only")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Create(ctx, admin, pollInput{Title: " ", Question: "q", Options: opts("a", "b")})
	assert.ErrorIs(t, err, ErrValidation)

	bad := "next tuesday"
	_, err = s.Create(ctx, admin, pollInput{Title: "t", Question: "q", Options: opts("a", "b"), ClosesAt: &bad})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPollCreate_GlobalReplacesGlobalOnly(t *testing.T) {
	s := newPollService(t)
	ctx := context.Background()

	first, err := s.Create(ctx, admin, pollInput{Title: "Primera", Question: "¿?", Options: opts("a", "b")})
	require.NoError(t, err)
	thread := uint(7)
	threadPoll, err := s.Create(ctx, admin, pollInput{Title: "Hilo", Question: "¿?", Options: opts("a", "b"), ThreadID: &thread})
	require.NoError(t, err)
	second, err := s.Create(ctx, admin, pollInput{Title: "Segunda", Question: "¿?", Options: opts("x", "y")})
	require.NoError(t, err)

	var reloaded models.Poll
	require.NoError(t, s.DB.First(&reloaded, first.ID).Error)
	assert.False(t, reloaded.IsActive)
	require.NoError(t, s.DB.First(&reloaded, threadPoll.ID).Error)
	assert.True(t, reloaded.IsActive)

	active, err := s.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, "Segunda", active.TitleEN, "english falls back to the source text without a translator")
	assert.Equal(t, "Indefinido", active.ClosesIn)

	s.Audit.Wait()
	var logged int64
	require.NoError(t, s.DB.Model(&models.SystemLog{}).Where("action = ?", "CREATE_POLL").Count(&logged).Error)
	assert.Equal(t, int64(3), logged)
}

func TestPollActive_NoneReturnsNil(t *testing.T) {
	s := newPollService(t)
	active, err := s.Active(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestPollVote(t *testing.T) {
	s := newPollService(t)
	ctx := context.Background()

	poll, err := s.Create(ctx, admin, pollInput{Title: "t", Question: "q", Options: opts("A", "B")})
	require.NoError(t, err)
	a, b := poll.Options[0], poll.Options[1]

	votes, err := s.Vote(ctx, poll.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, votes)

	view, err := s.Get(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalVotes)
	assert.Equal(t, 100, view.Options[0].Percent)
	assert.Equal(t, 0, view.Options[1].Percent)

	votes, err = s.Vote(ctx, poll.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, votes)
	view, err = s.Get(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, view.Options[0].Percent)
	assert.Equal(t, 50, view.Options[1].Percent)
}

func TestPollVote_Rejections(t *testing.T) {
	s := newPollService(t)
	ctx := context.Background()

	poll, err := s.Create(ctx, admin, pollInput{Title: "t", Question: "q", Options: opts("A", "B")})
	require.NoError(t, err)
	thread := uint(3)
	other, err := s.Create(ctx, admin, pollInput{Title: "o", Question: "q", Options: opts("C", "D"), ThreadID: &thread})
	require.NoError(t, err)

	_, err = s.Vote(ctx, poll.ID, other.Options[0].ID)
	assert.ErrorIs(t, err, ErrNotFound, "option of another poll")

	_, err = s.Vote(ctx, 999, poll.Options[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Close(ctx, admin, poll.ID))
	_, err = s.Vote(ctx, poll.ID, poll.Options[0].ID)
	assert.ErrorIs(t, err, ErrValidation)

	past := fixedNow.Add(-time.Hour).Format(time.RFC3339)
	expired, err := s.Create(ctx, admin, pollInput{Title: "e", Question: "q", Options: opts("E", "F"), ClosesAt: &past})
	require.NoError(t, err)
	_, err = s.Vote(ctx, expired.ID, expired.Options[0].ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPollUpdate_RelabelsAndTrimsOptions(t *testing.T) {
	s := newPollService(t)
	ctx := context.Background()

	poll, err := s.Create(ctx, admin, pollInput{Title: "t", Question: "q", Options: opts("A", "B", "C", "D")})
	require.NoError(t, err)
	ids := []uint{poll.Options[0].ID, poll.Options[1].ID}

	updated, err := s.Update(ctx, admin, poll.ID, pollInput{Options: opts("Uno", "Dos")})
	require.NoError(t, err)
	require.Len(t, updated.Options, 2)
	assert.Equal(t, ids[0], updated.Options[0].ID)
	assert.Equal(t, "Uno", updated.Options[0].Label)
	assert.Equal(t, ids[1], updated.Options[1].ID)
	assert.Equal(t, "Dos", updated.Options[1].Label)
	assert.Equal(t, "t", updated.Title, "blank title leaves the stored one")

	var remaining int64
	require.NoError(t, s.DB.Model(&models.PollOption{}).Where("poll_id = ?", poll.ID).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)

	updated, err = s.Update(ctx, admin, poll.ID, pollInput{Title: "Nuevo", Options: opts("Uno", "Dos", "Tres")})
	require.NoError(t, err)
	require.Len(t, updated.Options, 3)
	assert.Equal(t, "Tres", updated.Options[2].Label)
	assert.Equal(t, "Nuevo", updated.Title)

	_, err = s.Update(ctx, admin, 999, pollInput{Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPollUpdate_SingleOptionDropsTrailingRows(t *testing.T) {
	s := newPollService(t)
	ctx := context.Background()

	poll, err := s.Create(ctx, admin, pollInput{Title: "t", Question: "q", Options: opts("A", "B", "C")})
	require.NoError(t, err)
	keep, dropB, dropC := poll.Options[0].ID, poll.Options[1].ID, poll.Options[2].ID

	updated, err := s.Update(ctx, admin, poll.ID, pollInput{Options: opts("A")})
	require.NoError(t, err)
	require.Len(t, updated.Options, 1)
	assert.Equal(t, keep, updated.Options[0].ID)
	assert.Equal(t, "A", updated.Options[0].Label)

	var gone int64
	require.NoError(t, s.DB.Model(&models.PollOption{}).Where("id IN ?", []uint{dropB, dropC}).Count(&gone).Error)
	assert.Zero(t, gone)
}

func TestPollUpdate_TranslatesOutsideTransaction(t *testing.T) {
	s := newPollService(t)
	ctx := context.Background()

	poll, err := s.Create(ctx, admin, pollInput{Title: "t", Question: "q", Options: opts("A", "B")})
	require.NoError(t, err)

	// The test DB has a single connection, so a query from inside the
	// translation call only succeeds while no transaction holds it.
	var calls, blocked atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		qctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		var n int64
		if err := s.DB.WithContext(qctx).Model(&models.Poll{}).Count(&n).Error; err != nil {
			blocked.Add(1)
		}
		var req translateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "[en] " + req.Q})
	}))
	defer srv.Close()
	s.Translator = NewTranslator(srv.URL, "", logger.Nop())

	updated, err := s.Update(ctx, admin, poll.ID, pollInput{Title: "Nuevo", Options: opts("Uno", "Dos", "Tres")})
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load(), "title plus three labels")
	assert.Zero(t, blocked.Load())
	assert.Equal(t, "[en] Nuevo", updated.TitleEN)
	require.Len(t, updated.Options, 3)
	assert.Equal(t, "[en] Tres", updated.Options[2].LabelEN)
}

func TestPollCloseExpired(t *testing.T) {
	s := newPollService(t)
	ctx := context.Background()

	past := fixedNow.Add(-time.Minute).Format(time.RFC3339)
	future := fixedNow.Add(time.Hour).Format(time.RFC3339)
	thread := uint(1)
	expired, err := s.Create(ctx, admin, pollInput{Title: "a", Question: "q", Options: opts("x", "y"), ClosesAt: &past, ThreadID: &thread})
	require.NoError(t, err)
	open, err := s.Create(ctx, admin, pollInput{Title: "b", Question: "q", Options: opts("x", "y"), ClosesAt: &future})
	require.NoError(t, err)

	n, err := s.CloseExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	view, err := s.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.False(t, view.IsActive)
	view, err = s.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.True(t, view.IsActive)
}

func TestPollDelete(t *testing.T) {
	s := newPollService(t)
	ctx := context.Background()

	poll, err := s.Create(ctx, admin, pollInput{Title: "t", Question: "q", Options: opts("A", "B")})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, admin, poll.ID))

	var options int64
	require.NoError(t, s.DB.Model(&models.PollOption{}).Count(&options).Error)
	assert.Zero(t, options)
	assert.ErrorIs(t, s.Delete(ctx, admin, poll.ID), ErrNotFound)
}

func TestPollList_Paging(t *testing.T) {
	s := newPollService(t)
	ctx := context.Background()
	thread := uint(2)
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, admin, pollInput{Title: "t", Question: "q", Options: opts("A", "B"), ThreadID: &thread})
		require.NoError(t, err)
	}

	page, err := s.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	rows, ok := page.Data.([]PollSummary)
	require.True(t, ok)
	assert.Len(t, rows, 1)
}

func TestVotePollHandler_Envelope(t *testing.T) {
	s := newPollService(t)
	app := fiber.New()
	app.Post("/polls/vote", s.VotePoll)

	req := httptest.NewRequest("POST", "/polls/vote", strings.NewReader(`{"pollId":0}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "VALIDATION_ERROR", out["code"])
}

func TestPollErrorsMapToStatus(t *testing.T) {
	status, code := statusFor(invalid("poll is closed"))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", code)
	status, _ = statusFor(errors.New("boom"))
	assert.Equal(t, fiber.StatusInternalServerError, status)
}
