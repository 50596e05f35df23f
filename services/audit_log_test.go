package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crystaltides-web/logger"
	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_RecordDefaults(t *testing.T) {
	db := newTestDB(t)
	a := NewAuditLog(db, logger.Nop())

	a.Record(entryFor(admin, "UPDATE_ROLE", "Changed role"))
	a.Record(AuditEntry{Action: "SERVER_START", Metadata: map[string]interface{}{"version": "1.21"}})
	a.Wait()

	var rows []models.SystemLog
	require.NoError(t, db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)

	byAction := map[string]models.SystemLog{}
	for _, r := range rows {
		byAction[r.Action] = r
	}
	role := byAction["UPDATE_ROLE"]
	assert.Equal(t, "Killu", role.Username)
	require.NotNil(t, role.UserID)
	assert.Equal(t, admin.ID, *role.UserID)
	assert.Equal(t, models.LogSourceWeb, role.Source)

	system := byAction["SERVER_START"]
	assert.Equal(t, "System", system.Username)
	assert.Nil(t, system.UserID)
	assert.JSONEq(t, `{"version":"1.21"}`, string(system.Metadata))
}

func TestAuditLog_NilIsSilent(t *testing.T) {
	var a *AuditLog
	assert.NotPanics(t, func() {
		a.Record(AuditEntry{Action: "X"})
		a.Wait()
	})
}

func TestAuditLog_ListAndPrune(t *testing.T) {
	db := newTestDB(t)
	a := NewAuditLog(db, logger.Nop())
	ctx := context.Background()

	for _, e := range []AuditEntry{
		{Username: "Killu", Action: "BAN_USER", Details: "Banned Griefer"},
		{Username: "Bridge", Action: "PLAYER_JOIN", Details: "steve joined", Source: models.LogSourceGame},
		{Username: "Alice", Action: "CREATE_NEWS", Details: "Evento"},
	} {
		_, err := a.insert(ctx, e)
		require.NoError(t, err)
	}

	page, err := a.List(ctx, 1, 10, "", "griefer")
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = a.List(ctx, 1, 10, models.LogSourceGame, "")
	require.NoError(t, err)
	rows := page.Data.([]models.SystemLog)
	require.Len(t, rows, 1)
	assert.Equal(t, "PLAYER_JOIN", rows[0].Action)

	page, err = a.List(ctx, 2, 2, "all", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Data.([]models.SystemLog), 1)

	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.SystemLog{}).Where("action = ?", "BAN_USER").UpdateColumn("created_at", old).Error)
	removed, err := a.Prune(ctx, time.Now().Add(-15*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestAuditLog_BridgeHandler(t *testing.T) {
	db := newTestDB(t)
	a := NewAuditLog(db, logger.Nop())
	app := fiber.New()
	app.Post("/bridge/logs", a.BridgeLog)

	req := httptest.NewRequest("POST", "/bridge/logs",
		strings.NewReader(`{"action":"PLAYER_BAN","username":"Console","details":"banned x","source":"web"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var row models.SystemLog
	require.NoError(t, json.Unmarshal(body, &row))
	assert.Equal(t, models.LogSourceGame, row.Source, "bridge entries are always tagged as game")
	assert.Equal(t, "Console", row.Username)

	req = httptest.NewRequest("POST", "/bridge/logs", strings.NewReader(`{"details":"no action"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMaintenanceJobs(t *testing.T) {
	polls := newPollService(t)
	news := NewNewsService(polls.DB, nil, nil, nil, logger.Nop())
	audit := NewAuditLog(polls.DB, logger.Nop())
	m := NewMaintenance(polls, news, audit, logger.Nop())
	ctx := context.Background()

	past := fixedNow.Add(-time.Hour).Format(time.RFC3339)
	poll, err := polls.Create(ctx, admin, pollInput{Title: "t", Question: "q", Options: opts("a", "b"), ClosesAt: &past})
	require.NoError(t, err)
	polls.Audit.Wait()

	_, err = audit.insert(ctx, AuditEntry{Action: "OLD"})
	require.NoError(t, err)
	require.NoError(t, polls.DB.Model(&models.SystemLog{}).Where("action = ?", "OLD").
		UpdateColumn("created_at", time.Now().Add(-20*24*time.Hour)).Error)

	m.closeExpiredPolls()
	m.pruneLogs()
	m.pruneStaleNews()

	view, err := polls.Get(ctx, poll.ID)
	require.NoError(t, err)
	assert.False(t, view.IsActive)

	var old int64
	require.NoError(t, polls.DB.Model(&models.SystemLog{}).Where("action = ?", "OLD").Count(&old).Error)
	assert.Zero(t, old)
}
