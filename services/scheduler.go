// services/scheduler.go
package services

import (
	"context"
	"time"

	"crystaltides-web/constants"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Maintenance runs the periodic housekeeping jobs.
type Maintenance struct {
	Polls *PollService
	News  *NewsService
	Audit *AuditLog
	log   zerolog.Logger
}

func NewMaintenance(polls *PollService, news *NewsService, audit *AuditLog, log zerolog.Logger) *Maintenance {
	return &Maintenance{Polls: polls, News: news, Audit: audit, log: log.With().Str("component", "scheduler").Logger()}
}

func (m *Maintenance) closeExpiredPolls() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := m.Polls.CloseExpired(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("[Scheduler] failed to close expired polls")
		return
	}
	if n > 0 {
		m.log.Info().Int64("closed", n).Msg("✅ closed expired polls")
	}
}

func (m *Maintenance) pruneStaleNews() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := m.News.PruneStale(ctx, time.Now().Add(-constants.StaleNewsAge), constants.StaleNewsMaxViews)
	if err != nil {
		m.log.Error().Err(err).Msg("[Scheduler] failed to prune stale news")
		return
	}
	m.log.Info().Int64("deleted", n).Msg("🧹 stale news pruned")
}

func (m *Maintenance) pruneLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := m.Audit.Prune(ctx, time.Now().Add(-constants.LogRetention))
	if err != nil {
		m.log.Error().Err(err).Msg("[Scheduler] failed to prune system logs")
		return
	}
	m.log.Info().Int64("deleted", n).Msg("🧹 old system logs pruned")
}

// Start registers the jobs and starts the scheduler. Call Shutdown on the
// returned scheduler when the server stops.
func (m *Maintenance) Start() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Every minute: close polls past their deadline
	if _, err := sched.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(m.closeExpiredPolls),
	); err != nil {
		return nil, err
	}

	// Sundays at midnight: drop old news nobody read
	if _, err := sched.NewJob(
		gocron.CronJob("0 0 * * 0", false),
		gocron.NewTask(m.pruneStaleNews),
	); err != nil {
		return nil, err
	}

	// Daily at 01:00: log retention
	if _, err := sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(1, 0, 0))),
		gocron.NewTask(m.pruneLogs),
	); err != nil {
		return nil, err
	}

	sched.Start()
	m.log.Info().Msg("⏱️ maintenance scheduler started")
	return sched, nil
}
