// workers/status_worker.go
package workers

import (
	"context"
	"time"

	"crystaltides-web/services"

	"github.com/rs/zerolog"
)

// StatusRefresher probes the game server and caches the result.
type StatusRefresher interface {
	RefreshStatus(ctx context.Context) *services.LiveStatus
}

// StatusWorker keeps the cached live status warm so page loads never wait
// on a server list ping.
type StatusWorker struct {
	refresher StatusRefresher
	interval  time.Duration
	log       zerolog.Logger
	done      chan struct{}
}

func NewStatusWorker(refresher StatusRefresher, interval time.Duration, log zerolog.Logger) *StatusWorker {
	return &StatusWorker{
		refresher: refresher,
		interval:  interval,
		log:       log.With().Str("component", "status_worker").Logger(),
		done:      make(chan struct{}),
	}
}

func (w *StatusWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("🔁 starting live status worker")
	go w.run(ctx)
}

// Done is closed once the worker has stopped.
func (w *StatusWorker) Done() <-chan struct{} {
	return w.done
}

func (w *StatusWorker) run(ctx context.Context) {
	defer close(w.done)

	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refresh(ctx)
		case <-ctx.Done():
			w.log.Info().Msg("⏹️ live status worker stopped")
			return
		}
	}
}

func (w *StatusWorker) refresh(ctx context.Context) {
	st := w.refresher.RefreshStatus(ctx)
	w.log.Debug().Bool("online", st.Online).Int("players", st.Players.Online).Msg("live status refreshed")
}
