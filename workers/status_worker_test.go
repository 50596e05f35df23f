package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"crystaltides-web/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) RefreshStatus(ctx context.Context) *services.LiveStatus {
	r.calls.Add(1)
	return &services.LiveStatus{Online: true}
}

func TestStatusWorker_RefreshesUntilCancelled(t *testing.T) {
	refresher := &countingRefresher{}
	w := NewStatusWorker(refresher, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	require.Eventually(t, func() bool { return refresher.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	stopped := refresher.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, refresher.calls.Load())
}

func TestStatusWorker_RefreshesImmediately(t *testing.T) {
	refresher := &countingRefresher{}
	w := NewStatusWorker(refresher, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.Eventually(t, func() bool { return refresher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}
