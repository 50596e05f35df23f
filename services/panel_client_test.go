package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panelRecorder struct {
	mu       sync.Mutex
	auth     []string
	commands []string
}

func newPanelServer(t *testing.T, rec *panelRecorder) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/client/servers/abc123/resources", func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.auth = append(rec.auth, r.Header.Get("Authorization"))
		rec.mu.Unlock()
		_, _ = io.WriteString(w, `{"object":"stats","attributes":{"current_state":"running","resources":{"memory_bytes":1048576,"cpu_absolute":12.5,"disk_bytes":2097152,"network_rx_bytes":10,"network_tx_bytes":20,"uptime":3600}}}`)
	})
	mux.HandleFunc("/api/client/servers/abc123", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"object":"server","attributes":{"name":"CrystalTides","limits":{"memory":4096,"cpu":200,"disk":10240}}}`)
	})
	mux.HandleFunc("/api/client/servers/abc123/command", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Command string `json:"command"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		rec.mu.Lock()
		rec.commands = append(rec.commands, body.Command)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPanelClient(t *testing.T) {
	rec := &panelRecorder{}
	srv := newPanelServer(t, rec)
	client := NewPanelClient(srv.URL+"/", "ptlc_secret", "abc123")
	ctx := context.Background()

	res, err := client.Resources(ctx)
	require.NoError(t, err)
	assert.Equal(t, "running", res.CurrentState)
	assert.Equal(t, int64(1048576), res.Resources.MemoryBytes)
	assert.Equal(t, 12.5, res.Resources.CPUAbsolute)
	assert.Equal(t, int64(3600), res.Resources.Uptime)
	assert.Equal(t, []string{"Bearer ptlc_secret"}, rec.auth)

	details, err := client.Details(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CrystalTides", details.Name)
	assert.Equal(t, int64(4096), details.Limits.Memory)

	require.NoError(t, client.SendCommand(ctx, "ban Steve griefing"))
	assert.Equal(t, []string{"ban Steve griefing"}, rec.commands)
}

func TestPanelClient_UpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	_, err := NewPanelClient(srv.URL, "bad", "abc123").Resources(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)

	srv.Close()
	err = NewPanelClient(srv.URL, "bad", "abc123").SendCommand(context.Background(), "list")
	assert.ErrorIs(t, err, ErrUpstream)
}
