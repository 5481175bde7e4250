package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pribylovaa/kiosk-admin/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) { return string(s), nil }

type recorder struct {
	mu   sync.Mutex
	list []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
	return nil
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.list))
	for _, n := range r.list {
		out = append(out, n.Title)
	}
	return out
}

func (r *recorder) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list[len(r.list)-1]
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func wsURL(s *httptest.Server) string { return "ws" + strings.TrimPrefix(s.URL, "http") }

var upgrader = websocket.Upgrader{}

func TestRun_ForwardsMessagesWithBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(Message{Type: "kiosk.offline", Title: "Kiosk K-12 offline", Description: "no heartbeat for 5m", Severity: "warning"})
		_ = conn.WriteJSON(Message{Type: "heartbeat"})
		_ = conn.WriteJSON(Message{Type: "order", Title: "Order refunded", Severity: "bogus"})

		// Держим соединение до закрытия клиентом.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(wsURL(srv), staticToken("tok-1"), rec, discard(), []time.Duration{0})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.titles()) == 2 }, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"Kiosk K-12 offline", "Order refunded"}, rec.titles())
	require.Equal(t, notify.SeverityInfo, rec.last().Severity)
	require.Equal(t, StateConnected, c.State())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop")
	}
	require.Equal(t, StateDisconnected, c.State())
}

func TestRun_ReconnectsAfterDrop(t *testing.T) {
	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&conns, 1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if n == 1 {
			// Первое соединение обрывается сразу.
			return
		}

		_ = conn.WriteJSON(Message{Title: "after reconnect", Severity: "info"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(wsURL(srv), staticToken("t"), rec, discard(), []time.Duration{0, 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.titles()) == 3 }, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"Connection lost", "Reconnected", "after reconnect"}, rec.titles())
}

func TestRun_RetriesExhausted(t *testing.T) {
	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&conns, 1) > 1 {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(wsURL(srv), staticToken("t"), rec, discard(), []time.Duration{0, 5 * time.Millisecond, 5 * time.Millisecond})

	err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.EqualValues(t, 4, atomic.LoadInt32(&conns))
	require.Equal(t, []string{"Connection lost", "Realtime disconnected"}, rec.titles())
	require.Equal(t, StateDisconnected, c.State())
}

type failingToken struct{}

func (failingToken) AccessToken(context.Context) (string, error) { return "", errors.New("no session") }

func TestRun_InitialFailure(t *testing.T) {
	rec := &recorder{}
	c := New("ws://127.0.0.1:1/hub", failingToken{}, rec, discard(), nil)

	err := c.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"Realtime unavailable"}, rec.titles())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "connected", StateConnected.String())
	require.Equal(t, "reconnecting", StateReconnecting.String())
	require.Equal(t, "disconnected", State(42).String())
}
