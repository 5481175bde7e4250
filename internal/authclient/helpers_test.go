package authclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "github.com/pribylovaa/kiosk-admin/internal/errors"
	"github.com/pribylovaa/kiosk-admin/internal/events"
	"github.com/pribylovaa/kiosk-admin/internal/models"
	"github.com/pribylovaa/kiosk-admin/internal/notify"
	"github.com/pribylovaa/kiosk-admin/internal/session"
	"github.com/stretchr/testify/require"
)

const (
	testWait = 3 * time.Second
	testTick = 5 * time.Millisecond
)

func timeAfter() <-chan time.Time { return time.After(testWait) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, apperrors.ErrorResponse{Error: apperrors.APIError{Code: code, Message: msg}})
}

// notes — потокобезопасный приёмник уведомлений.
type notes struct {
	mu   sync.Mutex
	list []notify.Notification
}

func (n *notes) Notify(_ context.Context, x notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, x)
	return nil
}

func (n *notes) all() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.list...)
}

func (n *notes) count(title string) int {
	c := 0
	for _, x := range n.all() {
		if x.Title == title {
			c++
		}
	}
	return c
}

// eventLog — приёмник событий сессии.
type eventLog struct {
	mu    sync.Mutex
	kinds []events.Kind
}

func (e *eventLog) Publish(_ context.Context, ev events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kinds = append(e.kinds, ev.Kind)
	return nil
}

func (e *eventLog) list() []events.Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]events.Kind(nil), e.kinds...)
}

type harness struct {
	srv    *httptest.Server
	mux    *http.ServeMux
	store  *session.MemoryStore
	notes  *notes
	events *eventLog
	client *Client
}

// newHarness поднимает httptest-сервер и клиент к нему. mutate правит опции до New.
func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	h := &harness{
		mux:    http.NewServeMux(),
		store:  session.NewMemoryStore(),
		notes:  &notes{},
		events: &eventLog{},
	}
	h.srv = httptest.NewServer(h.mux)
	t.Cleanup(h.srv.Close)

	opts := Options{
		BaseURL:      h.srv.URL,
		Store:        h.store,
		Notifier:     h.notes,
		Events:       h.events,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:      NewMetrics(nil),
		Transport:    http.DefaultTransport,
		Timeout:      testWait,
		ExpiredDelay: 10 * time.Millisecond,
		Profile:      "test",
	}
	if mutate != nil {
		mutate(&opts)
	}

	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	h.client = c

	return h
}

func (h *harness) login(t *testing.T, access, refresh string, exp time.Time) {
	t.Helper()
	require.NoError(t, h.store.Set(context.Background(), models.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: exp,
	}))
}

func (h *harness) pair(t *testing.T) (models.TokenPair, bool) {
	t.Helper()
	p, ok, err := h.store.Get(context.Background())
	require.NoError(t, err)
	return p, ok
}

func authOK(access, refresh string, ttl time.Duration) models.AuthResponse {
	return models.AuthResponse{
		UserID:          "u-1",
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: time.Now().Add(ttl).Unix(),
	}
}
