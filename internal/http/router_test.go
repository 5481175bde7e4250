package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/kiosk-admin/internal/api"
	"github.com/pribylovaa/kiosk-admin/internal/authclient"
)

type call struct {
	method string
	path   string
	query  url.Values
	rid    string
}

// fakeDoer подменяет апстрим: пишет вызовы и отвечает заданным JSON.
type fakeDoer struct {
	mu    sync.Mutex
	calls []call
	reply string
	err   error
}

func (f *fakeDoer) DoJSON(ctx context.Context, method, path string, query url.Values, _, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: method, path: path, query: query, rid: authclient.RequestIDFrom(ctx)})
	f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if out != nil && f.reply != "" {
		return json.Unmarshal([]byte(f.reply), out)
	}
	return nil
}

type fakeSession struct {
	loginErr  error
	logoutErr error
	logins    int
	status    authclient.Status
}

func (s *fakeSession) Login(_ context.Context, email, password string) (string, error) {
	s.logins++
	if s.loginErr != nil {
		return "", s.loginErr
	}
	return "user-1", nil
}

func (s *fakeSession) Logout(context.Context) error { return s.logoutErr }

func (s *fakeSession) Status(context.Context) (authclient.Status, error) { return s.status, nil }

type envelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func newRouter(t *testing.T, s *fakeSession, d *fakeDoer) http.Handler {
	t.Helper()
	return NewRouter(s, api.New(d), Options{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout: time.Second,
	})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("X-Request-Id", "rid-test")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeErr(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestLogin_OK(t *testing.T) {
	s := &fakeSession{}
	h := newRouter(t, s, &fakeDoer{})

	rr := do(t, h, http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"secret"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"user_id":"user-1","authenticated":true}`, rr.Body.String())
}

func TestLogin_ValidationFailsBeforeUpstream(t *testing.T) {
	s := &fakeSession{}
	h := newRouter(t, s, &fakeDoer{})

	rr := do(t, h, http.MethodPost, "/auth/login", `{"email":"not-an-email","password":""}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeErr(t, rr)
	require.Equal(t, "validation_failed", env.Error.Code)
	require.Contains(t, env.Error.Message, "email")
	require.Contains(t, env.Error.Message, "password")
	require.Equal(t, 0, s.logins)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := &fakeSession{loginErr: fmt.Errorf("authclient.Client.Login: %w", authclient.ErrInvalidCredentials)}
	h := newRouter(t, s, &fakeDoer{})

	rr := do(t, h, http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"wrong"}`)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	env := decodeErr(t, rr)
	require.Equal(t, "invalid_credentials", env.Error.Code)
	require.Equal(t, "rid-test", env.Error.RequestID)
}

func TestLogin_UnknownFieldRejected(t *testing.T) {
	h := newRouter(t, &fakeSession{}, &fakeDoer{})

	rr := do(t, h, http.MethodPost, "/auth/login", `{"email":"a@b.c","password":"x","remember":true}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_argument", decodeErr(t, rr).Error.Code)
}

func TestLogoutAndSession(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &fakeSession{status: authclient.Status{Authenticated: true, AccessExpiresAt: exp}}
	h := newRouter(t, s, &fakeDoer{})

	rr := do(t, h, http.MethodGet, "/session", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"authenticated":true,"access_expires_at":"2030-01-01T00:00:00Z","refreshing":false}`, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestResource_ListPassesParamsAndRequestID(t *testing.T) {
	d := &fakeDoer{reply: `{"items":[],"total":0,"page":2,"page_size":10}`}
	h := newRouter(t, &fakeSession{}, d)

	rr := do(t, h, http.MethodGet, "/kiosks?page=2&page_size=10&status=offline", "")

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"items":[],"total":0,"page":2,"page_size":10}`, rr.Body.String())

	require.Len(t, d.calls, 1)
	c := d.calls[0]
	require.Equal(t, http.MethodGet, c.method)
	require.Equal(t, "/kiosks", c.path)
	require.Equal(t, "2", c.query.Get("page"))
	require.Equal(t, "offline", c.query.Get("status"))
	require.Equal(t, "rid-test", c.rid)
}

func TestResource_BadID(t *testing.T) {
	d := &fakeDoer{}
	h := newRouter(t, &fakeSession{}, d)

	rr := do(t, h, http.MethodGet, "/kiosks/not-a-uuid", "")

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "malformed id", decodeErr(t, rr).Error.Message)
	require.Empty(t, d.calls)
}

func TestResource_CreateValidatesBeforeUpstream(t *testing.T) {
	d := &fakeDoer{}
	h := newRouter(t, &fakeSession{}, d)

	rr := do(t, h, http.MethodPost, "/kiosks", `{"code":"K-12!","name":""}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeErr(t, rr)
	require.Equal(t, "validation_failed", env.Error.Code)
	require.Contains(t, env.Error.Message, "store_id")
	require.Empty(t, d.calls)
}

func TestResource_CreateAndDelete(t *testing.T) {
	id := uuid.New()
	d := &fakeDoer{reply: fmt.Sprintf(`{"id":%q,"code":"K12","name":"Lobby"}`, id)}
	h := newRouter(t, &fakeSession{}, d)

	body := fmt.Sprintf(`{"store_id":%q,"code":"K12","name":"Lobby"}`, uuid.New())
	rr := do(t, h, http.MethodPost, "/kiosks", body)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), id.String())

	rr = do(t, h, http.MethodDelete, "/kiosks/"+id.String(), "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	require.Len(t, d.calls, 2)
	require.Equal(t, http.MethodPost, d.calls[0].method)
	require.Equal(t, http.MethodDelete, d.calls[1].method)
	require.Equal(t, "/kiosks/"+id.String(), d.calls[1].path)
}

func TestOrders_StatusUpdateAndReadOnly(t *testing.T) {
	id := uuid.New()
	d := &fakeDoer{reply: fmt.Sprintf(`{"id":%q,"status":"refunded"}`, id)}
	h := newRouter(t, &fakeSession{}, d)

	rr := do(t, h, http.MethodPatch, "/orders/"+id.String()+"/status", `{"status":"refunded","reason":"cold coffee"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "/orders/"+id.String()+"/status", d.calls[0].path)

	rr = do(t, h, http.MethodPost, "/orders", `{}`)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, h, http.MethodDelete, "/sync-events/"+id.String(), "")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestResource_UpstreamErrorMapped(t *testing.T) {
	d := &fakeDoer{err: &authclient.ResponseError{Status: http.StatusNotFound, Code: "kiosk_not_found", Message: "kiosk not found"}}
	h := newRouter(t, &fakeSession{}, d)

	rr := do(t, h, http.MethodGet, "/kiosks/"+uuid.NewString(), "")

	require.Equal(t, http.StatusNotFound, rr.Code)
	env := decodeErr(t, rr)
	require.Equal(t, "kiosk_not_found", env.Error.Code)
	require.Equal(t, "kiosk not found", env.Error.Message)
}

func TestBasePath(t *testing.T) {
	d := &fakeDoer{reply: `{"items":[]}`}
	h := NewRouter(&fakeSession{}, api.New(d), Options{BasePath: "/api"})

	rr := do(t, h, http.MethodGet, "/api/menus", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/menus", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
