package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pribylovaa/kiosk-admin/internal/models"
	"github.com/pribylovaa/kiosk-admin/internal/session"
)

//go:generate mockgen -destination=../../mocks/mock_refresher.go -package=mocks github.com/pribylovaa/kiosk-admin/internal/authclient Refresher

// Refresher обменивает refresh-токен на новую пару.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// HTTPRefresher вызывает POST {base}{path} с {"refresh_token": "..."}.
// Ходит через голый транспорт (без цикла refresh-and-retry).
type HTTPRefresher struct {
	url string
	rt  http.RoundTripper
}

func NewHTTPRefresher(baseURL, path string, rt http.RoundTripper) *HTTPRefresher {
	if rt == nil {
		rt = http.DefaultTransport
	}

	return &HTTPRefresher{url: joinURL(baseURL, path), rt: rt}
}

func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "authclient.HTTPRefresher.Refresh"

	var out models.AuthResponse
	if err := postJSON(ctx, r.rt, r.url, "", models.RefreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair := pairFromAuth(out, refreshToken)
	if pair.AccessToken == "" {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, errEmptyAccessToken)
	}

	return pair, nil
}

// pairFromAuth собирает пару из ответа auth-эндпоинта. Если сервер не прислал
// access_expires_at, срок читается из claim exp токена.
func pairFromAuth(out models.AuthResponse, prevRefresh string) models.TokenPair {
	pair := out.TokenPair(prevRefresh)
	if pair.AccessExpiresAt.IsZero() {
		if exp, ok := session.AccessExpiry(pair.AccessToken); ok {
			pair.AccessExpiresAt = exp
		}
	}

	return pair
}

// postJSON — JSON POST через переданный транспорт. Не-2xx -> *ResponseError.
func postJSON(ctx context.Context, rt http.RoundTripper, url, bearer string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := rt.RoundTrip(req)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readResponseError(resp)
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	return nil
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
