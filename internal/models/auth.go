// Входные/выходные модели auth-эндпойнтов апстрима.
package models

import "time"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	UserID          string `json:"user_id,omitempty"`
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token,omitempty"`
	AccessExpiresAt int64  `json:"access_expires_at,omitempty"` // Unix UTC
}

// TokenPair переводит ответ в пару токенов. Если сервер не прислал новый
// refresh-токен, сохраняется предыдущий (prevRefresh).
func (a AuthResponse) TokenPair(prevRefresh string) TokenPair {
	p := TokenPair{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
	}

	if p.RefreshToken == "" {
		p.RefreshToken = prevRefresh
	}

	if a.AccessExpiresAt > 0 {
		p.AccessExpiresAt = time.Unix(a.AccessExpiresAt, 0).UTC()
	}

	return p
}
