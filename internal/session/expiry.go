package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessExpiry читает claim exp из access-токена без проверки подписи:
// ключа у клиента нет, а время нужно лишь для проактивного refresh.
// Для не-JWT токенов и токенов без exp возвращает false.
func AccessExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time.UTC(), true
}
