package models

import "time"

// TokenPair — текущая пара токенов сессии.
//
// Описание:
//   - AccessToken — короткоживущий JWT, уходит в Authorization: Bearer;
//   - RefreshToken — долгоживущий секрет для выпуска новой пары;
//   - AccessExpiresAt — момент истечения access-токена (UTC); нулевое
//     значение означает «неизвестно», проактивный refresh тогда не делается.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// IsZero — пары нет (не логинились или сессия очищена).
func (p TokenPair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// ExpiresWithin сообщает, истечёт ли access-токен в течение d начиная с now.
func (p TokenPair) ExpiresWithin(now time.Time, d time.Duration) bool {
	if p.AccessExpiresAt.IsZero() {
		return false
	}

	return !now.Add(d).Before(p.AccessExpiresAt)
}
