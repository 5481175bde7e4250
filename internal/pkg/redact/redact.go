// redact — утилиты безопасного вывода чувствительных данных в логи
// (токены, e-mail). Сохраняет полезный для отладки контекст, не раскрывая секрет.
package redact

import "strings"

// Email маскирует e-mail: первые два символа локальной части + "***", домен как есть.
// Строка без ровно одного '@' редактируется полностью.
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	i := strings.IndexByte(s, '@')
	local, domain := s[:i], s[i+1:]

	lr := []rune(local)
	if len(lr) > 2 {
		local = string(lr[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Token возвращает литерал-заглушку для токена в логах.
func Token() string { return "[REDACTED_TOKEN]" }

// TokenTail оставляет последние 4 символа токена — этого хватает, чтобы
// отличить старый access-токен от нового в логах refresh-волны.
// Короткие и пустые токены редактируются полностью.
func TokenTail(tok string) string {
	const keep = 4
	if len(tok) <= keep*2 {
		return Token()
	}

	return "***" + tok[len(tok)-keep:]
}
