package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/pribylovaa/kiosk-admin/internal/errors"
)

var (
	// ErrSessionInvalid — апстрим отверг токен, а обновить сессию нечем.
	ErrSessionInvalid = apperrors.NewKind(http.StatusUnauthorized, "session_invalid", "session is no longer valid")
	// ErrInvalidCredentials — логин отклонён (401 на login-эндпоинте). Никогда не ретраится.
	ErrInvalidCredentials = apperrors.NewKind(http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	// ErrRefreshFailed — обновление токена не удалось.
	ErrRefreshFailed = apperrors.NewKind(http.StatusUnauthorized, "session_expired", "session expired, please log in again")
	// ErrNoSession — в хранилище нет пары токенов.
	ErrNoSession = apperrors.NewKind(http.StatusUnauthorized, "no_session", "not logged in")
)

// errEmptyAccessToken — auth-эндпоинт ответил 2xx без access-токена.
var errEmptyAccessToken = errors.New("empty access token in response")

// ResponseError — не-2xx ответ апстрима с разобранным конвертом ошибки
// {"error":{"code","message","request_id"}}.
type ResponseError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *ResponseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "upstream status %d", e.Status)
	if e.Code != "" {
		fmt.Fprintf(&sb, " code=%s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&sb, ": %s", e.Message)
	}
	return sb.String()
}

func (e *ResponseError) HTTPStatus() int       { return e.Status }
func (e *ResponseError) ErrorCode() string     { return e.Code }
func (e *ResponseError) PublicMessage() string { return e.Message }

// maxErrorBody ограничивает чтение тела ошибки.
const maxErrorBody = 64 << 10

// readResponseError читает и закрывает тело не-2xx ответа.
// Тело без конверта не считается ошибкой разбора: остаётся только статус.
func readResponseError(resp *http.Response) *ResponseError {
	defer resp.Body.Close()

	re := &ResponseError{
		Status:    resp.StatusCode,
		RequestID: resp.Header.Get("X-Request-Id"),
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return re
	}

	var env apperrors.ErrorResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return re
	}

	re.Code = env.Error.Code
	re.Message = env.Error.Message
	if env.Error.RequestID != "" {
		re.RequestID = env.Error.RequestID
	}

	return re
}

// RetryPolicy решает, означает ли 401 «сессия невалидна, обнови и повтори».
type RetryPolicy struct {
	// Codes — коды из конверта ошибки, при которых выполняется refresh.
	Codes []string
	// MessageContains — устаревший режим для серверов без кодов:
	// подстроки в сообщении ошибки. По умолчанию пуст.
	MessageContains []string
}

// DefaultRetryCodes — коды, при которых 401 считается истёкшей сессией.
var DefaultRetryCodes = []string{"token_invalid", "token_expired", "session_invalid"}

func (p RetryPolicy) retryable(e *ResponseError) bool {
	if e == nil || e.Status != http.StatusUnauthorized {
		return false
	}

	for _, c := range p.Codes {
		if e.Code != "" && strings.EqualFold(e.Code, c) {
			return true
		}
	}

	for _, s := range p.MessageContains {
		if s != "" && strings.Contains(e.Message, s) {
			return true
		}
	}

	return false
}
