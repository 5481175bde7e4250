// errors стандартизирует ошибки админки для двух потребителей:
//   - HTTP-слой BFF (ToHTTP / WriteError) — статус и тело {"error":{...}};
//   - toast-уведомления клиента (Describe) — заголовок и описание.
//
// Источник истинности — сама ошибка: если она (или что-то в её цепочке)
// реализует HTTPStatus()/ErrorCode()/PublicMessage(), берутся эти значения,
// иначе — базовая таблица по HTTP-статусу.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type statusCarrier interface{ HTTPStatus() int }

type codeCarrier interface{ ErrorCode() string }

type messageCarrier interface{ PublicMessage() string }

// Kind — ошибка-значение с заранее известным HTTP-статусом и кодом.
// Используется для sentinel-ошибок пакетов: errors.Is сравнивает указатели.
type Kind struct {
	status int
	code   string
	msg    string
}

func NewKind(status int, code, msg string) *Kind {
	return &Kind{status: status, code: code, msg: msg}
}

func (k *Kind) Error() string         { return k.msg }
func (k *Kind) HTTPStatus() int       { return k.status }
func (k *Kind) ErrorCode() string     { return k.code }
func (k *Kind) PublicMessage() string { return k.msg }

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500/internal;
//   - context.Canceled — 499, context.DeadlineExceeded — 504;
//   - в цепочке есть HTTPStatus() — маппим через baseFromHTTP, затем
//     переопределяем code/message, если ошибка их несёт;
//   - сетевые ошибки — 502/upstream_unreachable;
//   - прочее — 500/internal без утечки деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, internal()
	}

	var sc statusCarrier
	if stderrors.As(err, &sc) {
		httpStatus, code, msg := baseFromHTTP(sc.HTTPStatus())

		var cc codeCarrier
		if stderrors.As(err, &cc) && cc.ErrorCode() != "" {
			code = cc.ErrorCode()
		}

		var mc messageCarrier
		if stderrors.As(err, &mc) && mc.PublicMessage() != "" {
			msg = mc.PublicMessage()
		}

		return httpStatus, ErrorResponse{Error: APIError{Code: code, Message: msg}}
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, ErrorResponse{Error: APIError{Code: "canceled", Message: "canceled"}}
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: APIError{Code: "deadline_exceeded", Message: "deadline exceeded"}}
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return http.StatusBadGateway, ErrorResponse{Error: APIError{Code: "upstream_unreachable", Message: "upstream unreachable"}}
	}

	return http.StatusInternalServerError, internal()
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Describe возвращает заголовок и описание toast-уведомления об ошибке запроса.
func Describe(err error) (title, description string) {
	status, resp := ToHTTP(err)

	switch {
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		title = "Server unavailable"
	case status == http.StatusGatewayTimeout:
		title = "Request timed out"
	case status == http.StatusForbidden:
		title = "Access denied"
	case status == http.StatusNotFound:
		title = "Not found"
	case status >= 400 && status < 500:
		title = "Request rejected"
	default:
		title = "Request failed"
	}

	return title, resp.Error.Message
}

func internal() ErrorResponse {
	return ErrorResponse{Error: APIError{Code: "internal", Message: "internal error"}}
}

// baseFromHTTP — базовый маппинг статуса апстрима -> HTTP/FE-код/сообщение.
//   - 400, 422 -> 400 invalid_argument
//   - 401 -> 401 unauthenticated
//   - 403 -> 403 permission_denied
//   - 404 -> 404 not_found
//   - 409 -> 409 already_exists
//   - 412 -> 412 failed_precondition
//   - 429 -> 429 resource_exhausted
//   - 499 -> 499 canceled
//   - 501 -> 501 unimplemented
//   - 502, 503 -> 503 unavailable
//   - 504 -> 504 deadline_exceeded
//   - прочее -> 500/internal
func baseFromHTTP(status int) (int, string, string) {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case http.StatusUnauthorized:
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case http.StatusForbidden:
		return http.StatusForbidden, "permission_denied", "permission denied"
	case http.StatusNotFound:
		return http.StatusNotFound, "not_found", "not found"
	case http.StatusConflict:
		return http.StatusConflict, "already_exists", "already exists"
	case http.StatusPreconditionFailed:
		return http.StatusPreconditionFailed, "failed_precondition", "failed precondition"
	case http.StatusTooManyRequests:
		return http.StatusTooManyRequests, "resource_exhausted", "resource exhausted"
	case StatusClientClosedRequest:
		return StatusClientClosedRequest, "canceled", "canceled"
	case http.StatusNotImplemented:
		return http.StatusNotImplemented, "unimplemented", "unimplemented"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return http.StatusServiceUnavailable, "unavailable", "service unavailable"
	case http.StatusGatewayTimeout:
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
