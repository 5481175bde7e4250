package authclient

import "context"

type ctxKey int

const (
	retriedKey ctxKey = iota
	requestIDKey
)

// WithRetried помечает запрос как уже повторённый после refresh.
// Такой запрос больше не попадает в цикл обновления.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey, true)
}

// IsRetried сообщает, был ли запрос уже повторён.
func IsRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey).(bool)
	return v
}

// WithRequestID задаёт X-Request-Id для исходящих запросов (обычно берётся
// из входящего запроса BFF).
func WithRequestID(ctx context.Context, rid string) context.Context {
	if rid == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, rid)
}

// RequestIDFrom возвращает id, заданный через WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
