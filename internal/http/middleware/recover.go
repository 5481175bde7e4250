package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	apperrors "github.com/pribylovaa/kiosk-admin/internal/errors"
	logctx "github.com/pribylovaa/kiosk-admin/internal/pkg/log"
)

// errPanic — причина 500 после перехваченной паники; наружу уходит
// только internal-конверт.
var errPanic = errors.New("handler panic")

// Recover перехватывает panic обработчика BFF. Если ответ ещё не начат,
// клиент получает 500/internal с request_id; начатый ответ не трогаем.
// http.ErrAbortHandler пробрасывается дальше.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logctx.From(r.Context()).
					LogAttrs(r.Context(), slog.LevelError, "panic",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("request_id", r.Header.Get("X-Request-Id")),
						slog.Bool("headers_sent", sw.status != 0),
						slog.Any("reason", rec),
						slog.String("stack", string(debug.Stack())),
					)

				if sw.status != 0 {
					return
				}
				apperrors.WriteError(sw, r, fmt.Errorf("%w: %v", errPanic, rec))
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
