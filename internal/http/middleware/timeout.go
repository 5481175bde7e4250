package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/pribylovaa/kiosk-admin/internal/errors"
	logctx "github.com/pribylovaa/kiosk-admin/internal/pkg/log"
)

// Timeout ограничивает время обработки запроса BFF вместе со всеми
// вызовами апстрима, которые он делает через authclient. Уже заданный
// deadline не переопределяется. Если обработчик вернулся по истёкшему
// deadline и ничего не записал, клиент получает 504/deadline_exceeded.
// Значение <=0 делает мидлвар no-op.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := ctx.Deadline(); !ok {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			if sw.status != 0 || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}

			logctx.From(ctx).Warn("request_timeout",
				slog.String("path", r.URL.Path),
				slog.Duration("timeout", d),
			)
			apperrors.WriteError(w, r, ctx.Err())
		})
	}
}
