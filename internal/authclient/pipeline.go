package authclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/kiosk-admin/internal/pkg/log"
)

// RoundTripperFunc адаптирует функцию к http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Middleware оборачивает исходящий транспорт.
type Middleware func(next http.RoundTripper) http.RoundTripper

// Chain собирает транспорт: первый middleware — внешний.
// Chain(base, a, b, c) выполняется как a -> b -> c -> base.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			rt = mws[i](rt)
		}
	}

	return rt
}

// WithMetadata добавляет в исходящий запрос заголовки:
//   - X-Request-Id (если есть в контексте и не задан явно),
//   - User-Agent (если передан параметром).
//
// Authorization ставит сам клиент: токен зависит от состояния сессии.
func WithMetadata(userAgent string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			rid := RequestIDFrom(req.Context())
			if rid == "" && userAgent == "" {
				return next.RoundTrip(req)
			}

			req = req.Clone(req.Context())
			if rid != "" && req.Header.Get("X-Request-Id") == "" {
				req.Header.Set("X-Request-Id", rid)
			}
			if userAgent != "" {
				req.Header.Set("User-Agent", userAgent)
			}

			return next.RoundTrip(req)
		})
	}
}

// WithTimeout навешивает таймаут d на исходящий запрос, если у контекста ещё
// нет дедлайна. Существующий дедлайн не переопределяется.
//
// Контракт:
//  1. d <= 0 — запрос уходит как есть;
//  2. у ctx уже есть deadline — оставляет как есть;
//  3. иначе — context.WithTimeout(ctx, d); cancel вызывается при ошибке
//     транспорта или при закрытии тела ответа.
func WithTimeout(d time.Duration) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if d <= 0 {
				return next.RoundTrip(req)
			}
			if _, ok := req.Context().Deadline(); ok {
				return next.RoundTrip(req)
			}

			ctx, cancel := context.WithTimeout(req.Context(), d)

			resp, err := next.RoundTrip(req.WithContext(ctx))
			if err != nil {
				cancel()
				return nil, err
			}

			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		})
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// WithLogging — логирование исходящих запросов.
// Поведение:
//   - берёт X-Request-Id из заголовка (или генерирует новый и добавляет);
//   - добавляет поля method/host/path, прокладывает обогащённый логгер в контекст (pkg/log);
//   - пишет одну финальную запись уровня Info: msg="upstream", status, dur.
//
// Безопасность: не логирует тело и заголовок Authorization.
func WithLogging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			rid := req.Header.Get("X-Request-Id")
			if rid == "" {
				rid = uuid.NewString()
				req = req.Clone(req.Context())
				req.Header.Set("X-Request-Id", rid)
			}

			l := base.With(
				slog.String("request_id", rid),
				slog.String("method", req.Method),
				slog.String("host", req.URL.Host),
				slog.String("path", req.URL.Path),
			)
			req = req.WithContext(log.Into(req.Context(), l))

			resp, err := next.RoundTrip(req)
			if err != nil {
				l.Warn("upstream",
					slog.String("err", err.Error()),
					slog.Duration("dur", time.Since(start)),
				)
				return nil, err
			}

			l.Info("upstream",
				slog.Int("status", resp.StatusCode),
				slog.Bool("retried", IsRetried(req.Context())),
				slog.Duration("dur", time.Since(start)),
			)

			return resp, nil
		})
	}
}
