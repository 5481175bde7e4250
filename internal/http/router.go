package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/kiosk-admin/internal/api"
	"github.com/pribylovaa/kiosk-admin/internal/http/handlers"
	"github.com/pribylovaa/kiosk-admin/internal/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	Metrics  *middleware.HTTPMetrics
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает BFF-роутер админки поверх сессии и ресурсов API.
func NewRouter(s handlers.Session, a *api.API, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования: id попадает в логгер
		middleware.Logging(opts.Logger),
		middleware.Metrics(opts.Metrics),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	h := handlers.New(s, a)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		h.Register(sub)
		root.Mount(opts.BasePath, sub)
		return root
	}

	h.Register(root)
	return root
}
