package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/pribylovaa/kiosk-admin/internal/api"
	"github.com/pribylovaa/kiosk-admin/internal/authclient"
	"github.com/pribylovaa/kiosk-admin/internal/config"
	"github.com/pribylovaa/kiosk-admin/internal/events"
	"github.com/pribylovaa/kiosk-admin/internal/health"
	adminhttp "github.com/pribylovaa/kiosk-admin/internal/http"
	"github.com/pribylovaa/kiosk-admin/internal/http/middleware"
	"github.com/pribylovaa/kiosk-admin/internal/realtime"
	"github.com/pribylovaa/kiosk-admin/internal/tracing"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting kiosk-admin", "env", cfg.Env)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	log.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var cl closers
	defer cl.run()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    !cfg.Tracing.TLS,
		SampleRatio: cfg.Tracing.SampleRatio,
		ServiceName: "kiosk-admin",
		Env:         cfg.Env,
	})
	if err != nil {
		return err
	}
	cl.add(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing_shutdown_failed", slog.String("err", err.Error()))
		}
	})

	rdb, err := redisClient(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		cl.add(func() { _ = rdb.Close() })
		log.Info("redis_connected")
	}

	store, err := buildStore(ctx, cfg, rdb, &cl)
	if err != nil {
		return err
	}
	log.Info("session_store_ready", slog.String("store", cfg.Session.Store))

	notifier, err := buildNotifier(ctx, cfg, log, &cl)
	if err != nil {
		return err
	}

	pub, sub, err := buildEvents(cfg, rdb, log, &cl)
	if err != nil {
		return err
	}

	client, err := authclient.New(authclient.Options{
		BaseURL:          cfg.Upstream.BaseURL,
		LoginPath:        cfg.Upstream.LoginPath,
		RefreshPath:      cfg.Upstream.RefreshPath,
		LogoutPath:       cfg.Upstream.LogoutPath,
		Store:            store,
		Notifier:         notifier,
		Events:           events.NewPublisher(pub, cfg.Events.Topic),
		Logger:           log,
		Metrics:          authclient.NewMetrics(prometheus.DefaultRegisterer),
		UserAgent:        cfg.Upstream.UserAgent,
		Timeout:          cfg.Upstream.Timeout,
		RefreshLookahead: cfg.Session.RefreshLookahead,
		ExpiredDelay:     cfg.Session.ExpiredDelay,
		Retry: authclient.RetryPolicy{
			Codes:           cfg.Session.RetryCodes,
			MessageContains: cfg.Session.LegacyMessages,
		},
		Profile:                     cfg.Session.Profile,
		DisableFailureNotifications: cfg.Notify.MuteFailures,
	})
	if err != nil {
		return err
	}
	cl.add(client.Close)

	client.OnSessionExpired(func() {
		log.Warn("session_expired_login_required", slog.String("profile", cfg.Session.Profile))
	})
	log.Info("client_initialized", slog.String("upstream", cfg.Upstream.BaseURL))

	// gRPC health: статус процесса и сессии.
	hs := health.New(log, cfg.Env == envLocal || cfg.Env == envDev)

	grpcAddr := cfg.GRPC.Addr()
	grpcLn, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Error("grpc_listen_failed", slog.String("addr", grpcAddr), slog.String("err", err.Error()))
		return err
	}
	log.Info("grpc_listen_start", slog.String("addr", grpcAddr))

	go func() {
		if err := hs.Watch(ctx, sub, cfg.Events.Topic); err != nil {
			log.Error("session_events_watch_failed", slog.String("err", err.Error()))
		}
	}()

	if st, err := client.Status(ctx); err == nil {
		hs.SetSession(st.Authenticated)
	}

	if cfg.Realtime.HubURL != "" {
		hub := realtime.New(cfg.Realtime.HubURL, client, notifier, log, cfg.Realtime.Backoff)
		go func() {
			if err := hub.Run(ctx); err != nil {
				log.Warn("realtime_stopped", slog.String("err", err.Error()))
			}
		}()
	}

	var ready int32 // 0 — not ready; 1 — ready

	probes := http.NewServeMux()
	probes.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	probes.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})
	probes.Handle("/metrics", promhttp.Handler())

	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr(),
		Handler:           probes,
		ReadHeaderTimeout: 5 * time.Second,
	}

	apiHandler := adminhttp.NewRouter(client, api.New(client), adminhttp.Options{
		Logger:  log,
		Timeout: cfg.HTTP.Timeout,
		Metrics: middleware.NewHTTPMetrics(prometheus.DefaultRegisterer),
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           apiHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	httpLn, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		return err
	}
	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 3)
	go func() {
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
	}()
	go func() {
		log.Info("metrics_listen_start", slog.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
	}()
	go func() {
		if err := hs.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- err
		}
	}()

	hs.SetReady(true)
	atomic.StoreInt32(&ready, 1)
	log.Info("admin_ready")

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		log.Error("serve_failed", slog.String("err", serveErr.Error()))
	}

	atomic.StoreInt32(&ready, 0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	hs.Stop(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	return serveErr
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
