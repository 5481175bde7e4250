// health — gRPC health-сервер админки.
//
// Общий статус ("") отражает готовность процесса. Отдельный сервис
// SessionService показывает, есть ли действующая сессия администратора:
// статус меняется по событиям из топика session.events.
package health

import (
	"context"
	"log/slog"
	"net"

	"github.com/ThreeDotsLabs/watermill/message"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pribylovaa/kiosk-admin/internal/events"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// SessionService — имя сервиса в health-протоколе для статуса сессии.
const SessionService = "kiosk_admin.Session"

type Server struct {
	grpc *grpc.Server
	hs   *grpchealth.Server
	log  *slog.Logger
}

// New собирает gRPC-сервер с health-сервисом и prometheus-интерсепторами.
// reflect включает reflection (для local/dev).
func New(log *slog.Logger, reflect bool) *Server {
	if log == nil {
		log = slog.Default()
	}

	grpc_prometheus.EnableHandlingTimeHistogram()

	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recoverUnary(log),
			loggingUnary(log),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(SessionService, healthpb.HealthCheckResponse_NOT_SERVING)

	if reflect {
		reflection.Register(gs)
	}

	grpc_prometheus.Register(gs)

	return &Server{grpc: gs, hs: hs, log: log.With(slog.String("component", "health"))}
}

// SetReady переключает общий статус процесса.
func (s *Server) SetReady(ready bool) {
	s.hs.SetServingStatus("", servingStatus(ready))
}

// SetSession переключает статус SessionService.
func (s *Server) SetSession(active bool) {
	s.hs.SetServingStatus(SessionService, servingStatus(active))
}

// Apply применяет событие сессии. Подходит как events.Handler.
func (s *Server) Apply(_ context.Context, ev events.Event) error {
	active := ev.Kind.Active()
	s.SetSession(active)

	s.log.Info("session_status_changed",
		slog.String("kind", string(ev.Kind)),
		slog.String("profile", ev.Profile),
		slog.Bool("active", active),
	)

	return nil
}

// Watch потребляет события сессии до отмены ctx.
func (s *Server) Watch(ctx context.Context, sub message.Subscriber, topic string) error {
	return events.Consume(ctx, sub, topic, s.log, s.Apply)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop переводит статусы в NOT_SERVING и останавливает сервер; при отмене
// ctx остановка становится принудительной.
func (s *Server) Stop(ctx context.Context) {
	s.hs.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("grpc_stopped")
	case <-ctx.Done():
		s.log.Warn("grpc_force_stop")
		s.grpc.Stop()
	}
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}

	return healthpb.HealthCheckResponse_NOT_SERVING
}
