package health

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	pkggrpc "SimpleTodoAPI/pkg/grpc"
	"SimpleTodoAPI/pkg/logger"
)

// StatusOK значение поля status для исправного сервиса
const StatusOK = "ok"

// HealthChecker интерфейс для проверки здоровья сервиса
type HealthChecker interface {
	Check(ctx context.Context) *HealthStatus
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status string `json:"status"`
}

// SimpleHealthChecker всегда сообщает, что процесс жив
type SimpleHealthChecker struct{}

// NewSimpleHealthChecker создает новый SimpleHealthChecker
func NewSimpleHealthChecker() *SimpleHealthChecker {
	return &SimpleHealthChecker{}
}

// Check проверяет здоровье сервиса
func (s *SimpleHealthChecker) Check(ctx context.Context) *HealthStatus {
	return &HealthStatus{Status: StatusOK}
}

// GRPCServer отдает состояние сервиса по протоколу grpc.health.v1
type GRPCServer struct {
	server  *grpc.Server
	health  *grpchealth.Server
	service string
	log     logger.Logger
}

// NewGRPCServer создает gRPC сервер со зарегистрированным health сервисом.
// Состояние SERVING выставляется для общего статуса ("") и для service.
func NewGRPCServer(service string, log logger.Logger) *GRPCServer {
	healthServer := grpchealth.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)

	server := grpc.NewServer(pkggrpc.ServerOptions(log)...)
	healthpb.RegisterHealthServer(server, healthServer)

	return &GRPCServer{
		server:  server,
		health:  healthServer,
		service: service,
		log:     log,
	}
}

// Serve принимает соединения на listener до вызова Stop
func (g *GRPCServer) Serve(lis net.Listener) error {
	g.log.Info("gRPC health server is running", logger.String("addr", lis.Addr().String()))
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// Shutdown переводит все сервисы в NOT_SERVING и останавливает сервер
func (g *GRPCServer) Shutdown(ctx context.Context) {
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		g.server.Stop()
	}
}
