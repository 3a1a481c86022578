package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"SimpleTodoAPI/pkg/config"
	"SimpleTodoAPI/pkg/health"
	"SimpleTodoAPI/pkg/logger"
	"SimpleTodoAPI/pkg/metrics"
	"SimpleTodoAPI/pkg/ratelimit"
	pkg_redis "SimpleTodoAPI/pkg/redis"
	httphandler "SimpleTodoAPI/services/todo-api/internal/handler/http"
	"SimpleTodoAPI/services/todo-api/internal/middleware"
)

const (
	// ServiceName имя сервиса в логах, метриках и gRPC health
	ServiceName = "todo-api"

	// rateLimitWindow окно, к которому относится rate_limiting.requests_per_minute
	rateLimitWindow = time.Minute

	// Параметры circuit breaker redis лимитера
	breakerFailureThreshold = 5
	breakerRecoveryTimeout  = 30 * time.Second
)

// Server HTTP сервер Todo API с цепочкой middleware
type Server struct {
	cfg         *config.Config
	log         logger.Logger
	router      *httphandler.Handler
	metrics     *metrics.Metrics
	rateLimiter ratelimit.RateLimiter
	handler     http.Handler
}

// Option настраивает Server
type Option func(*Server)

// WithRateLimiter задает лимитер вместо создаваемого по умолчанию in-memory
func WithRateLimiter(rl ratelimit.RateLimiter) Option {
	return func(s *Server) {
		s.rateLimiter = rl
	}
}

// WithMetrics задает коллектор метрик
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New собирает маршрутизатор и цепочку middleware. Сеть не используется,
// поэтому результат Handler() можно тестировать через httptest.
func New(cfg *config.Config, log logger.Logger, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		log: log,
	}
	for _, opt := range opts {
		opt(s)
	}

	healthHandler := httphandler.NewHealthHandler(health.NewSimpleHealthChecker(), log)
	s.router = httphandler.NewHandler(cfg.Router, healthHandler, log)

	if cfg.Metrics.Enabled {
		if s.metrics == nil {
			s.metrics = metrics.NewMetrics("todo_api")
		}
		s.router.Handle(cfg.Metrics.Path, s.metrics.GetHandler())
	}

	if cfg.RateLimiting.RequestsPerMinute > 0 && s.rateLimiter == nil {
		if cfg.RateLimiting.Backend == "redis" {
			log.Warn("Redis rate limiter was not provided, falling back to memory backend")
		}
		s.rateLimiter = ratelimit.NewMemoryRateLimiter()
	}

	s.handler = s.buildChain()
	return s
}

// buildChain оборачивает маршрутизатор в middleware; первым выполняется logging
func (s *Server) buildChain() http.Handler {
	var h http.Handler = s.router

	h = middleware.BodyParserMiddleware(middleware.BodyParserConfig{
		Limit:          s.cfg.Body.Limit,
		ParameterLimit: s.cfg.Body.ParameterLimit,
	}, s.log)(h)

	if s.rateLimiter != nil {
		h = middleware.RateLimitMiddleware(s.rateLimiter, middleware.RateLimitConfig{
			Limit:      s.cfg.RateLimiting.RequestsPerMinute,
			Window:     rateLimitWindow,
			TrustProxy: s.cfg.RateLimiting.TrustProxy,
			Exempt:     []string{"/health"},
		}, s.log)(h)
	}

	if len(s.cfg.CORS.AllowedOrigins) > 0 {
		h = middleware.CORSMiddleware(s.cfg.CORS.AllowedOrigins, s.log)(h)
	}

	h = middleware.RecoveryMiddleware(s.log)(h)

	if s.metrics != nil {
		h = s.metrics.Middleware(s.router.RouteOf)(h)
	}

	return middleware.LoggingMiddleware(s.log)(h)
}

// Handler возвращает собранный http.Handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics возвращает коллектор метрик или nil, если метрики отключены
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Run слушает server.host:server.port и обслуживает запросы до отмены ctx
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Addr(), err)
	}
	return s.Serve(ctx, lis)
}

// Serve обслуживает запросы на lis до отмены ctx, затем выполняет graceful shutdown.
// При grpc.port > 0 параллельно запускается gRPC health сервер.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	var grpcServer *health.GRPCServer
	if s.cfg.GRPC.Port > 0 {
		grpcLis, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.GRPC.Port)))
		if err != nil {
			lis.Close()
			return fmt.Errorf("failed to listen for grpc health: %w", err)
		}
		grpcServer = health.NewGRPCServer(ServiceName, s.log)
		go func() {
			if err := grpcServer.Serve(grpcLis); err != nil {
				errCh <- err
			}
		}()
	}

	go func() {
		if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	s.log.Info(fmt.Sprintf("Server is running on port %d", listenerPort(lis, s.cfg.Server.Port)),
		logger.String("addr", lis.Addr().String()))

	var serveErr error
	select {
	case <-ctx.Done():
		s.log.Info("Shutting down server...")
	case serveErr = <-errCh:
		s.log.Error("Server failed", logger.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeoutDuration())
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown failed", logger.Error(err))
		if serveErr == nil {
			serveErr = fmt.Errorf("failed to shutdown http server: %w", err)
		}
	}

	s.log.Info("Server stopped")
	return serveErr
}

// listenerPort возвращает фактический порт listener (важно для порта 0)
func listenerPort(lis net.Listener, fallback int) int {
	if addr, ok := lis.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return fallback
}

// NewRateLimiter создает лимитер для настроенного backend.
// Для redis возвращается функция закрытия подключения.
func NewRateLimiter(ctx context.Context, cfg *config.Config, log logger.Logger) (ratelimit.RateLimiter, func() error, error) {
	noop := func() error { return nil }

	if cfg.RateLimiting.RequestsPerMinute <= 0 {
		return nil, noop, nil
	}

	if cfg.RateLimiting.Backend != "redis" {
		log.Info("Using in-memory rate limiter",
			logger.Int("requests_per_minute", cfg.RateLimiting.RequestsPerMinute))
		return ratelimit.NewMemoryRateLimiter(), noop, nil
	}

	client, err := pkg_redis.Connect(ctx, pkg_redis.FromAppConfig(cfg.Redis))
	if err != nil {
		return nil, noop, err
	}

	log.Info("Using redis rate limiter",
		logger.String("addr", cfg.Redis.Addr),
		logger.Int("requests_per_minute", cfg.RateLimiting.RequestsPerMinute))
	limiter := ratelimit.NewBreakerLimiter(ratelimit.NewRedisRateLimiter(client.Client),
		breakerFailureThreshold, breakerRecoveryTimeout, log).
		WithHealthCheck(client.HealthCheck)
	return limiter, client.Close, nil
}
