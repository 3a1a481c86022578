package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"SimpleTodoAPI/pkg/config"
	"SimpleTodoAPI/pkg/logger"
	"SimpleTodoAPI/pkg/metrics"
	httphandler "SimpleTodoAPI/services/todo-api/internal/handler/http"
	"SimpleTodoAPI/services/todo-api/internal/server"
)

// serveOptions флаги команды serve
type serveOptions struct {
	configFile string
	port       string

	v *viper.Viper
}

// bindFlags регистрирует флаги; --config также читается из CONFIG_FILE
func (o *serveOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "путь к YAML/JSON файлу конфигурации (или CONFIG_FILE)")
	cmd.Flags().String("port", "", "порт HTTP сервера (переопределяет PORT)")

	o.v = viper.New()
	o.v.BindPFlag("config", cmd.Flags().Lookup("config"))
	o.v.BindEnv("config", "CONFIG_FILE")
	o.v.BindPFlag("port", cmd.Flags().Lookup("port"))
}

// resolve переносит значения флагов и окружения в поля
func (o *serveOptions) resolve() {
	if o.v == nil {
		return
	}
	o.configFile = o.v.GetString("config")
	o.port = o.v.GetString("port")
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP сервер",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	opts.bindFlags(cmd)
	return cmd
}

// loadConfig загружает конфигурацию и применяет флаги поверх окружения
func (o *serveOptions) loadConfig() (*config.Config, error) {
	o.resolve()

	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return nil, err
	}

	if o.port != "" {
		port, ok := config.ParsePort(o.port)
		if !ok {
			return nil, fmt.Errorf("invalid --port: %s", o.port)
		}
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	return cfg, nil
}

func runServe(ctx context.Context, opts *serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация конфигурации
	cfg, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Инициализация логгера
	appLogger, err := logger.NewLogger(cfg.Environment, cfg.Logger.Level, cfg.Logger.Format, server.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() {
		if err := appLogger.Sync(); err != nil {
			log.Printf("Error syncing logger: %v", err)
		}
	}()

	for _, warning := range cfg.Warnings {
		appLogger.Warn(warning)
	}

	// Инициализация трассировки
	tp, err := metrics.InitializeOpenTelemetry(server.ServiceName, httphandler.APIVersion)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := metrics.ShutdownTracing(context.Background(), tp); err != nil {
			appLogger.Error("Failed to shutdown tracing", logger.Error(err))
		}
	}()

	// Инициализация rate limiter (при redis backend - с подключением и retry)
	rateLimiter, closeLimiter, err := server.NewRateLimiter(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	defer func() {
		if err := closeLimiter(); err != nil {
			appLogger.Error("Failed to close rate limiter", logger.Error(err))
		}
	}()

	serverOpts := []server.Option{}
	if cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, server.WithMetrics(metrics.NewMetrics("todo_api")))
	}
	if rateLimiter != nil {
		serverOpts = append(serverOpts, server.WithRateLimiter(rateLimiter))
	}

	appLogger.Info("Starting "+httphandler.APIName,
		logger.String("version", httphandler.APIVersion),
		logger.String("addr", cfg.Server.Addr()),
		logger.String("environment", cfg.Environment),
		logger.Bool("metrics_enabled", cfg.Metrics.Enabled),
		logger.Int("rate_limit_rpm", cfg.RateLimiting.RequestsPerMinute),
		logger.Strings("cors_allowed_origins", cfg.CORS.AllowedOrigins),
		logger.Int("grpc_health_port", cfg.GRPC.Port))

	return server.New(cfg, appLogger, serverOpts...).Run(ctx)
}
