package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"SimpleTodoAPI/pkg/validation"
)

// DefaultPort порт HTTP-сервера, если PORT не задан или некорректен
const DefaultPort = 3000

// Config представляет конфигурацию приложения. Структура содержит вложенные структуры для различных компонентов приложения.
type Config struct {
	Server       ServerConfig    `json:"server" yaml:"server"`
	Logger       LoggerConfig    `json:"logger" yaml:"logger"`
	Environment  string          `json:"environment" yaml:"environment"`
	Router       RouterConfig    `json:"router" yaml:"router"`
	Body         BodyConfig      `json:"body" yaml:"body"`
	Metrics      MetricsConfig   `json:"metrics" yaml:"metrics"`
	CORS         CORSConfig      `json:"cors" yaml:"cors"`
	RateLimiting RateLimitConfig `json:"rate_limiting" yaml:"rate_limiting"`
	Redis        RedisConfig     `json:"redis" yaml:"redis"`
	GRPC         GRPCConfig      `json:"grpc" yaml:"grpc"`

	// Warnings содержит замечания, обнаруженные при загрузке (например, некорректный PORT)
	Warnings []string `json:"-" yaml:"-"`
}

// ServerConfig представляет конфигурацию сервера. Пустой хост означает все интерфейсы.
type ServerConfig struct {
	Host            string `json:"host" yaml:"host"`
	Port            int    `json:"port" yaml:"port"`
	ShutdownTimeout string `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr возвращает адрес для net.Listen
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ShutdownTimeoutDuration возвращает таймаут graceful shutdown
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// LoggerConfig представляет конфигурацию логгера. Определяет уровень логирования и формат вывода логов.
type LoggerConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// RouterConfig управляет сопоставлением путей
type RouterConfig struct {
	// Strict различает "/health" и "/health/"
	Strict bool `json:"strict" yaml:"strict"`
	// CaseSensitive различает "/health" и "/HEALTH"
	CaseSensitive bool `json:"case_sensitive" yaml:"case_sensitive"`
}

// BodyConfig ограничения парсеров тела запроса
type BodyConfig struct {
	Limit          int64 `json:"limit" yaml:"limit"`
	ParameterLimit int   `json:"parameter_limit" yaml:"parameter_limit"`
}

// MetricsConfig конфигурация эндпоинта Prometheus
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// CORSConfig конфигурация CORS; пустой список отключает middleware
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// RateLimitConfig представляет конфигурацию Rate Limiting. Ноль отключает ограничение.
type RateLimitConfig struct {
	RequestsPerMinute int    `json:"requests_per_minute" yaml:"requests_per_minute"`
	Backend           string `json:"backend" yaml:"backend"`
	// TrustProxy разрешает брать IP клиента из X-Forwarded-For и X-Real-IP
	TrustProxy bool `json:"trust_proxy" yaml:"trust_proxy"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Addr          string `json:"addr" yaml:"addr"`
	Password      string `json:"password" yaml:"password"`
	DB            int    `json:"db" yaml:"db"`
	PoolSize      int    `json:"pool_size" yaml:"pool_size"`
	MinIdleConn   int    `json:"min_idle_conn" yaml:"min_idle_conn"`
	MaxRetries    int    `json:"max_retries" yaml:"max_retries"`
	RetryInterval string `json:"retry_interval" yaml:"retry_interval"`
}

// GRPCConfig представляет конфигурацию gRPC health сервера. Ноль отключает сервер.
type GRPCConfig struct {
	Port int `json:"port" yaml:"port"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            DefaultPort,
			ShutdownTimeout: "10s",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "",
		},
		Environment: "dev",
		Body: BodyConfig{
			Limit:          100 * 1024,
			ParameterLimit: 1000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		RateLimiting: RateLimitConfig{
			RequestsPerMinute: 0,
			Backend:           "memory",
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			PoolSize:      10,
			MinIdleConn:   2,
			MaxRetries:    3,
			RetryInterval: "1s",
		},
	}
}

// LoadConfig загружает конфигурацию в следующем порядке приоритета:
// 1. Загрузка значений по умолчанию
// 2. Загрузка из файла (если указан)
// 3. Переопределение значениями из переменных окружения
// 4. Валидация конфигурации
// Возвращает готовую конфигурацию или ошибку.
func LoadConfig(configFile string) (*Config, error) {
	config := Default()

	if configFile != "" {
		if err := loadConfigFromFile(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadConfigFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadConfigFromFile(config *Config, filename string) error {
	filename = os.ExpandEnv(filename)

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", filename)
	}

	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	// Try to unmarshal as YAML first, then JSON
	if err := yaml.Unmarshal(content, config); err != nil {
		if jsonErr := json.Unmarshal(content, config); jsonErr != nil {
			return fmt.Errorf("failed to unmarshal config file as YAML or JSON: %w", err)
		}
	}

	return nil
}

func loadConfigFromEnv(config *Config) error {
	// Некорректный PORT не является ошибкой: сохраняется текущее значение
	if port := os.Getenv("PORT"); port != "" {
		if p, valid := ParsePort(port); valid {
			config.Server.Port = p
		} else {
			config.Warnings = append(config.Warnings,
				fmt.Sprintf("ignoring invalid PORT %q, using %d", port, config.Server.Port))
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Server.Host = host
	}
	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		config.Server.ShutdownTimeout = timeout
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logger.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Logger.Format = format
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = env
	}

	if limit := os.Getenv("BODY_LIMIT"); limit != "" {
		v, err := strconv.ParseInt(limit, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid BODY_LIMIT: %s", limit)
		}
		config.Body.Limit = v
	}

	if enabled := os.Getenv("METRICS_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid METRICS_ENABLED: %s", enabled)
		}
		config.Metrics.Enabled = v
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		config.CORS.AllowedOrigins = splitList(origins)
	}

	if rpm := os.Getenv("RATE_LIMIT_RPM"); rpm != "" {
		v, err := strconv.Atoi(rpm)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPM: %s", rpm)
		}
		config.RateLimiting.RequestsPerMinute = v
	}
	if backend := os.Getenv("RATE_LIMIT_BACKEND"); backend != "" {
		config.RateLimiting.Backend = backend
	}
	if trust := os.Getenv("RATE_LIMIT_TRUST_PROXY"); trust != "" {
		v, err := strconv.ParseBool(trust)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_TRUST_PROXY: %s", trust)
		}
		config.RateLimiting.TrustProxy = v
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		v, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB: %s", db)
		}
		config.Redis.DB = v
	}

	if port := os.Getenv("GRPC_PORT"); port != "" {
		v, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid GRPC_PORT: %s", port)
		}
		config.GRPC.Port = v
	}

	return nil
}

// ParsePort разбирает номер порта; возвращает false для пустых, нечисловых
// и выходящих за диапазон 1-65535 значений
func ParsePort(s string) (int, bool) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p <= 0 || p > 65535 {
		return 0, false
	}
	return p, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	v := validation.NewValidator()

	if err := v.ValidateEnum(c.Environment, []string{"dev", "test", "staging", "prod"}, "environment"); err != nil {
		return err
	}

	if err := v.ValidatePort(c.Server.Port, "server.port", false); err != nil {
		return err
	}
	if err := v.ValidateDuration(c.Server.ShutdownTimeout, "server.shutdown_timeout"); err != nil {
		return err
	}

	if err := v.ValidateEnum(c.Logger.Level, []string{"debug", "info", "warn", "error"}, "logger.level"); err != nil {
		return err
	}
	if err := v.ValidateEnum(c.Logger.Format, []string{"", "json", "console"}, "logger.format"); err != nil {
		return err
	}

	if err := v.ValidatePositive(c.Body.Limit, "body.limit"); err != nil {
		return err
	}
	if err := v.ValidatePositive(int64(c.Body.ParameterLimit), "body.parameter_limit"); err != nil {
		return err
	}

	if c.Metrics.Enabled {
		if err := v.ValidateRoutePath(c.Metrics.Path, "metrics.path", "/", "/health"); err != nil {
			return err
		}
	}

	for _, origin := range c.CORS.AllowedOrigins {
		if err := v.ValidateOrigin(origin); err != nil {
			return fmt.Errorf("invalid cors.allowed_origins: %w", err)
		}
	}

	if err := v.ValidateNonNegative(int64(c.RateLimiting.RequestsPerMinute), "rate_limiting.requests_per_minute"); err != nil {
		return err
	}
	if err := v.ValidateEnum(c.RateLimiting.Backend, []string{"memory", "redis"}, "rate_limiting.backend"); err != nil {
		return err
	}
	if c.RateLimiting.Backend == "redis" && c.RateLimiting.RequestsPerMinute > 0 {
		if err := v.ValidateHostPort(c.Redis.Addr, "redis.addr"); err != nil {
			return err
		}
		if err := v.ValidateDuration(c.Redis.RetryInterval, "redis.retry_interval"); err != nil {
			return err
		}
	}

	if err := v.ValidatePort(c.GRPC.Port, "grpc.port", true); err != nil {
		return err
	}
	if c.GRPC.Port != 0 && c.GRPC.Port == c.Server.Port {
		return fmt.Errorf("grpc.port must differ from server.port")
	}

	return nil
}

// Save сохраняет конфигурацию в файл в формате YAML.
// Автоматически создает директорию, если она не существует.
func (c *Config) Save(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	content, err := c.YAML()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, content, 0644)
}

// YAML возвращает конфигурацию в формате YAML
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
