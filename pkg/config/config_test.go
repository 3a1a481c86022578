package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"PORT", "HOST", "SHUTDOWN_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT", "ENVIRONMENT",
	"BODY_LIMIT", "METRICS_ENABLED", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT_RPM",
	"RATE_LIMIT_BACKEND", "RATE_LIMIT_TRUST_PROXY", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "GRPC_PORT",
}

// clearEnv сбрасывает переменные окружения, влияющие на конфигурацию
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
	}
}

// TestLoadConfig_DefaultValues проверяет загрузку значений по умолчанию
func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "", config.Server.Host)
	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, ":3000", config.Server.Addr())
	assert.Equal(t, 10*time.Second, config.Server.ShutdownTimeoutDuration())
	assert.Equal(t, "info", config.Logger.Level)
	assert.Equal(t, "dev", config.Environment)
	assert.False(t, config.Router.Strict)
	assert.False(t, config.Router.CaseSensitive)
	assert.EqualValues(t, 100*1024, config.Body.Limit)
	assert.Equal(t, 1000, config.Body.ParameterLimit)
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, "/metrics", config.Metrics.Path)
	assert.Equal(t, 0, config.RateLimiting.RequestsPerMinute)
	assert.Equal(t, "memory", config.RateLimiting.Backend)
	assert.Equal(t, 0, config.GRPC.Port)
	assert.Empty(t, config.Warnings)
}

// TestLoadConfig_Port проверяет чтение порта из PORT
func TestLoadConfig_Port(t *testing.T) {
	tests := []struct {
		name         string
		port         string
		expectedPort int
		warned       bool
	}{
		{name: "unset", port: "", expectedPort: 3000},
		{name: "valid override", port: "5050", expectedPort: 5050},
		{name: "surrounding spaces", port: " 8081 ", expectedPort: 8081},
		{name: "not a number", port: "abc", expectedPort: 3000, warned: true},
		{name: "zero", port: "0", expectedPort: 3000, warned: true},
		{name: "out of range", port: "70000", expectedPort: 3000, warned: true},
		{name: "negative", port: "-1", expectedPort: 3000, warned: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PORT", tt.port)

			config, err := LoadConfig("")
			require.NoError(t, err)

			assert.Equal(t, tt.expectedPort, config.Server.Port)
			if tt.warned {
				assert.Len(t, config.Warnings, 1)
			} else {
				assert.Empty(t, config.Warnings)
			}
		})
	}
}

// TestLoadConfig_FileOverride проверяет переопределение значений по умолчанию значениями из файла
func TestLoadConfig_FileOverride(t *testing.T) {
	clearEnv(t)

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `server:
  host: "127.0.0.1"
  port: 9090
  shutdown_timeout: "3s"
logger:
  level: "debug"
  format: "console"
environment: "prod"
router:
  strict: true
metrics:
  enabled: false
cors:
  allowed_origins: ["https://example.com"]
rate_limiting:
  requests_per_minute: 60
  backend: "redis"
grpc:
  port: 9091
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	config, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", config.Server.Addr())
	assert.Equal(t, 3*time.Second, config.Server.ShutdownTimeoutDuration())
	assert.Equal(t, "debug", config.Logger.Level)
	assert.Equal(t, "console", config.Logger.Format)
	assert.Equal(t, "prod", config.Environment)
	assert.True(t, config.Router.Strict)
	assert.False(t, config.Metrics.Enabled)
	assert.Equal(t, []string{"https://example.com"}, config.CORS.AllowedOrigins)
	assert.Equal(t, 60, config.RateLimiting.RequestsPerMinute)
	assert.Equal(t, "redis", config.RateLimiting.Backend)
	assert.Equal(t, 9091, config.GRPC.Port)
	// Значения, не указанные в файле, остаются по умолчанию
	assert.Equal(t, "localhost:6379", config.Redis.Addr)
}

// TestLoadConfig_JSONFile проверяет загрузку конфигурации в формате JSON
func TestLoadConfig_JSONFile(t *testing.T) {
	clearEnv(t)

	configFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configFile, []byte(`{"server":{"port":4000},"environment":"staging"}`), 0644))

	config, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, 4000, config.Server.Port)
	assert.Equal(t, "staging", config.Environment)
}

// TestLoadConfig_EnvOverridesFile проверяет приоритет переменных окружения над файлом
func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server:\n  port: 9090\n"), 0644))

	t.Setenv("PORT", "5050")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_RPM", "120")
	t.Setenv("RATE_LIMIT_TRUST_PROXY", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("METRICS_ENABLED", "false")

	config, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, 5050, config.Server.Port)
	assert.Equal(t, "warn", config.Logger.Level)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, config.CORS.AllowedOrigins)
	assert.Equal(t, 120, config.RateLimiting.RequestsPerMinute)
	assert.True(t, config.RateLimiting.TrustProxy)
	assert.Equal(t, "redis:6379", config.Redis.Addr)
	assert.Equal(t, 2, config.Redis.DB)
	assert.False(t, config.Metrics.Enabled)
}

// TestLoadConfig_InvalidEnv проверяет ошибки разбора переменных окружения
func TestLoadConfig_InvalidEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "body limit", key: "BODY_LIMIT", value: "big"},
		{name: "metrics flag", key: "METRICS_ENABLED", value: "maybe"},
		{name: "rate limit", key: "RATE_LIMIT_RPM", value: "fast"},
		{name: "trust proxy", key: "RATE_LIMIT_TRUST_PROXY", value: "maybe"},
		{name: "redis db", key: "REDIS_DB", value: "first"},
		{name: "grpc port", key: "GRPC_PORT", value: "grpc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}

// TestLoadConfig_MissingFile проверяет ошибку при отсутствии файла
func TestLoadConfig_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestValidate проверяет валидацию конфигурации
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "bad environment", modify: func(c *Config) { c.Environment = "qa" }, wantErr: true},
		{name: "bad port", modify: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "bad level", modify: func(c *Config) { c.Logger.Level = "trace" }, wantErr: true},
		{name: "bad format", modify: func(c *Config) { c.Logger.Format = "xml" }, wantErr: true},
		{name: "zero body limit", modify: func(c *Config) { c.Body.Limit = 0 }, wantErr: true},
		{name: "zero parameter limit", modify: func(c *Config) { c.Body.ParameterLimit = 0 }, wantErr: true},
		{name: "metrics on root", modify: func(c *Config) { c.Metrics.Path = "/" }, wantErr: true},
		{name: "metrics on health", modify: func(c *Config) { c.Metrics.Path = "/health" }, wantErr: true},
		{name: "metrics trailing slash", modify: func(c *Config) { c.Metrics.Path = "/metrics/" }, wantErr: true},
		{name: "metrics path ignored when disabled", modify: func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.Path = ""
		}},
		{name: "negative rate limit", modify: func(c *Config) { c.RateLimiting.RequestsPerMinute = -1 }, wantErr: true},
		{name: "unknown backend", modify: func(c *Config) { c.RateLimiting.Backend = "memcached" }, wantErr: true},
		{name: "redis without addr", modify: func(c *Config) {
			c.RateLimiting.RequestsPerMinute = 10
			c.RateLimiting.Backend = "redis"
			c.Redis.Addr = ""
		}, wantErr: true},
		{name: "redis addr without port", modify: func(c *Config) {
			c.RateLimiting.RequestsPerMinute = 10
			c.RateLimiting.Backend = "redis"
			c.Redis.Addr = "localhost"
		}, wantErr: true},
		{name: "grpc port clash", modify: func(c *Config) { c.GRPC.Port = c.Server.Port }, wantErr: true},
		{name: "grpc port out of range", modify: func(c *Config) { c.GRPC.Port = 70000 }, wantErr: true},
		{name: "bad shutdown timeout", modify: func(c *Config) { c.Server.ShutdownTimeout = "soon" }, wantErr: true},
		{name: "cors origins", modify: func(c *Config) {
			c.CORS.AllowedOrigins = []string{"http://localhost:8080", "*"}
		}},
		{name: "bad cors origin", modify: func(c *Config) { c.CORS.AllowedOrigins = []string{"localhost"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)

			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestSave проверяет сохранение и повторную загрузку конфигурации
func TestSave(t *testing.T) {
	clearEnv(t)

	c := Default()
	c.Server.Port = 7070
	c.Router.CaseSensitive = true

	configFile := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, c.Save(configFile))

	loaded, err := LoadConfig(configFile)
	require.NoError(t, err)
	assert.Equal(t, 7070, loaded.Server.Port)
	assert.True(t, loaded.Router.CaseSensitive)
}
