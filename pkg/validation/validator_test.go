package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_ValidateEnum(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateEnum("dev", []string{"dev", "prod"}, "environment"))

	err := v.ValidateEnum("qa", []string{"dev", "prod"}, "environment")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid environment")
}

func TestValidator_ValidatePort(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		port      int
		allowZero bool
		wantErr   bool
	}{
		{"valid", 3000, false, false},
		{"max", 65535, false, false},
		{"zero not allowed", 0, false, true},
		{"zero allowed", 0, true, false},
		{"negative", -1, true, true},
		{"too large", 65536, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePort(tt.port, "port", tt.allowZero)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_ValidateHostPort(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateHostPort("localhost:6379", "redis.addr"))
	assert.NoError(t, v.ValidateHostPort("[::1]:6379", "redis.addr"))
	assert.Error(t, v.ValidateHostPort("", "redis.addr"))
	assert.Error(t, v.ValidateHostPort("localhost", "redis.addr"))
	assert.Error(t, v.ValidateHostPort("redis://localhost:6379", "redis.addr"))
	assert.Error(t, v.ValidateHostPort("http://localhost:6379", "redis.addr"))
	assert.Error(t, v.ValidateHostPort("localhost:99999", "redis.addr"))
}

func TestValidator_ValidateOrigin(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		origin  string
		wantErr bool
	}{
		{"*", false},
		{"http://localhost:8080", false},
		{"https://example.com", false},
		{"example.com", true},
		{"ftp://example.com", true},
		{"https://example.com/path", true},
		{"https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			err := v.ValidateOrigin(tt.origin)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_ValidateRoutePath(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateRoutePath("/metrics", "metrics.path", "/", "/health"))
	assert.Error(t, v.ValidateRoutePath("metrics", "metrics.path"))
	assert.Error(t, v.ValidateRoutePath("/", "metrics.path", "/", "/health"))
	assert.Error(t, v.ValidateRoutePath("/Health/", "metrics.path", "/", "/health"))
	assert.Error(t, v.ValidateRoutePath("/a b", "metrics.path"))
	assert.Error(t, v.ValidateRoutePath("/{id}", "metrics.path"))
	assert.Error(t, v.ValidateRoutePath("/metrics/", "metrics.path"))
	assert.Error(t, v.ValidateRoutePath("//metrics", "metrics.path"))
	assert.Error(t, v.ValidateRoutePath("/a/../metrics", "metrics.path"))
}

func TestValidator_ValidateDuration(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateDuration("", "server.shutdown_timeout"))
	assert.NoError(t, v.ValidateDuration("10s", "server.shutdown_timeout"))
	assert.Error(t, v.ValidateDuration("ten", "server.shutdown_timeout"))
	assert.Error(t, v.ValidateDuration("-1s", "server.shutdown_timeout"))
}

func TestValidator_Numbers(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidatePositive(1, "body.limit"))
	assert.Error(t, v.ValidatePositive(0, "body.limit"))
	assert.NoError(t, v.ValidateNonNegative(0, "rate_limiting.requests_per_minute"))
	assert.Error(t, v.ValidateNonNegative(-1, "rate_limiting.requests_per_minute"))
}
