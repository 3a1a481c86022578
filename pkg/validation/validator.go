package validation

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// Validator предоставляет общие функции валидации
type Validator struct{}

// NewValidator создает новый Validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateEnum проверяет значение на соответствие enum
func (v *Validator) ValidateEnum(value string, allowedValues []string, fieldName string) error {
	for _, allowed := range allowedValues {
		if value == allowed {
			return nil
		}
	}

	return fmt.Errorf("invalid %s: %q, allowed values: %v", fieldName, value, allowedValues)
}

// ValidatePort проверяет номер порта. allowZero разрешает 0 (компонент отключен).
func (v *Validator) ValidatePort(port int, fieldName string, allowZero bool) error {
	if allowZero && port == 0 {
		return nil
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got: %d", fieldName, port)
	}
	return nil
}

// ValidateHostPort проверяет корректность host:port формата
func (v *Validator) ValidateHostPort(target, fieldName string) error {
	if target == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return fmt.Errorf("%s should not include http/https scheme", fieldName)
	}

	_, port, err := net.SplitHostPort(target)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", fieldName, err)
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid %s port: %s", fieldName, port)
	}
	return v.ValidatePort(p, fieldName, false)
}

// ValidateOrigin проверяет CORS origin: "*" или scheme://host[:port] без пути
func (v *Validator) ValidateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}

	parsedURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin %q: %w", origin, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("origin %q must use http or https scheme", origin)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("origin %q must have a valid host", origin)
	}
	if parsedURL.Path != "" || parsedURL.RawQuery != "" || parsedURL.Fragment != "" {
		return fmt.Errorf("origin %q must not contain path, query or fragment", origin)
	}

	return nil
}

// ValidateRoutePath проверяет путь маршрута: канонический, начинается с "/",
// без завершающего "/" и не совпадает с reserved
func (v *Validator) ValidateRoutePath(route, fieldName string, reserved ...string) error {
	if !strings.HasPrefix(route, "/") || strings.ContainsAny(route, " \t\n\r?#{}") {
		return fmt.Errorf("invalid %s: %q", fieldName, route)
	}
	if route != "/" && path.Clean(route) != route {
		return fmt.Errorf("invalid %s: %q is not a canonical path", fieldName, route)
	}

	normalized := strings.ToLower(strings.TrimSuffix(route, "/"))
	for _, r := range reserved {
		if normalized == strings.ToLower(strings.TrimSuffix(r, "/")) {
			return fmt.Errorf("%s %q conflicts with a built-in route", fieldName, route)
		}
	}
	if normalized == "" {
		return fmt.Errorf("%s %q conflicts with a built-in route", fieldName, route)
	}

	return nil
}

// ValidateDuration проверяет строку длительности; пустая строка допустима
func (v *Validator) ValidateDuration(value, fieldName string) error {
	if value == "" {
		return nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", fieldName, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got: %s", fieldName, value)
	}
	return nil
}

// ValidatePositive проверяет, что значение больше нуля
func (v *Validator) ValidatePositive(value int64, fieldName string) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", fieldName, value)
	}
	return nil
}

// ValidateNonNegative проверяет, что значение не меньше нуля
func (v *Validator) ValidateNonNegative(value int64, fieldName string) error {
	if value < 0 {
		return fmt.Errorf("%s must not be negative, got: %d", fieldName, value)
	}
	return nil
}
