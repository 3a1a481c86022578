package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgErrors "SimpleTodoAPI/pkg/errors"
	"SimpleTodoAPI/pkg/logger"
	"SimpleTodoAPI/pkg/ratelimit"
)

// RateLimitConfig параметры ограничения частоты запросов
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	// TrustProxy включает чтение IP клиента из X-Forwarded-For и X-Real-IP
	TrustProxy bool
	// Exempt пути, которые не ограничиваются
	Exempt []string
}

// RateLimitMiddleware создает middleware для ограничения частоты запросов по IP.
// Ошибки лимитера не блокируют запрос.
func RateLimitMiddleware(rateLimiter ratelimit.RateLimiter, cfg RateLimitConfig, log logger.Logger) func(http.Handler) http.Handler {
	exemptPaths := make(map[string]struct{}, len(cfg.Exempt))
	for _, path := range cfg.Exempt {
		exemptPaths[path] = struct{}{}
	}
	limit, window := cfg.Limit, cfg.Window

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[strings.ToLower(strings.TrimSuffix(r.URL.Path, "/"))]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + getIP(r, cfg.TrustProxy)

			limitExceeded, err := rateLimiter.CheckRateLimit(r.Context(), key, limit, window)
			if err != nil {
				if errors.Is(err, ratelimit.ErrCircuitOpen) {
					log.Debug("Rate limiter unavailable, allowing request", logger.String("key", key))
				} else {
					log.Error("Rate limiter error, allowing request",
						logger.Error(err),
						logger.String("key", key))
				}
				next.ServeHTTP(w, r)
				return
			}

			if limitExceeded {
				log.Warn("Rate limit exceeded",
					logger.String("key", key),
					logger.Int("limit", limit),
					logger.String("window", window.String()),
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path))

				w.Header().Set("Retry-After", retryAfter(window))
				pkgErrors.WriteJSON(w, pkgErrors.New(pkgErrors.ErrTooManyRequests, "too many requests"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getIP извлекает IP адрес клиента. Заголовки прокси учитываются только при trustProxy,
// из X-Forwarded-For берется первый адрес.
func getIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedIP(r); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func forwardedIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}

func retryAfter(window time.Duration) string {
	seconds := int(window.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
