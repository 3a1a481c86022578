package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter интерфейс для ограничения частоты запросов
type RateLimiter interface {
	// CheckRateLimit проверяет лимит для заданного ключа
	// Возвращает true, если лимит превышен
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RedisRateLimiter реализация RateLimiter с использованием Redis.
// Fixed window: счетчик на ключ живет window с момента первого запроса.
// ExpireNX требует Redis 7.0+.
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter создает новый экземпляр RedisRateLimiter
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// CheckRateLimit атомарно увеличивает счетчик и сравнивает его с лимитом
func (r *RedisRateLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := fmt.Sprintf("rate_limit:%s", key)

	tx := r.client.TxPipeline()
	incr := tx.Incr(ctx, redisKey)
	tx.ExpireNX(ctx, redisKey, window)

	if _, err := tx.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to execute rate limit transaction: %w", err)
	}

	return incr.Val() > int64(limit), nil
}

// MemoryRateLimiter реализация RateLimiter в памяти процесса на основе token bucket.
// Каждому ключу выдается limit токенов, восполняемых равномерно за window.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*entry
	lastSweep time.Time
	now       func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryRateLimiter создает новый экземпляр MemoryRateLimiter
func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limiters: make(map[string]*entry),
		now:      time.Now,
	}
}

// CheckRateLimit расходует один токен ключа; ошибок не возвращает
func (m *MemoryRateLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now, window)

	e, ok := m.limiters[key]
	if !ok {
		every := window / time.Duration(limit)
		e = &entry{limiter: rate.NewLimiter(rate.Every(every), limit)}
		m.limiters[key] = e
	}
	e.lastSeen = now

	return !e.limiter.AllowN(now, 1), nil
}

// sweep удаляет ключи, не использовавшиеся дольше window: их ведро уже полное
func (m *MemoryRateLimiter) sweep(now time.Time, window time.Duration) {
	if now.Sub(m.lastSweep) < window {
		return
	}
	for key, e := range m.limiters {
		if now.Sub(e.lastSeen) >= window {
			delete(m.limiters, key)
		}
	}
	m.lastSweep = now
}

// Len возвращает количество отслеживаемых ключей
func (m *MemoryRateLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}
