package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"SimpleTodoAPI/pkg/logger"
)

// ErrCircuitOpen возвращается, пока circuit breaker не пропускает вызовы backend
var ErrCircuitOpen = errors.New("rate limiter circuit breaker is open")

// BreakerState состояние circuit breaker
type BreakerState int

const (
	// StateClosed вызовы проходят в backend
	StateClosed BreakerState = iota
	// StateOpen вызовы отклоняются без обращения к backend
	StateOpen
	// StateHalfOpen пропускается одна пробная попытка
	StateHalfOpen
)

// String возвращает строковое представление состояния
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerLimiter защищает внешний RateLimiter (redis) от каскадных таймаутов.
// После failureThreshold ошибок подряд backend не вызывается recoveryTimeout,
// затем одна пробная попытка решает, закрыть breaker или открыть снова.
type BreakerLimiter struct {
	next             RateLimiter
	failureThreshold int
	recoveryTimeout  time.Duration

	mtx             sync.Mutex
	state           BreakerState
	failureCount    int
	stateChangeTime time.Time
	probing         bool

	// healthCheck проверяет backend перед пробной попыткой в half-open
	healthCheck func(ctx context.Context) error

	log logger.Logger
	now func() time.Time
}

// NewBreakerLimiter оборачивает next circuit breaker'ом
func NewBreakerLimiter(next RateLimiter, failureThreshold int, recoveryTimeout time.Duration, log logger.Logger) *BreakerLimiter {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	return &BreakerLimiter{
		next:             next,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		log:              log,
		now:              time.Now,
	}
}

// WithHealthCheck задает проверку доступности backend (например, ping redis),
// которая выполняется перед пробной попыткой в half-open
func (b *BreakerLimiter) WithHealthCheck(check func(ctx context.Context) error) *BreakerLimiter {
	b.healthCheck = check
	return b
}

// CheckRateLimit вызывает backend, если breaker это разрешает
func (b *BreakerLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, trial := b.allow()
	if !allowed {
		return false, ErrCircuitOpen
	}

	if trial && b.healthCheck != nil {
		if err := b.healthCheck(ctx); err != nil {
			b.log.Debug("Rate limiter health check failed", logger.Error(err))
			b.onComplete(err)
			return false, ErrCircuitOpen
		}
	}

	exceeded, err := b.next.CheckRateLimit(ctx, key, limit, window)
	b.onComplete(err)
	return exceeded, err
}

// State возвращает текущее состояние breaker
func (b *BreakerLimiter) State() BreakerState {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.state
}

// allow сообщает, можно ли вызвать backend, и является ли вызов пробным
func (b *BreakerLimiter) allow() (bool, bool) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.stateChangeTime) < b.recoveryTimeout {
			return false, false
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return true, true
	case StateHalfOpen:
		// Пока пробный вызов не завершен, остальные отклоняются
		if b.probing {
			return false, false
		}
		b.probing = true
		return true, true
	default:
		return true, false
	}
}

func (b *BreakerLimiter) onComplete(err error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.state == StateHalfOpen {
		b.probing = false
		if err != nil {
			b.setState(StateOpen)
			return
		}
		b.failureCount = 0
		b.setState(StateClosed)
		return
	}

	if err == nil {
		b.failureCount = 0
		return
	}

	b.failureCount++
	if b.state == StateClosed && b.failureCount >= b.failureThreshold {
		b.log.Warn("Rate limiter circuit breaker tripped",
			logger.Int("failure_count", b.failureCount),
			logger.Int("failure_threshold", b.failureThreshold),
			logger.Error(err))
		b.setState(StateOpen)
	}
}

// setState вызывается под mtx
func (b *BreakerLimiter) setState(state BreakerState) {
	old := b.state
	b.state = state
	b.stateChangeTime = b.now()
	b.log.Info("Circuit breaker state changed",
		logger.String("circuit_breaker", "rate_limiter"),
		logger.String("old_state", old.String()),
		logger.String("new_state", state.String()))
}
