package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TestWithRetry_SucceedsAfterFailures проверяет повтор до успешной попытки
func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(5), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// TestWithRetry_ExhaustsAttempts проверяет оборачивание последней ошибки
func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("connection refused")
	calls := 0
	err := WithRetry(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

// TestWithRetry_ContextCancelled проверяет прерывание ожидания при отмене контекста
func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := fastConfig(10)
	config.InitialDelay = time.Hour
	config.MaxDelay = time.Hour

	calls := 0
	err := WithRetry(ctx, config, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// TestCalculateDelay проверяет экспоненциальный рост и ограничение сверху
func TestCalculateDelay(t *testing.T) {
	config := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, calculateDelay(1, config))
	assert.Equal(t, 2*time.Second, calculateDelay(2, config))
	assert.Equal(t, 4*time.Second, calculateDelay(3, config))
	assert.Equal(t, 5*time.Second, calculateDelay(4, config))

	config.Jitter = true
	for i := 0; i < 100; i++ {
		d := calculateDelay(1, config)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}
