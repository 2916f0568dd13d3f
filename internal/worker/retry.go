package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Storefront/internal/mq"
	"github.com/shaiso/Storefront/internal/telemetry"
)

// RetryPolicy — политика повторов временных ошибок executor'а.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Backoff: "exponential" или "fixed"
	Backoff string
}

// DefaultRetryPolicy — политика по умолчанию.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Backoff:      "exponential",
}

// executeWithRetry выполняет событие с retry согласно политике.
// Возвращает число сделанных попыток.
func (w *Worker) executeWithRetry(ctx context.Context, executor Executor, event mq.OrderEventPayload) (int, error) {
	maxAttempts := max(w.retry.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = executor.Execute(ctx, event)
		if lastErr == nil {
			return attempt, nil
		}

		if !shouldRetry(ctx, lastErr) {
			return attempt, lastErr
		}
		if attempt == maxAttempts {
			break
		}

		delay := calculateBackoff(attempt, w.retry)
		telemetry.FromContext(ctx).Debug("retrying order event",
			"attempt", attempt,
			"delay", delay,
			"error", lastErr,
		)

		// Ждём с учётом context
		if err := w.wait(ctx, delay); err != nil {
			return attempt, err
		}
	}

	return maxAttempts, fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr)
}

// shouldRetry определяет, нужно ли повторять ошибку.
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrInvalidEvent) || errors.Is(err, ErrUnknownEvent) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// calculateBackoff вычисляет задержку перед повтором после attempt-й попытки.
func calculateBackoff(attempt int, policy RetryPolicy) time.Duration {
	initialDelay := policy.InitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initialDelay
		delay = initialDelay
	}

	return min(delay, maxDelay)
}

// sleepContext ждёт d или отмены ctx.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
