package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// RetryPolicy bounds how a network operation is retried: up to
// MaxRetries retries after the first attempt, doubling the delay each
// time. Quota and permission rejections are final and fail immediately;
// every other error is assumed transient.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// DefaultRetryPolicy returns the standard backoff schedule
// (500ms, 1s, 2s).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialDelay: 500 * time.Millisecond}
}

// Do executes fn under the policy.
func (p RetryPolicy) Do(ctx context.Context, logger *events.Logger, op string, fn func() error) error {
	var lastErr error
	delay := p.InitialDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.WithFields(map[string]interface{}{
				"op":      op,
				"attempt": attempt,
				"delay":   delay.String(),
			}).Debug("Retrying operation")

			select {
			case <-time.After(delay):
				delay *= 2 // Exponential backoff
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !models.IsRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
