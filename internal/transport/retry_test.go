package transport_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
	"github.com/lsvault/lsvault/internal/transport"
)

func retryLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

func TestRetryWithBackoff(t *testing.T) {
	attempts := 0
	startTime := time.Now()

	policy := transport.RetryPolicy{MaxRetries: 3, InitialDelay: 100 * time.Millisecond}
	err := policy.Do(context.Background(), retryLogger(), "test", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	duration := time.Since(startTime)

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	// Should have delays: 0ms, 100ms, 200ms = 300ms total
	assert.GreaterOrEqual(t, duration, 300*time.Millisecond)
	assert.Less(t, duration, 450*time.Millisecond)
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	attempts := 0
	policy := transport.RetryPolicy{MaxRetries: 5, InitialDelay: 100 * time.Millisecond}
	err := policy.Do(ctx, retryLogger(), "test", func() error {
		attempts++
		return errors.New("error")
	})

	assert.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.LessOrEqual(t, attempts, 3)
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	policy := transport.RetryPolicy{MaxRetries: 2, InitialDelay: 10 * time.Millisecond}
	err := policy.Do(context.Background(), retryLogger(), "test", func() error {
		attempts++
		return errors.New("persistent error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, attempts) // maxRetries + 1
}

func TestRetrySuccessOnFirstAttempt(t *testing.T) {
	attempts := 0
	policy := transport.RetryPolicy{MaxRetries: 3, InitialDelay: 100 * time.Millisecond}
	err := policy.Do(context.Background(), retryLogger(), "test", func() error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryQuotaErrorNotRetried(t *testing.T) {
	attempts := 0
	policy := transport.DefaultRetryPolicy()
	err := policy.Do(context.Background(), retryLogger(), "test", func() error {
		attempts++
		return errors.New("upload rejected: storage limit exceeded")
	})

	assert.Error(t, err)
	assert.True(t, models.IsQuotaError(err))
	assert.Equal(t, 1, attempts)
}

func TestRetryPermissionErrorNotRetried(t *testing.T) {
	attempts := 0
	policy := transport.DefaultRetryPolicy()
	err := policy.Do(context.Background(), retryLogger(), "test", func() error {
		attempts++
		return errors.New("access denied")
	})

	assert.Error(t, err)
	assert.True(t, models.IsPermissionError(err))
	assert.Equal(t, 1, attempts)
}

func TestRetryAPIErrorClassification(t *testing.T) {
	t.Run("client errors are final", func(t *testing.T) {
		attempts := 0
		policy := transport.RetryPolicy{MaxRetries: 3, InitialDelay: 10 * time.Millisecond}
		wantErr := &models.APIError{StatusCode: http.StatusBadRequest, Code: "BAD_REQUEST", Message: "malformed path"}

		err := policy.Do(context.Background(), retryLogger(), "test", func() error {
			attempts++
			return wantErr
		})

		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, 1, attempts)
	})

	t.Run("server errors are retried", func(t *testing.T) {
		attempts := 0
		policy := transport.RetryPolicy{MaxRetries: 2, InitialDelay: 10 * time.Millisecond}

		err := policy.Do(context.Background(), retryLogger(), "test", func() error {
			attempts++
			return &models.APIError{StatusCode: http.StatusBadGateway, Code: "BAD_GATEWAY", Message: "upstream unavailable"}
		})

		assert.Error(t, err)
		assert.Equal(t, 3, attempts)
	})
}

func TestRetryExponentialBackoff(t *testing.T) {
	attempts := 0
	delays := []time.Duration{}
	startTime := time.Now()

	policy := transport.RetryPolicy{MaxRetries: 4, InitialDelay: 50 * time.Millisecond}
	err := policy.Do(context.Background(), retryLogger(), "test", func() error {
		if attempts > 0 {
			delays = append(delays, time.Since(startTime))
		}
		startTime = time.Now()
		attempts++
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 4, attempts)
	assert.Len(t, delays, 3)

	// Verify exponential backoff: 50ms, 100ms, 200ms
	assert.GreaterOrEqual(t, delays[0], 50*time.Millisecond)
	assert.Less(t, delays[0], 90*time.Millisecond)

	assert.GreaterOrEqual(t, delays[1], 100*time.Millisecond)
	assert.Less(t, delays[1], 150*time.Millisecond)

	assert.GreaterOrEqual(t, delays[2], 200*time.Millisecond)
	assert.Less(t, delays[2], 260*time.Millisecond)
}
