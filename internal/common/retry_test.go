package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hbenedict/airlock/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps test backoff in the microsecond range.
var fastRetry = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Microsecond,
	MaxDelay:     time.Millisecond,
}

func retryable(err error) error {
	return &RetryableError{Err: err, Retryable: true}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return nil
	}, fastRetry)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRecoversFromTransientError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return retryable(errors.New("database is locked"))
		}
		return nil
	}, fastRetry)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryDoesNotRetryPlainErrors(t *testing.T) {
	boom := errors.New("constraint violation")
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return boom
	}, fastRetry)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetryHonorsNonRetryableFlag(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return &RetryableError{Err: errors.New("corrupt page"), Retryable: false}
	}, fastRetry)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return retryable(errors.New("database is locked"))
	}, fastRetry)
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		cancel()
		return retryable(errors.New("database is locked"))
	}, fastRetry)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(retryable(errors.New("busy"))))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("busy"), Retryable: false}))
	assert.False(t, IsRetryable(errors.New("busy")))

	// Cancellation is final, even when wrapped as retryable.
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(retryable(context.Canceled)))
}

func TestWithRetryDoesNotRetryCancellation(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return retryable(context.Canceled)
	}, fastRetry)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
