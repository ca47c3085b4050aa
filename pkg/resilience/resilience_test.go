package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryConfig{
	MaxAttempts:  4,
	InitialDelay: time.Millisecond,
	MaxDelay:     2 * time.Millisecond,
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "dial", fastRetry, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "dial", fastRetry, func() error {
		calls++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "all 4 attempts failed for dial")
}

func TestRetryPermanent(t *testing.T) {
	sentinel := errors.New("bad address")
	calls := 0
	err := Retry(context.Background(), "dial", fastRetry, func() error {
		calls++
		return Permanent(sentinel)
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "dial", fastRetry, func() error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAttemptsFor(t *testing.T) {
	n := AttemptsFor(time.Second, RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 100 * time.Millisecond})
	assert.GreaterOrEqual(t, n, 10)
	assert.Equal(t, 1, AttemptsFor(0, RetryConfig{}))
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "sink", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, WithTimeout(context.Background(), time.Second, "sink", func(context.Context) error { return nil }))
	require.NoError(t, WithTimeout(context.Background(), 0, "sink", func(context.Context) error { return nil }))
}

func TestWithTimeoutStepError(t *testing.T) {
	boom := errors.New("relation does not exist")
	err := WithTimeout(context.Background(), time.Second, "store matrix", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, apperrors.ErrTimeout)
	assert.Contains(t, err.Error(), "store matrix")
}

func TestWithTimeoutParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTimeout(ctx, time.Second, "publish run event", func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperrors.ErrTimeout)
}
