package retry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scannote/scannote/internal/errs"
)

type countingRecorder struct {
	mu        sync.Mutex
	successes int
	failures  int
}

func (r *countingRecorder) RecordSuccess(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes++
}

func (r *countingRecorder) RecordFailure(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func fastPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		NonRetryable:  DefaultNonRetryable,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	rec := &countingRecorder{}
	calls := 0

	result, err := Do(context.Background(), testLogger(), rec, "op", fastPolicy(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rec.successes)
	assert.Equal(t, 0, rec.failures)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	rec := &countingRecorder{}
	calls := 0

	result, err := Do(context.Background(), testLogger(), rec, "op", fastPolicy(), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection reset")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
	// Exactly one terminal outcome regardless of attempt count.
	assert.Equal(t, 1, rec.successes)
	assert.Equal(t, 0, rec.failures)
}

func TestDoExhaustsRetries(t *testing.T) {
	rec := &countingRecorder{}
	calls := 0

	_, err := Do(context.Background(), testLogger(), rec, "op", fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("server unavailable")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls) // MaxRetries + 1

	var exhausted *errs.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.Equal(t, 0, rec.successes)
	assert.Equal(t, 1, rec.failures)
}

func TestDoFailsImmediatelyOnNonRetryable(t *testing.T) {
	cases := []string{
		"401 Unauthorized",
		"API key not valid. Please pass a valid API key.",
		"quota exceeded for this project",
		"unsupported format: .xyz",
	}

	for _, message := range cases {
		t.Run(message, func(t *testing.T) {
			rec := &countingRecorder{}
			calls := 0

			_, err := Do(context.Background(), testLogger(), rec, "op", fastPolicy(), func(context.Context) (int, error) {
				calls++
				return 0, errors.New(message)
			})

			require.Error(t, err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, 1, rec.failures)
		})
	}
}

func TestDoFailsImmediatelyOnPermanentError(t *testing.T) {
	rec := &countingRecorder{}
	calls := 0

	_, err := Do(context.Background(), testLogger(), rec, "op", fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, &errs.PermanentError{Op: "op", Err: errors.New("bad request")}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errs.IsPermanent(err))
}

func TestDoTimeoutIsRetryable(t *testing.T) {
	policy := fastPolicy()
	policy.MaxRetries = 1
	policy.Timeout = 5 * time.Millisecond

	var calls atomic.Int32
	_, err := Do(context.Background(), testLogger(), nil, "op", policy, func(ctx context.Context) (int, error) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond) // well past the 5ms budget
		return 1, nil
	})

	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load()) // the timeout was treated as transient

	var exhausted *errs.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	var transient *errs.TransientError
	assert.ErrorAs(t, exhausted.Last, &transient)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	policy := fastPolicy()
	policy.BaseDelay = time.Second // force the backoff branch to observe cancellation

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, testLogger(), nil, "op", policy, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("flaky")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryableClassification(t *testing.T) {
	assert.False(t, Retryable(nil, DefaultNonRetryable))
	assert.False(t, Retryable(errs.NewValidation("image", "missing"), DefaultNonRetryable))
	assert.False(t, Retryable(&errs.PermanentError{Op: "op", Err: errors.New("no")}, DefaultNonRetryable))
	assert.False(t, Retryable(errors.New("PERMISSION denied"), DefaultNonRetryable))
	assert.True(t, Retryable(errors.New("connection refused"), DefaultNonRetryable))
	assert.True(t, Retryable(&errs.TransientError{Op: "op", Err: errors.New("503")}, DefaultNonRetryable))
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	policy := Policy{
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	var previous time.Duration
	for attempt := 0; attempt < 6; attempt++ {
		delay := backoffDelay(policy, attempt)
		// Jitter adds at most 10%.
		assert.LessOrEqual(t, delay, time.Second+100*time.Millisecond)
		if attempt > 0 && attempt < 4 {
			assert.Greater(t, delay, previous/2) // growth dominates jitter
		}
		previous = delay
	}
}
