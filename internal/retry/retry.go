// Package retry wraps operations with bounded retries, exponential backoff with
// jitter, error classification and a timeout race so a hung network call cannot
// block a request indefinitely.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scannote/scannote/internal/errs"
)

// Policy controls retry behaviour for a single client. It is configured once
// per client and constant for the client's lifetime.
type Policy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Timeout       time.Duration
	NonRetryable  []string
}

// DefaultNonRetryable lists the error-message substrings that mark a failure
// as permanent. Matching is case-insensitive.
var DefaultNonRetryable = []string{
	"unauthorized",
	"unauthenticated",
	"invalid api key",
	"api key not valid",
	"quota",
	"billing",
	"permission",
	"unsupported format",
	"invalid argument",
	"content policy",
}

// DefaultPolicy returns a conservative policy suitable for most network calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Timeout:       30 * time.Second,
		NonRetryable:  DefaultNonRetryable,
	}
}

// Recorder receives exactly one terminal outcome per Do call, never one per
// attempt.
type Recorder interface {
	RecordSuccess(op string)
	RecordFailure(op string)
}

// Do runs op up to p.MaxRetries+1 times. Validation and permanent errors fail
// immediately; everything else backs off and retries. The zero value of T is
// returned alongside any error.
func Do[T any](ctx context.Context, logger *logrus.Logger, rec Recorder, name string, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := runWithTimeout(ctx, p.Timeout, name, op)
		if err == nil {
			recordSuccess(rec, name)
			return result, nil
		}
		lastErr = err

		if !Retryable(err, p.NonRetryable) {
			logger.WithFields(logrus.Fields{
				"operation": name,
				"attempt":   attempt + 1,
			}).WithError(err).Debug("Non-retryable error, failing immediately")
			recordFailure(rec, name)
			return zero, err
		}

		if attempt == attempts-1 {
			break
		}

		delay := backoffDelay(p, attempt)
		logger.WithFields(logrus.Fields{
			"operation": name,
			"attempt":   attempt + 1,
			"delay":     delay.String(),
		}).WithError(err).Debug("Retrying after backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			recordFailure(rec, name)
			return zero, &errs.ExhaustedError{Op: name, Attempts: attempt + 1, Last: ctx.Err()}
		}
	}

	recordFailure(rec, name)
	return zero, &errs.ExhaustedError{Op: name, Attempts: attempts, Last: lastErr}
}

// Retryable classifies an error. Validation and permanent errors, and any
// error whose message contains one of the configured substrings, are not
// retried.
func Retryable(err error, nonRetryable []string) bool {
	if err == nil {
		return false
	}
	if errs.IsValidation(err) || errs.IsPermanent(err) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range nonRetryable {
		if strings.Contains(msg, strings.ToLower(marker)) {
			return false
		}
	}
	return true
}

// backoffDelay computes min(base * factor^attempt, max) plus up to 10% random
// jitter to avoid synchronised retry storms.
func backoffDelay(p Policy, attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 2.0
	}

	delay := time.Duration(float64(base) * math.Pow(factor, float64(attempt)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}

// runWithTimeout races op against a timer. On timeout the in-flight call is
// abandoned rather than interrupted; its eventual result is discarded.
func runWithTimeout[T any](ctx context.Context, timeout time.Duration, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if timeout <= 0 {
		return op(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result T
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := op(tctx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return zero, &errs.TransientError{Op: name, Err: context.DeadlineExceeded}
		}
		return zero, tctx.Err()
	}
}

func recordSuccess(rec Recorder, op string) {
	if rec != nil {
		rec.RecordSuccess(op)
	}
}

func recordFailure(rec Recorder, op string) {
	if rec != nil {
		rec.RecordFailure(op)
	}
}
