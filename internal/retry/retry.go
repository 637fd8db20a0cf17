// Package retry implements the generic bounded exponential-backoff-with-
// jitter retry engine every upstream call is wrapped in, plus the
// per-service strategies that decide whether a given failure is worth
// retrying at all.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/wisbric/corpreg/internal/typederror"
)

// Strategy decides, per upstream error, whether a retry is permitted.
type Strategy interface {
	CanRetry(err *typederror.Error) bool
}

// Config parameterizes one Do invocation.
type Config struct {
	MaxRetries      int
	InitialDelayMs  int
	CorrelationID   string
}

const maxDelay = 5000 * time.Millisecond

// Op is a single suspendable attempt.
type Op func(ctx context.Context) (any, *typederror.Error)

// Do executes op, retrying per strategy and cfg until it succeeds, the
// retries are exhausted, or ctx is cancelled. On cancellation during a
// backoff sleep, it returns immediately with the last observed error, or a
// synthesized Timeout error if none exists yet.
func Do(ctx context.Context, cfg Config, strategy Strategy, op Op) (any, *typederror.Error) {
	var lastErr *typederror.Error

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= cfg.MaxRetries || !strategy.CanRetry(err) {
			return nil, lastErr
		}

		delay := backoff(attempt, cfg.InitialDelayMs)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, cancelledError(lastErr)
		case <-timer.C:
		}
	}
}

// backoff computes min(initial*2^attempt + jitter, 5000ms) with jitter in
// [-10%,+10%] of the exponential term.
func backoff(attempt int, initialMs int) time.Duration {
	exp := float64(initialMs) * float64(uint(1)<<uint(attempt))
	jitter := exp * (rand.Float64()*0.2 - 0.1)
	d := time.Duration(exp+jitter) * time.Millisecond
	if d > maxDelay {
		return maxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}

func cancelledError(lastErr *typederror.Error) *typederror.Error {
	if lastErr != nil {
		return lastErr
	}
	return typederror.New(typederror.KindTimeout, "", "retry sleep cancelled by deadline")
}
