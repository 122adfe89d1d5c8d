package helpers

import (
	"context"
	"time"
)

// RetryPolicy bounds how often and how patiently an operation is retried.
// The zero value makes a single attempt.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64 // <= 1 keeps the delay fixed
	MaxDelay    time.Duration

	// Retryable decides whether an error is worth another attempt. nil retries everything.
	Retryable func(error) bool

	// Sleep waits between attempts; tests swap it out. nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempt
// budget is spent or ctx is done. It returns the number of attempts made and
// the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := p.Delay
	var err error
	attempts := 0
	for attempts < maxAttempts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return attempts, err
		}

		attempts++
		err = fn(ctx)
		if err == nil {
			return attempts, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return attempts, err
		}
		if attempts == maxAttempts {
			break
		}

		if delay > 0 {
			if sleepErr := sleep(ctx, delay); sleepErr != nil {
				return attempts, err
			}
		}
		delay = p.next(delay)
	}
	return attempts, err
}

func (p RetryPolicy) next(delay time.Duration) time.Duration {
	if p.Multiplier <= 1 {
		return delay
	}
	next := time.Duration(float64(delay) * p.Multiplier)
	if p.MaxDelay > 0 && next > p.MaxDelay {
		return p.MaxDelay
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
