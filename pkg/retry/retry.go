// Package retry runs an operation with capped exponential backoff and full jitter.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy configures Do. A zero MaxAttempts means a single attempt.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable reports whether err is worth another attempt. Nil means nothing is retried.
	Retryable func(error) bool
}

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

type exhaustedError struct {
	attempts int
	err      error
}

func (e *exhaustedError) Error() string {
	return ErrExhausted.Error() + ": " + e.err.Error()
}

func (e *exhaustedError) Unwrap() []error { return []error{ErrExhausted, e.err} }

// Do calls op until it succeeds, returns a non-retryable error, the context
// ends, or MaxAttempts is reached.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(p.Backoff(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), err)
		case <-timer.C:
		}
	}
	if attempts == 1 {
		return err
	}
	return &exhaustedError{attempts: attempts, err: err}
}

// Backoff returns the jittered delay before retry number attempt (0-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	ceiling := p.BaseDelay << uint(attempt)
	if ceiling <= 0 || (p.MaxDelay > 0 && ceiling > p.MaxDelay) {
		ceiling = p.MaxDelay
	}
	if ceiling <= 0 {
		return p.BaseDelay
	}
	return time.Duration(rand.Int64N(int64(ceiling)) + 1)
}
