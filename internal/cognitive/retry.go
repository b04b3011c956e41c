package cognitive

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how failed attempts are retried with exponential backoff.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns a RetryPolicy with 5 retries, 100ms initial
// delay, 2x multiplier and 10s max delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     10 * time.Second,
	}
}

// Exhausted reports whether a failure of the given attempt (1-indexed) ends
// the retry loop.
func (p *RetryPolicy) Exhausted(attempt int) bool {
	return attempt > p.MaxRetries
}

// NewBackOff returns a fresh delay generator for one generation.
// Delays grow as InitialDelay * Multiplier^(n-1), capped at MaxDelay, without jitter.
func (p *RetryPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
