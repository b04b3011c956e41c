package cognitive

import (
	"context"
	"testing"
	"time"
)

func TestRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.Exhausted(5) {
		t.Error("5th failure should still be retried")
	}
	if !policy.Exhausted(6) {
		t.Error("should not retry after max retries")
	}

	bo := policy.NewBackOff()
	for i, want := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond} {
		if got := bo.NextBackOff(); got != want {
			t.Errorf("delay %d: expected %v, got %v", i+1, want, got)
		}
	}
}

func TestRetryPolicyMaxDelayCap(t *testing.T) {
	policy := &RetryPolicy{
		MaxRetries:   10,
		InitialDelay: 1 * time.Second,
		Multiplier:   10.0,
		MaxDelay:     5 * time.Second,
	}

	bo := policy.NewBackOff()
	bo.NextBackOff()
	for i := 0; i < 3; i++ {
		if delay := bo.NextBackOff(); delay != policy.MaxDelay {
			t.Errorf("expected delay capped at %v, got %v", policy.MaxDelay, delay)
		}
	}
}

func TestRetryPolicyFreshBackOff(t *testing.T) {
	policy := &RetryPolicy{InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: time.Second}

	first := policy.NewBackOff()
	first.NextBackOff()
	first.NextBackOff()

	if got := policy.NewBackOff().NextBackOff(); got != time.Millisecond {
		t.Errorf("new backoff should start at the initial delay, got %v", got)
	}
}

func TestSleepInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := sleep(ctx, time.Minute); err == nil {
		t.Error("expected error from cancelled sleep")
	}
	if time.Since(start) > time.Second {
		t.Error("sleep should return as soon as the context is done")
	}
}

func TestSleepCompletes(t *testing.T) {
	if err := sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
