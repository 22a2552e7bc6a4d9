package snatchlib

import (
	"testing"
	"time"
)

func TestRetryPolicy_ExponentialBackoff(t *testing.T) {
	p := RetryPolicy{
		MaxRetries:    2,
		BaseDelay:     5 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{0, 5 * time.Second}, // clamped to attempt 1
	}
	for _, tc := range tests {
		if got := p.Backoff(tc.attempt); got != tc.want {
			t.Fatalf("Backoff(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestRetryPolicy_MaxDelayCap(t *testing.T) {
	p := RetryPolicy{
		BaseDelay:     time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 10,
	}
	if got := p.Backoff(5); got != 10*time.Second {
		t.Fatalf("Backoff(5) = %s, want cap %s", got, 10*time.Second)
	}
}

func TestRetryPolicy_JitterBounds(t *testing.T) {
	p := RetryPolicy{
		BaseDelay:     10 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
		JitterFactor:  0.5,
	}
	for i := 0; i < 100; i++ {
		got := p.Backoff(1)
		if got < 5*time.Second || got > 15*time.Second {
			t.Fatalf("jittered Backoff(1) = %s, want within [5s, 15s]", got)
		}
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != DefMaxRetries {
		t.Fatalf("MaxRetries = %d, want %d", p.MaxRetries, DefMaxRetries)
	}
	if p.BaseDelay != DefBaseDelay || p.MaxDelay != DefMaxDelay {
		t.Fatalf("delays = %s/%s, want %s/%s", p.BaseDelay, p.MaxDelay, DefBaseDelay, DefMaxDelay)
	}
	if p.BackoffFactor != DefBackoffFactor {
		t.Fatalf("BackoffFactor = %v, want %v", p.BackoffFactor, DefBackoffFactor)
	}
}
