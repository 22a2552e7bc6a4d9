package snatchlib

import (
	"math"
	"math/rand"
	"time"
)

// Default retry configuration values.
const (
	DefMaxRetries    = 3
	DefBaseDelay     = 5 * time.Second
	DefMaxDelay      = 5 * time.Minute
	DefBackoffFactor = 2.0
)

// RetryPolicy controls how failed tasks are re-queued. Exponential
// backoff spaces out repeated attempts against a still-failing endpoint;
// MaxRetries bounds total attempts so a permanently broken source does
// not retry forever.
type RetryPolicy struct {
	// MaxRetries is the number of re-attempts after the first failure.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
	// BackoffFactor is the exponential multiplier between attempts.
	BackoffFactor float64
	// JitterFactor randomizes the delay by up to ±JitterFactor of its
	// value (0 disables jitter).
	JitterFactor float64
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    DefMaxRetries,
		BaseDelay:     DefBaseDelay,
		MaxDelay:      DefMaxDelay,
		BackoffFactor: DefBackoffFactor,
	}
}

// Backoff computes the delay before retry attempt number attempt
// (1-based): BaseDelay * BackoffFactor^(attempt-1), jittered and capped
// at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))

	if p.JitterFactor > 0 {
		jitter := p.JitterFactor * (2*rand.Float64() - 1) // in [-1, 1]
		delay *= 1 + jitter
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay < 0 {
		delay = float64(p.BaseDelay)
	}
	return time.Duration(delay)
}
