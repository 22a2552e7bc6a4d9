package snatchlib

import (
	"io"
	"sync"
	"time"
)

// ThrottleReader wraps an io.Reader and limits its read rate to a
// bandwidth grant using a token bucket. A rate of 0 or below means
// unthrottled pass-through, which is how a zero grant from the
// BandwidthAllocator degrades executors that still want to proceed.
//
// The bucket starts empty (no initial burst) and never accumulates
// more than one second worth of tokens.
type ThrottleReader struct {
	r  io.Reader
	mu sync.Mutex

	rate   int64 // bytes per second, <= 0 means unthrottled
	tokens int64
	last   time.Time
}

// NewThrottleReader wraps r with a rate limit of rate bytes per second.
func NewThrottleReader(r io.Reader, rate int64) *ThrottleReader {
	return &ThrottleReader{
		r:    r,
		rate: rate,
		last: time.Now(),
	}
}

// SetRate updates the rate limit. 0 or negative disables throttling.
func (t *ThrottleReader) SetRate(rate int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rate = rate
	if rate > 0 && t.tokens > rate {
		t.tokens = rate
	}
}

// Rate returns the current rate limit in bytes per second.
func (t *ThrottleReader) Rate() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate
}

// refill adds tokens for the time elapsed since the last refill,
// capped at one second worth. Caller must hold t.mu.
func (t *ThrottleReader) refill(now time.Time) {
	elapsed := now.Sub(t.last)
	t.last = now
	t.tokens += int64(float64(t.rate) * elapsed.Seconds())
	if t.tokens > t.rate {
		t.tokens = t.rate
	}
}

// Read implements io.Reader, sleeping as needed to keep the long-run
// rate at or below the configured limit.
func (t *ThrottleReader) Read(b []byte) (int, error) {
	t.mu.Lock()
	rate := t.rate
	if rate <= 0 {
		t.mu.Unlock()
		return t.r.Read(b)
	}

	t.refill(time.Now())

	want := int64(len(b))
	if want > rate {
		want = rate // never more than one second worth per read
	}
	if t.tokens < want {
		needed := want - t.tokens
		wait := time.Duration(float64(time.Second) * float64(needed) / float64(rate))
		if wait > 0 {
			t.mu.Unlock()
			time.Sleep(wait)
			t.mu.Lock()
			t.refill(time.Now())
		}
	}
	size := want
	if t.tokens > 0 && size > t.tokens {
		size = t.tokens
	}
	if size <= 0 {
		size = 1
	}
	t.mu.Unlock()

	// Actual read happens outside the lock.
	n, err := t.r.Read(b[:size])

	t.mu.Lock()
	t.tokens -= int64(n)
	t.mu.Unlock()
	return n, err
}
