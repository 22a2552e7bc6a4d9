package snatchlib

import "sync"

// CancelToken signals a running transfer to stop. Cancellation is
// cooperative: the executor must poll the token at chunk or I/O
// boundaries and stop promptly once it is set. The token is also
// exposed as a channel for select-based waits.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken creates an unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel sets the token. Idempotent.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether the token is set.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is set.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}
