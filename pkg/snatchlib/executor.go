package snatchlib

// ProgressFunc is invoked periodically by the executor during a transfer
// with the bytes downloaded so far and the total size (0 when unknown).
type ProgressFunc func(downloaded, total int64)

// Outcome is the result of one transfer attempt.
type Outcome struct {
	// BytesTransferred is the number of bytes moved before the attempt
	// ended, successfully or not.
	BytesTransferred int64
	// Err is nil on success. Any non-nil error is routed through the
	// retry controller, never propagated to the scheduling caller.
	Err error
}

// Executor performs the actual transfer for a dispatched task. The
// scheduling engine does not interpret the task's url or options; it
// only supplies the granted rate (bytes/sec, 0 = unlimited), a progress
// callback, and a cancellation token the executor must poll at chunk
// boundaries. Connection and read timeouts are the executor's concern;
// a timeout surfaces as an ordinary failed Outcome.
type Executor interface {
	Execute(task TaskSnapshot, rate int64, progress ProgressFunc, token *CancelToken) Outcome
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(task TaskSnapshot, rate int64, progress ProgressFunc, token *CancelToken) Outcome

// Execute calls f.
func (f ExecutorFunc) Execute(task TaskSnapshot, rate int64, progress ProgressFunc, token *CancelToken) Outcome {
	return f(task, rate, progress, token)
}
