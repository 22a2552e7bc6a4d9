package snatchlib

import "errors"

var (
	// ErrCancelled is reported by executors when a transfer stops
	// because its cancellation token was set.
	ErrCancelled = errors.New("download cancelled")

	// ErrInvalidCron rejects a recurring schedule with a malformed
	// cron expression.
	ErrInvalidCron = errors.New("invalid cron expression")
)
