// Package snatchlib implements the snatch download scheduling engine:
// a priority-ordered task queue, a global bandwidth allocator, an
// exponential retry/backoff controller, and a typed event bus, all
// coordinated by a single-goroutine scheduler loop.
//
// The engine decides which queued transfers run, how much transfer-rate
// budget each receives, and how failures are retried. Moving the bytes
// is delegated to an Executor implementation (see internal/httpexec for
// the HTTP one); the engine never touches the network itself and owns
// no wire or on-disk format.
package snatchlib
