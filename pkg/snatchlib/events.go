package snatchlib

import (
	"runtime/debug"
	"sync"

	"github.com/snatchdl/snatch/pkg/logger"
)

// EventKind identifies a task lifecycle event.
type EventKind int

const (
	// EventStarted fires when a task transitions to Downloading.
	EventStarted EventKind = iota
	// EventProgress fires on every executor progress report.
	EventProgress
	// EventCompleted fires when a transfer finishes successfully.
	EventCompleted
	// EventFailed fires when retries are exhausted.
	EventFailed
)

// String returns the lowercase name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ObserverFunc receives a snapshot of the task at the moment of the event.
type ObserverFunc func(snap TaskSnapshot)

// EventBus fans task lifecycle events out to registered observers.
// Dispatch is synchronous, best-effort and isolated: a panicking
// observer is recovered and logged without affecting delivery to the
// remaining observers or the scheduler loop.
type EventBus struct {
	log       logger.Logger
	mu        sync.RWMutex
	observers map[EventKind][]ObserverFunc
}

// NewEventBus creates an EventBus logging observer failures through l.
func NewEventBus(l logger.Logger) *EventBus {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &EventBus{
		log:       l,
		observers: make(map[EventKind][]ObserverFunc),
	}
}

// Subscribe registers fn for the given event kind. Safe to call
// concurrently with Publish.
func (b *EventBus) Subscribe(kind EventKind, fn ObserverFunc) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[kind] = append(b.observers[kind], fn)
}

// Publish delivers snap to every observer of kind, each invocation
// individually wrapped against panics.
func (b *EventBus) Publish(kind EventKind, snap TaskSnapshot) {
	b.mu.RLock()
	observers := b.observers[kind]
	b.mu.RUnlock()
	for _, fn := range observers {
		b.dispatch(kind, fn, snap)
	}
}

func (b *EventBus) dispatch(kind EventKind, fn ObserverFunc, snap TaskSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("observer panic on %s event for task %s: %v\n%s",
				kind, snap.Id, r, debug.Stack())
		}
	}()
	fn(snap)
}
