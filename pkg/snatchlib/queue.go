package snatchlib

import (
	"container/heap"
	"time"
)

// queueEntry is one queued task. The seq field keeps the ordering stable:
// two tasks with identical priority and timestamp dispatch in insertion
// order. The at field is frozen at push time so heap invariants cannot be
// violated by later field writes.
type queueEntry struct {
	task *Task
	at   time.Time
	seq  uint64
}

// tombstoned reports whether the entry was logically removed
// (cancelled in place) and should be skipped on pop.
func (e queueEntry) tombstoned() bool {
	return e.task.Status != StatusPending
}

// waitHeap orders entries by trigger time (earliest first). It holds
// tasks whose scheduled time has not arrived yet.
type waitHeap []queueEntry

func (h waitHeap) Len() int { return len(h) }
func (h waitHeap) Less(i, j int) bool {
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	return h[i].seq < h[j].seq
}
func (h waitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *waitHeap) Push(x any) { *h = append(*h, x.(queueEntry)) }

func (h *waitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// readyHeap orders entries by the dispatch relation: priority ascending,
// then effective time ascending, then insertion sequence.
type readyHeap []queueEntry

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	return h[i].seq < h[j].seq
}
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) { *h = append(*h, x.(queueEntry)) }

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// taskQueue is the pending ordered set of the scheduler: a wait heap of
// tasks whose scheduled time is still in the future, feeding a ready heap
// ordered by the dispatch relation once that time arrives. Cancelled
// entries are tombstoned and skimmed off lazily on peek/pop.
//
// taskQueue is not safe for concurrent use; the Scheduler serializes
// access under its own lock.
type taskQueue struct {
	ready   readyHeap
	waiting waitHeap
	seq     uint64
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	heap.Init(&q.ready)
	heap.Init(&q.waiting)
	return q
}

// push inserts a pending task, routing it to the wait heap when its
// scheduled time lies beyond now.
func (q *taskQueue) push(t *Task, now time.Time) {
	q.seq++
	e := queueEntry{task: t, at: t.effectiveTime(), seq: q.seq}
	if !t.ScheduledAt.IsZero() && t.ScheduledAt.After(now) {
		heap.Push(&q.waiting, e)
		return
	}
	heap.Push(&q.ready, e)
}

// promote moves every entry whose trigger time has arrived from the wait
// heap into the ready heap, dropping tombstones on the way.
func (q *taskQueue) promote(now time.Time) {
	for q.waiting.Len() > 0 && !q.waiting[0].at.After(now) {
		e := heap.Pop(&q.waiting).(queueEntry)
		if e.tombstoned() {
			continue
		}
		heap.Push(&q.ready, e)
	}
}

// peekEligible returns the highest-priority eligible pending task without
// removing it, or nil when none is eligible.
func (q *taskQueue) peekEligible(now time.Time) *Task {
	q.promote(now)
	for q.ready.Len() > 0 {
		if q.ready[0].tombstoned() {
			heap.Pop(&q.ready)
			continue
		}
		return q.ready[0].task
	}
	return nil
}

// popEligible removes and returns the highest-priority eligible pending
// task, or nil when none is eligible.
func (q *taskQueue) popEligible(now time.Time) *Task {
	if q.peekEligible(now) == nil {
		return nil
	}
	return heap.Pop(&q.ready).(queueEntry).task
}

// len counts queued entries, tombstones excluded.
func (q *taskQueue) len() int {
	var n int
	for _, e := range q.ready {
		if !e.tombstoned() {
			n++
		}
	}
	for _, e := range q.waiting {
		if !e.tombstoned() {
			n++
		}
	}
	return n
}
