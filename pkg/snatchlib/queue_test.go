package snatchlib

import (
	"testing"
	"time"
)

func queuedTask(id string, p Priority, created, scheduled time.Time) *Task {
	return &Task{
		Id:          id,
		Priority:    p,
		Status:      StatusPending,
		CreatedAt:   created,
		ScheduledAt: scheduled,
	}
}

// drain pops every eligible task at the given instant.
func drain(q *taskQueue, now time.Time) []string {
	var ids []string
	for {
		t := q.popEligible(now)
		if t == nil {
			return ids
		}
		ids = append(ids, t.Id)
	}
}

func TestTaskQueue_PriorityOrder(t *testing.T) {
	now := time.Now()
	q := newTaskQueue()
	q.push(queuedTask("low", PriorityLow, now, time.Time{}), now)
	q.push(queuedTask("urgent", PriorityUrgent, now, time.Time{}), now)
	q.push(queuedTask("background", PriorityBackground, now, time.Time{}), now)
	q.push(queuedTask("normal", PriorityNormal, now, time.Time{}), now)
	q.push(queuedTask("high", PriorityHigh, now, time.Time{}), now)

	got := drain(q, now)
	want := []string{"urgent", "high", "normal", "low", "background"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order %v, want %v", got, want)
		}
	}
}

func TestTaskQueue_TieBreakByEffectiveTime(t *testing.T) {
	now := time.Now()
	q := newTaskQueue()
	// Same priority: the older creation time dispatches first, and a
	// scheduled time takes over as the effective timestamp when set.
	q.push(queuedTask("younger", PriorityNormal, now.Add(-time.Minute), time.Time{}), now)
	q.push(queuedTask("older", PriorityNormal, now.Add(-2*time.Hour), time.Time{}), now)
	q.push(queuedTask("scheduled-early", PriorityNormal, now, now.Add(-3*time.Hour)), now)

	got := drain(q, now)
	want := []string{"scheduled-early", "older", "younger"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order %v, want %v", got, want)
		}
	}
}

func TestTaskQueue_StableForIdenticalKeys(t *testing.T) {
	now := time.Now()
	q := newTaskQueue()
	// Identical priority and timestamp: insertion order must hold.
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		q.push(queuedTask(id, PriorityNormal, now, time.Time{}), now)
	}
	got := drain(q, now)
	want := []string{"a", "b", "c", "d", "e"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order %v, want %v", got, want)
		}
	}
}

func TestTaskQueue_FutureTaskNotEligible(t *testing.T) {
	now := time.Now()
	q := newTaskQueue()
	q.push(queuedTask("later", PriorityUrgent, now, now.Add(time.Hour)), now)
	q.push(queuedTask("now", PriorityBackground, now, time.Time{}), now)

	// The urgent task is deferred, so the background one is next.
	if got := q.peekEligible(now); got == nil || got.Id != "now" {
		t.Fatalf("peekEligible = %v, want \"now\"", got)
	}
	if got := q.popEligible(now); got.Id != "now" {
		t.Fatalf("popEligible = %q, want \"now\"", got.Id)
	}
	if got := q.popEligible(now); got != nil {
		t.Fatalf("popEligible = %q, want nil before trigger time", got.Id)
	}

	// Once its time arrives it becomes eligible.
	future := now.Add(2 * time.Hour)
	if got := q.popEligible(future); got == nil || got.Id != "later" {
		t.Fatalf("popEligible after trigger = %v, want \"later\"", got)
	}
}

func TestTaskQueue_TombstoneSkippedOnPop(t *testing.T) {
	now := time.Now()
	q := newTaskQueue()
	first := queuedTask("first", PriorityNormal, now.Add(-time.Minute), time.Time{})
	second := queuedTask("second", PriorityNormal, now, time.Time{})
	q.push(first, now)
	q.push(second, now)

	// Cancel-in-place: the entry stays in the heap but is skipped.
	first.Status = StatusCancelled
	if q.len() != 1 {
		t.Fatalf("len = %d, want 1 after tombstoning", q.len())
	}
	if got := q.popEligible(now); got == nil || got.Id != "second" {
		t.Fatalf("popEligible = %v, want \"second\"", got)
	}
	if got := q.popEligible(now); got != nil {
		t.Fatalf("popEligible = %q, want nil", got.Id)
	}
}

func TestTaskQueue_TombstoneInWaitHeap(t *testing.T) {
	now := time.Now()
	q := newTaskQueue()
	deferred := queuedTask("deferred", PriorityNormal, now, now.Add(time.Minute))
	q.push(deferred, now)
	deferred.Status = StatusCancelled

	if got := q.popEligible(now.Add(2 * time.Minute)); got != nil {
		t.Fatalf("popEligible = %q, want nil for cancelled deferred task", got.Id)
	}
	if q.len() != 0 {
		t.Fatalf("len = %d, want 0", q.len())
	}
}
