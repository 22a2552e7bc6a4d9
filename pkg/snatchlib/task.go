package snatchlib

import "time"

// Priority is the dispatch priority of a task. Lower values are more
// urgent; the zero value is PriorityUrgent.
type Priority int

const (
	// PriorityUrgent is dispatched before everything else.
	PriorityUrgent Priority = iota
	// PriorityHigh is dispatched before normal traffic.
	PriorityHigh
	// PriorityNormal is the default priority.
	PriorityNormal
	// PriorityLow yields to normal traffic.
	PriorityLow
	// PriorityBackground is dispatched only when nothing else waits.
	PriorityBackground
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of a task.
type Status string

const (
	// StatusPending means the task waits in the queue for dispatch.
	StatusPending Status = "pending"
	// StatusDownloading means the task runs against the executor.
	StatusDownloading Status = "downloading"
	// StatusCompleted means the transfer finished successfully. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means retries are exhausted. Terminal.
	StatusFailed Status = "failed"
	// StatusPaused means the transfer was suspended by the caller.
	StatusPaused Status = "paused"
	// StatusCancelled means the task was cancelled. Terminal.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further automatic transition can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task is one scheduled download tracked by the Scheduler. All fields are
// mutated only while holding the owning Scheduler's lock; external callers
// only ever see TaskSnapshot copies.
type Task struct {
	// Id is the unique identifier, assigned at creation.
	Id string
	// Url is the transfer source, opaque to the scheduler.
	Url string
	// Options is an opaque payload handed to the executor untouched.
	Options map[string]string
	// Priority is fixed at creation.
	Priority Priority
	// ScheduledAt is the earliest dispatch time. Zero means eligible
	// immediately. The retry controller moves it forward on backoff.
	ScheduledAt time.Time
	// CronExpr, when non-empty, makes the task recurring: after a
	// successful run it is re-queued for the next cron occurrence.
	CronExpr string

	Status Status

	RetryCount int
	MaxRetries int

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	ErrorMessage string

	// EstimatedSize, Downloaded and Progress are written only from the
	// executor's progress reports.
	EstimatedSize int64
	Downloaded    int64
	Progress      float64

	// GrantedRate is the bandwidth grant of the current attempt, in
	// bytes per second. Zero when not downloading or unlimited.
	GrantedRate int64
}

// TaskSnapshot is a value copy of a Task at one moment, safe to hand to
// observers and API callers.
type TaskSnapshot struct {
	Id            string            `json:"id"`
	Url           string            `json:"url"`
	Options       map[string]string `json:"options,omitempty"`
	Priority      Priority          `json:"priority"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	CronExpr      string            `json:"cron_expr,omitempty"`
	Status        Status            `json:"status"`
	RetryCount    int               `json:"retry_count"`
	MaxRetries    int               `json:"max_retries"`
	CreatedAt     time.Time         `json:"created_at"`
	StartedAt     time.Time         `json:"started_at"`
	CompletedAt   time.Time         `json:"completed_at"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	EstimatedSize int64             `json:"estimated_size"`
	Downloaded    int64             `json:"downloaded"`
	Progress      float64           `json:"progress"`
	GrantedRate   int64             `json:"granted_rate"`
}

// snapshot copies the task. Caller must hold the scheduler lock.
func (t *Task) snapshot() TaskSnapshot {
	var opts map[string]string
	if t.Options != nil {
		opts = make(map[string]string, len(t.Options))
		for k, v := range t.Options {
			opts[k] = v
		}
	}
	return TaskSnapshot{
		Id:            t.Id,
		Url:           t.Url,
		Options:       opts,
		Priority:      t.Priority,
		ScheduledAt:   t.ScheduledAt,
		CronExpr:      t.CronExpr,
		Status:        t.Status,
		RetryCount:    t.RetryCount,
		MaxRetries:    t.MaxRetries,
		CreatedAt:     t.CreatedAt,
		StartedAt:     t.StartedAt,
		CompletedAt:   t.CompletedAt,
		ErrorMessage:  t.ErrorMessage,
		EstimatedSize: t.EstimatedSize,
		Downloaded:    t.Downloaded,
		Progress:      t.Progress,
		GrantedRate:   t.GrantedRate,
	}
}

// effectiveTime is the timestamp used for queue ordering ties:
// the scheduled time when set, the creation time otherwise.
func (t *Task) effectiveTime() time.Time {
	if !t.ScheduledAt.IsZero() {
		return t.ScheduledAt
	}
	return t.CreatedAt
}
