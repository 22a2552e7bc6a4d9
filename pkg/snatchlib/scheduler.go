package snatchlib

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/snatchdl/snatch/pkg/logger"
)

// Default scheduler configuration values.
const (
	DefMaxConcurrent = 3
	DefTickInterval  = time.Second
	DefPanicCooldown = 2 * time.Second
)

// Config configures a Scheduler. The zero value of each field is
// replaced by the corresponding default in New.
type Config struct {
	// MaxConcurrent bounds the number of simultaneously running tasks.
	MaxConcurrent int
	// TickInterval is the scheduler loop interval.
	TickInterval time.Duration
	// PanicCooldown is how long the loop pauses after a recovered
	// tick-level panic before continuing.
	PanicCooldown time.Duration
	// BandwidthCap is the global transfer-rate cap in bytes per second.
	// 0 means unlimited.
	BandwidthCap int64
	// Retry controls the backoff of failed tasks and the default
	// MaxRetries stamped on new tasks.
	Retry RetryPolicy
	// Logger receives scheduler diagnostics. Defaults to NopLogger.
	Logger logger.Logger
}

// activeHandle tracks one dispatched task and the token used to stop it.
type activeHandle struct {
	task  *Task
	token *CancelToken
}

// Scheduler coordinates queued downloads: on each tick it promotes
// eligible pending tasks into running ones up to the concurrency limit,
// grants each a bandwidth budget, dispatches it against the Executor in
// its own goroutine and routes the outcome through the retry controller
// and the event bus.
//
// All task state lives behind one mutex; events are always published
// outside of it so observers may call back into the Scheduler.
type Scheduler struct {
	cfg  Config
	log  logger.Logger
	exec Executor
	bus  *EventBus
	bw   *BandwidthAllocator
	cron *gronx.Gronx

	mu        sync.Mutex
	tasks     map[string]*Task
	queue     *taskQueue
	active    map[string]*activeHandle
	completed map[string]*Task
	failed    map[string]*Task
	running   bool
	stopCh    chan struct{}

	loopWg sync.WaitGroup
	taskWg sync.WaitGroup
}

// New creates a Scheduler delegating transfers to exec. A nil cfg uses
// all defaults. The scheduler does not dispatch until Start is called.
func New(exec Executor, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefMaxConcurrent
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefTickInterval
	}
	if c.PanicCooldown <= 0 {
		c.PanicCooldown = DefPanicCooldown
	}
	if c.Retry == (RetryPolicy{}) {
		c.Retry = DefaultRetryPolicy()
	}
	if c.Logger == nil {
		c.Logger = logger.NewNopLogger()
	}
	return &Scheduler{
		cfg:       c,
		log:       c.Logger,
		exec:      exec,
		bus:       NewEventBus(c.Logger),
		bw:        NewBandwidthAllocator(c.BandwidthCap),
		cron:      gronx.New(),
		tasks:     make(map[string]*Task),
		queue:     newTaskQueue(),
		active:    make(map[string]*activeHandle),
		completed: make(map[string]*Task),
		failed:    make(map[string]*Task),
	}
}

// Start launches the scheduler loop. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.loopWg.Add(1)
	safeGo(s.log, &s.loopWg, "scheduler loop", nil, s.run)
	s.log.Info("scheduler started (max_concurrent=%d, tick=%s)",
		s.cfg.MaxConcurrent, s.cfg.TickInterval)
}

// Stop halts dispatching and waits for the loop goroutine to exit.
// Already-running transfers are not interrupted; their outcomes are
// still recorded. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()
	s.loopWg.Wait()
	s.log.Info("scheduler stopped")
}

// Shutdown cancels every running transfer, stops the loop and waits for
// all task goroutines to return.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for id, h := range s.active {
		h.token.Cancel()
		s.bw.Release(id)
		h.task.Status = StatusCancelled
		h.task.GrantedRate = 0
		delete(s.active, id)
	}
	s.mu.Unlock()
	s.Stop()
	s.taskWg.Wait()
}

// On registers an observer for the given event kind. Observers receive
// a snapshot of the task at the moment of the event.
func (s *Scheduler) On(kind EventKind, fn ObserverFunc) {
	s.bus.Subscribe(kind, fn)
}

// Schedule creates a task for url and inserts it into the queue.
// options is an opaque payload for the executor. A zero scheduledAt
// makes the task eligible immediately; a future one defers dispatch.
// The returned id addresses the task in all other calls.
func (s *Scheduler) Schedule(url string, options map[string]string, priority Priority, scheduledAt time.Time) string {
	now := time.Now()
	t := &Task{
		Id:          uuid.NewString(),
		Url:         url,
		Options:     options,
		Priority:    priority,
		ScheduledAt: scheduledAt,
		Status:      StatusPending,
		MaxRetries:  s.cfg.Retry.MaxRetries,
		CreatedAt:   now,
	}
	s.mu.Lock()
	s.tasks[t.Id] = t
	s.queue.push(t, now)
	s.mu.Unlock()
	s.log.Info("scheduled %s (priority=%s, id=%s)", url, priority, t.Id)
	return t.Id
}

// ScheduleRecurring creates a recurring task that runs at every
// occurrence of cronExpr: after each successful transfer the task is
// re-queued for the next occurrence.
func (s *Scheduler) ScheduleRecurring(url string, options map[string]string, priority Priority, cronExpr string) (string, error) {
	if !s.cron.IsValid(cronExpr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCron, cronExpr)
	}
	now := time.Now()
	next, err := gronx.NextTickAfter(cronExpr, now, false)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidCron, cronExpr, err)
	}
	t := &Task{
		Id:          uuid.NewString(),
		Url:         url,
		Options:     options,
		Priority:    priority,
		ScheduledAt: next,
		CronExpr:    cronExpr,
		Status:      StatusPending,
		MaxRetries:  s.cfg.Retry.MaxRetries,
		CreatedAt:   now,
	}
	s.mu.Lock()
	s.tasks[t.Id] = t
	s.queue.push(t, now)
	s.mu.Unlock()
	s.log.Info("scheduled recurring %s (cron=%q, next=%s, id=%s)", url, cronExpr, next, t.Id)
	return t.Id, nil
}

// Cancel cancels the task with the given id. A running task's execution
// unit is signalled to stop and its bandwidth grant released; a queued
// task is tombstoned in place. Returns false when the id is unknown or
// the task is already terminal (a second Cancel is a no-op).
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	switch t.Status {
	case StatusDownloading:
		h := s.active[id]
		if h != nil {
			h.token.Cancel()
			delete(s.active, id)
		}
		s.bw.Release(id)
		t.GrantedRate = 0
		t.Status = StatusCancelled
	case StatusPending, StatusPaused:
		t.Status = StatusCancelled
	default:
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	s.log.Info("cancelled task %s", id)
	return true
}

// Pause suspends a running task: the execution unit is stopped and the
// bandwidth grant released, but the task can re-enter the queue via
// Resume. Only valid while Downloading.
func (s *Scheduler) Pause(id string) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok || t.Status != StatusDownloading {
		s.mu.Unlock()
		return false
	}
	h := s.active[id]
	if h != nil {
		h.token.Cancel()
		delete(s.active, id)
	}
	s.bw.Release(id)
	t.GrantedRate = 0
	t.Status = StatusPaused
	s.mu.Unlock()
	s.log.Info("paused task %s", id)
	return true
}

// Resume re-queues a paused task. The task becomes Pending and goes
// through normal eligibility evaluation; it does not jump straight back
// to Downloading. Only valid while Paused.
func (s *Scheduler) Resume(id string) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok || t.Status != StatusPaused {
		s.mu.Unlock()
		return false
	}
	t.Status = StatusPending
	t.ScheduledAt = time.Time{}
	s.queue.push(t, time.Now())
	s.mu.Unlock()
	s.log.Info("resumed task %s", id)
	return true
}

// QueueStatus is an aggregate view of the scheduler state.
type QueueStatus struct {
	QueueLength int               `json:"queue_length"`
	Pending     int               `json:"pending_count"`
	Paused      int               `json:"paused_count"`
	Active      int               `json:"active_count"`
	Completed   int               `json:"completed_count"`
	Failed      int               `json:"failed_count"`
	Bandwidth   BandwidthSnapshot `json:"bandwidth"`
	Running     bool              `json:"is_running"`
}

// Status returns current queue counters and a bandwidth snapshot.
func (s *Scheduler) Status() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := QueueStatus{
		QueueLength: s.queue.len(),
		Active:      len(s.active),
		Completed:   len(s.completed),
		Failed:      len(s.failed),
		Bandwidth:   s.bw.Snapshot(),
		Running:     s.running,
	}
	for _, t := range s.tasks {
		switch t.Status {
		case StatusPending:
			st.Pending++
		case StatusPaused:
			st.Paused++
		}
	}
	return st
}

// DownloadInfo returns a snapshot of the task with the given id.
func (s *Scheduler) DownloadInfo(id string) (TaskSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return TaskSnapshot{}, false
	}
	return t.snapshot(), true
}

// run is the scheduler loop goroutine.
func (s *Scheduler) run() {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick runs one dispatch round. A panic anywhere below is recovered and
// logged, and the loop continues after a short cooldown instead of
// taking the process down.
func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler tick panic: %v\n%s", r, debug.Stack())
			time.Sleep(s.cfg.PanicCooldown)
		}
	}()
	s.dispatch()
}

// dispatch promotes eligible pending tasks into running ones while
// capacity remains. The bandwidth request is the equal-share heuristic
// cap / max_concurrent; a partial or zero grant still dispatches, the
// executor runs at the reduced rate.
func (s *Scheduler) dispatch() {
	now := time.Now()
	var started []TaskSnapshot

	s.mu.Lock()
	for len(s.active) < s.cfg.MaxConcurrent {
		t := s.queue.popEligible(now)
		if t == nil {
			break
		}
		var share int64
		if limit := s.bw.Cap(); limit > 0 {
			share = limit / int64(s.cfg.MaxConcurrent)
		}
		t.GrantedRate = s.bw.Allocate(t.Id, share)
		t.Status = StatusDownloading
		if t.StartedAt.IsZero() {
			t.StartedAt = now
		}
		h := &activeHandle{task: t, token: NewCancelToken()}
		s.active[t.Id] = h
		snap := t.snapshot()
		started = append(started, snap)
		s.spawn(h, snap)
	}
	s.mu.Unlock()

	for _, snap := range started {
		s.bus.Publish(EventStarted, snap)
	}
}

// spawn runs the dispatched task against the executor in its own
// goroutine. Caller must hold s.mu.
func (s *Scheduler) spawn(h *activeHandle, snap TaskSnapshot) {
	id := snap.Id
	rate := snap.GrantedRate
	progress := func(downloaded, total int64) {
		s.reportProgress(id, downloaded, total)
	}
	s.taskWg.Add(1)
	safeGo(s.log, &s.taskWg, "task "+id, func(r interface{}) {
		s.finish(id, h, Outcome{Err: fmt.Errorf("executor panic: %v", r)})
	}, func() {
		outcome := s.exec.Execute(snap, rate, progress, h.token)
		s.finish(id, h, outcome)
	})
}

// reportProgress records an executor progress report and publishes the
// Progress event. Reports arriving after the task left the active map
// (pause/cancel races) are dropped.
func (s *Scheduler) reportProgress(id string, downloaded, total int64) {
	s.mu.Lock()
	h, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	t := h.task
	t.Downloaded = downloaded
	if total > 0 {
		t.EstimatedSize = total
		p := float64(downloaded) / float64(total)
		if p > 1 {
			p = 1
		}
		t.Progress = p
	}
	snap := t.snapshot()
	s.mu.Unlock()
	s.bus.Publish(EventProgress, snap)
}

// finish routes a transfer outcome: success moves the task to the
// completed map (or re-queues a recurring one), failure goes through
// the retry controller. Outcomes for tasks no longer in the active map
// (paused or cancelled mid-flight) are discarded; the control path has
// already released the bandwidth grant.
func (s *Scheduler) finish(id string, h *activeHandle, outcome Outcome) {
	now := time.Now()

	s.mu.Lock()
	cur, ok := s.active[id]
	if !ok || cur != h {
		s.mu.Unlock()
		return
	}
	delete(s.active, id)
	s.bw.Release(id)
	t := h.task
	t.GrantedRate = 0

	if outcome.Err == nil {
		if outcome.BytesTransferred > 0 {
			t.Downloaded = outcome.BytesTransferred
		}
		t.Progress = 1.0
		t.Status = StatusCompleted
		t.CompletedAt = now
		snap := t.snapshot()
		if t.CronExpr != "" {
			s.requeueRecurring(t, now)
		} else {
			s.completed[id] = t
		}
		s.mu.Unlock()
		s.log.Info("task %s completed (%d bytes)", id, snap.Downloaded)
		s.bus.Publish(EventCompleted, snap)
		return
	}

	if t.RetryCount < t.MaxRetries {
		t.RetryCount++
		delay := s.cfg.Retry.Backoff(t.RetryCount)
		t.ScheduledAt = now.Add(delay)
		t.Status = StatusPending
		t.ErrorMessage = outcome.Err.Error()
		s.queue.push(t, now)
		attempt, limit := t.RetryCount, t.MaxRetries
		s.mu.Unlock()
		s.log.Warning("task %s failed, retry %d/%d in %s: %v",
			id, attempt, limit, delay, outcome.Err)
		return
	}

	t.Status = StatusFailed
	t.ErrorMessage = outcome.Err.Error()
	s.failed[id] = t
	snap := t.snapshot()
	s.mu.Unlock()
	s.log.Error("task %s failed permanently: %v", id, outcome.Err)
	s.bus.Publish(EventFailed, snap)
}

// requeueRecurring resets a recurring task for its next cron occurrence.
// Caller must hold s.mu.
func (s *Scheduler) requeueRecurring(t *Task, now time.Time) {
	next, err := gronx.NextTickAfter(t.CronExpr, now, false)
	if err != nil {
		// Expression was valid at schedule time; treat the task as
		// one-shot from here on.
		s.completed[t.Id] = t
		return
	}
	t.Status = StatusPending
	t.ScheduledAt = next
	t.RetryCount = 0
	t.Downloaded = 0
	t.Progress = 0
	t.ErrorMessage = ""
	s.queue.push(t, now)
}
