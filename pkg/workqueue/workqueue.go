package workqueue

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultNonThreadedBudget bounds how much queued work Maintain runs on
// the calling goroutine per invocation when no workers exist.
const defaultNonThreadedBudget = 5 * time.Millisecond

// WorkQueue executes tasks drawn from a shared priority-ordered queue
// on a bounded set of background workers. Its methods may be called
// from any goroutine; Pause, Resume, Drain and Maintain are expected to
// be driven by a single host goroutine.
type WorkQueue interface {
	// CreateWorkers starts n background workers. It is a one-time
	// operation: other components may size themselves off the worker
	// count, so calling it again once workers exist is a no-op. A
	// count of zero or less leaves the queue in synchronous mode,
	// where Maintain and Drain run work on the calling goroutine.
	CreateWorkers(n int)

	// GetFreeTask returns an inert task from the internal pool,
	// allocating one if the pool is empty. Tasks obtained here are
	// recycled automatically once completed and purged.
	GetFreeTask() *Task

	// Submit queues a task for execution. Invalid submissions (nil
	// task, nil work function, a task already queued or executing)
	// are logged and dropped.
	Submit(task *Task)

	// Cancel removes a task that is still pending. It returns false
	// if the task is missing, already claimed by a worker, or already
	// completed; such tasks run to completion.
	Cancel(task *Task) bool

	// CancelAll cancels every still-pending task in the given slice
	// and returns how many were cancelled.
	CancelAll(tasks []*Task) int

	// Pause gates all workers: no new task is claimed until Resume.
	// Tasks already executing run to completion. Idempotent.
	Pause()

	// Resume releases the gate established by Pause. Idempotent.
	Resume()

	// Drain blocks until every submitted task with priority at or
	// above the threshold has completed, assisting with execution on
	// the calling goroutine, then purges completed tasks at or above
	// the threshold.
	Drain(priority uint32)

	// IsDrained reports whether no incomplete task at or above the
	// threshold remains.
	IsDrained(priority uint32) bool

	// Draining reports whether a Drain call is in progress.
	Draining() bool

	// PurgeCompleted removes every completed task at or above the
	// threshold, returning poolable ones to the free pool and firing
	// completion notifications for tasks submitted with Notify set.
	// Notifications are delivered on the calling goroutine; Drain and
	// Maintain purge automatically, so most hosts never call this.
	PurgeCompleted(priority uint32)

	// Maintain is the once-per-frame housekeeping hook. With zero
	// workers it runs pending tasks on the calling goroutine until
	// the queue empties or the configured time budget is spent; it
	// then purges all completed tasks and shrinks the task pool.
	Maintain()

	// Size returns the number of workers.
	Size() int

	// QueueSize returns the number of tasks pending execution.
	QueueSize() int

	// PoolSize returns the number of tasks held in the free pool.
	PoolSize() int

	// Incomplete returns the number of submitted tasks at or above
	// the threshold that have not completed, including ones currently
	// executing.
	Incomplete(priority uint32) int

	// Shutdown stops all workers. The returned channel closes once
	// every worker has exited. Queued tasks that were never claimed
	// do not run.
	Shutdown() <-chan struct{}
}

// Config holds configuration options for creating a work queue.
type Config struct {
	// Logger receives reports of caller misuse and degraded modes.
	// Nil means no logging.
	Logger *zap.Logger

	// OnTaskCompleted, if set, is invoked for every purged task that
	// was submitted with Notify set. It is called only from Drain and
	// Maintain, i.e. on the host goroutine driving those calls, never
	// from a worker, so handlers may safely touch state that is also
	// mutated between frames.
	OnTaskCompleted func(task *Task)

	// NonThreadedBudget is the wall-clock slice Maintain may spend
	// executing tasks per call when no workers exist. Defaults to
	// 5ms.
	NonThreadedBudget time.Duration

	// PoolTolerance is how far the task pool must shrink within one
	// maintenance cycle before entries are evicted. Defaults to 10.
	PoolTolerance int
}

// queueHooks are instrumentation points invoked by the queue itself, so
// observers never have to touch a task's fields. A task's Fn is
// caller-owned and the task may be resubmitted after completion;
// wrapping Fn would stack one instrumentation layer per resubmission.
// Hooks are installed before the queue is shared between goroutines and
// must be safe for concurrent use.
type queueHooks struct {
	submitted func(task *Task)
	dropped   func(task *Task)
	executed  func(task *Task, elapsed time.Duration)
}

// workQueue implements the WorkQueue interface.
type workQueue struct {
	config Config
	logger *zap.Logger
	hooks  queueHooks

	mu   sync.Mutex
	cond *sync.Cond

	queue    priorityQueue
	retained []*Task
	pool     taskPool

	workers  int
	paused   bool // explicit gate, cleared only by Resume
	idle     bool // internal gate (spin-up, post-drain), cleared by Submit too
	draining bool
	shutdown bool

	shutdownOnce sync.Once
	workerWg     sync.WaitGroup
	done         chan struct{}
}

// New creates a work queue with default configuration and no workers.
func New() WorkQueue {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a work queue with the specified configuration.
// Workers are not started until CreateWorkers is called; without them
// the queue runs in synchronous mode driven by Maintain and Drain.
func NewWithConfig(config Config) WorkQueue {
	return newWorkQueue(config)
}

func newWorkQueue(config Config) *workQueue {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if config.NonThreadedBudget <= 0 {
		config.NonThreadedBudget = defaultNonThreadedBudget
	}

	tolerance := config.PoolTolerance
	if tolerance <= 0 {
		tolerance = defaultPoolTolerance
	}

	q := &workQueue{
		config: config,
		logger: logger,
		pool:   taskPool{tolerance: tolerance},
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *workQueue) CreateWorkers(n int) {
	q.mu.Lock()
	if q.workers > 0 || q.shutdown {
		q.mu.Unlock()
		return
	}
	if n <= 0 {
		q.mu.Unlock()
		q.logger.Warn("no workers requested, work queue runs in synchronous mode")
		return
	}

	// Gate the queue while workers spin up so they do not race each
	// other against an empty queue, then release once all are running.
	q.idle = true
	q.workers = n
	q.mu.Unlock()

	for i := 1; i <= n; i++ {
		q.workerWg.Add(1)
		go q.runWorker(i)
	}

	q.Resume()
}

func (q *workQueue) GetFreeTask() *Task {
	q.mu.Lock()
	t := q.pool.acquire()
	q.mu.Unlock()
	return t
}

func (q *workQueue) Submit(task *Task) {
	if task == nil {
		q.logger.Error("nil task submitted to the work queue")
		q.dropped(task)
		return
	}
	if task.Fn == nil {
		q.logger.Error("task with nil work function submitted to the work queue",
			zap.Uint32("priority", task.Priority))
		q.dropped(task)
		return
	}

	q.mu.Lock()
	if q.isRetainedLocked(task) {
		q.mu.Unlock()
		q.logger.Error("task submitted while still queued or executing",
			zap.Uint32("priority", task.Priority))
		q.dropped(task)
		return
	}

	// Keep the task alive until purged, even if the submitter drops
	// its own reference. Clear completed in case the task is reused.
	q.retained = append(q.retained, task)
	task.completed.Store(false)

	q.queue.insert(task)

	// A fresh submission should not sit behind a stale internal gate,
	// such as the re-pause Drain establishes once the queue empties.
	// An explicit Pause stays in force until Resume.
	if q.workers > 0 {
		q.idle = false
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	if q.hooks.submitted != nil {
		q.hooks.submitted(task)
	}
}

func (q *workQueue) dropped(task *Task) {
	if q.hooks.dropped != nil {
		q.hooks.dropped(task)
	}
}

func (q *workQueue) Cancel(task *Task) bool {
	if task == nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelLocked(task)
}

func (q *workQueue) CancelAll(tasks []*Task) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for _, task := range tasks {
		if task != nil && q.cancelLocked(task) {
			removed++
		}
	}
	return removed
}

// cancelLocked succeeds only while the task is still pending: once a
// worker has claimed it, it is no longer in the queue and runs to
// completion.
func (q *workQueue) cancelLocked(task *Task) bool {
	if !q.queue.remove(task) {
		return false
	}

	for i, t := range q.retained {
		if t == task {
			q.retained = append(q.retained[:i], q.retained[i+1:]...)
			break
		}
	}

	q.pool.release(task)
	return true
}

func (q *workQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

func (q *workQueue) Resume() {
	q.mu.Lock()
	if q.paused || q.idle {
		q.paused = false
		q.idle = false
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

func (q *workQueue) Drain(priority uint32) {
	q.mu.Lock()
	q.draining = true
	q.paused = false
	q.idle = false
	q.cond.Broadcast()
	workers := q.workers
	q.mu.Unlock()

	// Take tasks on the calling goroutine as well, so the host helps
	// burn down high-priority work instead of only waiting on it.
	q.runFront(priority)

	if workers > 0 {
		q.mu.Lock()
		for !q.isDrainedLocked(priority) {
			q.cond.Wait()
		}
		// Nothing left at all: re-establish the gate so idle workers
		// block instead of spinning against an empty queue.
		if q.queue.empty() {
			q.idle = true
		}
		q.mu.Unlock()
	}

	q.purgeCompleted(priority)

	q.mu.Lock()
	q.draining = false
	q.mu.Unlock()
}

// runFront pops and executes pending tasks at or above the threshold on
// the calling goroutine until the queue empties or only lower-priority
// work remains. Worker index 0 identifies host-thread execution.
func (q *workQueue) runFront(priority uint32) {
	for {
		q.mu.Lock()
		front := q.queue.front()
		if front == nil || front.Priority < priority {
			q.mu.Unlock()
			return
		}
		q.queue.popFront()
		q.mu.Unlock()

		q.runTask(front, 0)

		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// runTask executes the task's work function with the queue mutex
// released and marks it completed. Worker index 0 identifies
// host-thread execution.
func (q *workQueue) runTask(task *Task, worker int) {
	if q.hooks.executed != nil {
		start := time.Now()
		task.Fn(task, worker)
		q.hooks.executed(task, time.Since(start))
	} else {
		task.Fn(task, worker)
	}
	task.markCompleted()
}

func (q *workQueue) IsDrained(priority uint32) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isDrainedLocked(priority)
}

func (q *workQueue) isDrainedLocked(priority uint32) bool {
	for _, t := range q.retained {
		if t.Priority >= priority && !t.Completed() {
			return false
		}
	}
	return true
}

func (q *workQueue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

func (q *workQueue) Maintain() {
	q.mu.Lock()
	synchronous := q.workers == 0 && !q.queue.empty()
	q.mu.Unlock()

	if synchronous {
		// No workers: make forward progress on the backlog here,
		// bounded by the configured slice so one frame does not
		// absorb the whole queue.
		deadline := time.Now().Add(q.config.NonThreadedBudget)
		for time.Now().Before(deadline) {
			q.mu.Lock()
			task := q.queue.popFront()
			q.mu.Unlock()
			if task == nil {
				break
			}

			q.runTask(task, 0)
		}
	}

	// Purge and signal completions down to the lowest priority.
	q.purgeCompleted(0)

	q.mu.Lock()
	q.pool.shrink()
	q.mu.Unlock()
}

func (q *workQueue) PurgeCompleted(priority uint32) {
	q.purgeCompleted(priority)
}

// purgeCompleted removes every retained task that has completed at or
// above the threshold. Notifications fire only at or above the
// threshold: lower-priority completions must not become visible in the
// middle of a higher-priority drain, where handlers could mutate state
// the drain's caller still relies on.
func (q *workQueue) purgeCompleted(priority uint32) {
	var purged []*Task

	q.mu.Lock()
	kept := q.retained[:0]
	for _, t := range q.retained {
		if t.Completed() && t.Priority >= priority {
			purged = append(purged, t)
		} else {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(q.retained); i++ {
		q.retained[i] = nil
	}
	q.retained = kept
	q.mu.Unlock()

	// Notify before recycling so handlers observe the task's fields
	// intact. Delivery happens on the goroutine driving the purge.
	if q.config.OnTaskCompleted != nil {
		for _, t := range purged {
			if t.Notify {
				q.config.OnTaskCompleted(t)
			}
		}
	}

	q.mu.Lock()
	for _, t := range purged {
		// A handler may have resubmitted the task it was notified
		// about; a task that is live again must not be recycled.
		if !q.isRetainedLocked(t) {
			q.pool.release(t)
		}
	}
	q.mu.Unlock()
}

func (q *workQueue) isRetainedLocked(task *Task) bool {
	for _, t := range q.retained {
		if t == task {
			return true
		}
	}
	return false
}

func (q *workQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.workers
}

func (q *workQueue) QueueSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.len()
}

func (q *workQueue) PoolSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pool.size()
}

func (q *workQueue) Incomplete(priority uint32) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	incomplete := 0
	for _, t := range q.retained {
		if t.Priority >= priority && !t.Completed() {
			incomplete++
		}
	}
	return incomplete
}

func (q *workQueue) Shutdown() <-chan struct{} {
	q.shutdownOnce.Do(func() {
		q.mu.Lock()
		q.shutdown = true
		q.paused = false
		q.idle = false
		q.cond.Broadcast()
		q.mu.Unlock()

		go func() {
			q.workerWg.Wait()
			close(q.done)
		}()
	})

	return q.done
}
