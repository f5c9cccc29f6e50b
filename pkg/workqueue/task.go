package workqueue

import (
	"math"
	"sync/atomic"
)

// inertPriority marks a task whose priority has not been assigned yet.
// Pooled tasks sit at this value between uses.
const inertPriority = math.MaxUint32

// WorkFunc is the unit of work carried by a Task. It receives the task
// itself and the index of the worker executing it: pool workers are
// numbered 1..n, and work executed on the caller's goroutine (drain
// assistance, maintenance, zero-worker mode) runs with index 0.
type WorkFunc func(task *Task, worker int)

// Task is a unit of schedulable work. Fn, Payload, Priority and Notify
// are filled in by the caller before submission and must not be touched
// again until the task has completed. Higher Priority values are more
// urgent.
//
// A Task must not be submitted again while it is still queued or
// executing; doing so is a caller bug and the submission is dropped.
type Task struct {
	// Fn is the work function. A task with a nil Fn is invalid and is
	// rejected at submission.
	Fn WorkFunc

	// Payload is arbitrary caller-owned state for Fn. The queue never
	// inspects it.
	Payload any

	// Priority orders execution: larger values run first.
	Priority uint32

	// Notify requests a completion notification when the task is
	// purged (see Config.OnTaskCompleted).
	Notify bool

	// completed is written exactly once by the executing goroutine
	// after Fn returns, and read concurrently by drain waiters.
	completed atomic.Bool

	// poolable is set only for tasks handed out by the internal pool.
	// Caller-allocated tasks are never returned to the pool.
	poolable bool
}

// Completed reports whether the task's work function has run to
// completion since the last submission.
func (t *Task) Completed() bool {
	return t.completed.Load()
}

func (t *Task) markCompleted() {
	t.completed.Store(true)
}

// reset returns the task to its inert state between pool uses.
func (t *Task) reset() {
	t.Fn = nil
	t.Payload = nil
	t.Priority = inertPriority
	t.Notify = false
	t.completed.Store(false)
}
