/*
Package workqueue provides a priority-ordered work queue with a bounded
set of background workers, designed for frame-based hosts that submit
bursts of prioritized work and periodically wait for the urgent part of
it to finish.

Tasks are executed strictly in descending priority order. Within one
priority value, later submissions run before earlier ones. The queue
can be paused and resumed atomically, drained down to a priority
threshold with the calling goroutine assisting in execution, and driven
entirely without workers through a time-budgeted per-frame maintenance
hook.

Basic usage:

	queue := workqueue.New()
	queue.CreateWorkers(4)
	defer func() { <-queue.Shutdown() }()

	task := queue.GetFreeTask()
	task.Priority = 100
	task.Fn = func(t *workqueue.Task, worker int) {
		// Do work
	}
	queue.Submit(task)

	// Block until all work at priority >= 100 has completed.
	queue.Drain(100)

Task pooling:

GetFreeTask hands out recycled Task objects from an internal free list,
so steady-state submission does not allocate. Pooled tasks are returned
to the list automatically once they complete and are purged. The free
list shrinks gradually, with hysteresis, during Maintain. Tasks
allocated directly by the caller work too and are simply never pooled.

Zero-worker mode:

Without workers the queue runs synchronously. Drain executes all work
at or above its threshold on the calling goroutine, and Maintain makes
bounded forward progress on the backlog each frame:

	queue := workqueue.New() // no CreateWorkers call
	for running {
		// ... frame work ...
		queue.Maintain() // runs queued tasks for up to the configured budget
	}

Completion notifications:

Tasks submitted with Notify set trigger Config.OnTaskCompleted when
they are purged. Purging happens only inside Drain and Maintain, so
notifications are always delivered on the goroutine driving those
calls, never on a worker. Handlers may therefore safely mutate state
that is shared with the frame loop.

Metrics:

NewWithMetrics and NewWithConfigAndMetrics wrap the queue with
Prometheus instrumentation; see the pkg/metrics package.
*/
package workqueue
