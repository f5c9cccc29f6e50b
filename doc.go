/*
Package taskflow provides a priority task scheduler for Go applications:
a bounded pool of workers draining a single priority-ordered queue, with
atomic pause/resume, drain-to-priority, task object pooling, and a
time-budgeted synchronous mode for hosts without workers.

Work queue (pkg/workqueue):
  - Strict descending-priority execution with LIFO ordering inside a band
  - Pause gate stopping all workers atomically; resume or drain to release
  - Drain(priority) blocks until the urgent part of the backlog is done,
    with the calling goroutine assisting in execution
  - Pooled Task objects with hysteresis-based shrinking
  - Per-frame Maintain hook for zero-worker hosts with a wall-clock budget
  - Completion notifications delivered on the host goroutine only

Recurring scheduling (pkg/recurring):
  - One-time, interval and cron entries fired into the work queue
  - Each firing reuses a pooled task at the entry's priority

Metrics (pkg/metrics):
  - Prometheus instrumentation for queue depth, pool size, throughput
    and drain latency

Example usage:

	import "github.com/vnykmshr/taskflow/pkg/workqueue"

	queue := workqueue.New()
	queue.CreateWorkers(4)

	task := queue.GetFreeTask()
	task.Priority = 100
	task.Fn = func(t *workqueue.Task, worker int) {
		// Do work
	}
	queue.Submit(task)

	queue.Drain(100) // block until all priority >= 100 work is done
*/
package taskflow
