/*
Package recurring schedules time-driven work into a priority work
queue. Entries fire once at a fixed time, repeatedly at an interval, or
on a cron schedule; each firing acquires a pooled task from the queue
and submits it at the entry's priority.

Basic usage:

	queue := workqueue.New()
	queue.CreateWorkers(2)

	sched := recurring.NewWithConfig(recurring.Config{Queue: queue})
	sched.ScheduleRepeating("flush", 10, func(t *workqueue.Task, worker int) {
		// Periodic background work
	}, time.Second)
	sched.ScheduleCron("nightly", "0 0 3 * * *", 0, nightlyCompaction)

	sched.Start()
	defer func() { <-sched.Stop() }()

Cron expressions use six fields with seconds granularity
("second minute hour day-of-month month day-of-week").

The task's Payload carries the entry ID, so a shared work function can
tell firings apart.
*/
package recurring
