package workqueue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/taskflow/pkg/metrics"
)

// MetricsQueue wraps a WorkQueue with Prometheus metrics collection.
type MetricsQueue struct {
	queue    WorkQueue
	name     string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates a work queue with metrics enabled.
func NewWithMetrics(name string) WorkQueue {
	// Use a separate registry per metrics-enabled component to avoid
	// duplicate registration conflicts.
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{}, name, config)
}

// NewWithConfigAndMetrics creates a work queue with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) WorkQueue {
	if !metricsConfig.Enabled {
		return NewWithConfig(config)
	}

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}

	mq := &MetricsQueue{
		name:     name,
		registry: registry,
		enabled:  true,
	}

	// Counters hang off the queue's instrumentation hooks rather than
	// off wrapped work functions: a task's Fn belongs to the caller and
	// must survive resubmission unchanged.
	inner := newWorkQueue(config)
	inner.hooks = queueHooks{
		submitted: func(*Task) {
			registry.TasksSubmitted.WithLabelValues(name).Inc()
		},
		dropped: func(*Task) {
			registry.TasksDropped.WithLabelValues(name).Inc()
		},
		executed: func(_ *Task, elapsed time.Duration) {
			registry.TaskExecutionDuration.WithLabelValues(name).Observe(elapsed.Seconds())
			registry.TasksCompleted.WithLabelValues(name).Inc()
		},
	}
	mq.queue = inner
	mq.updateMetrics()

	return mq
}

// updateMetrics refreshes the current state gauges.
func (mq *MetricsQueue) updateMetrics() {
	if !mq.enabled {
		return
	}

	mq.registry.QueueDepth.WithLabelValues(mq.name).Set(float64(mq.queue.QueueSize()))
	mq.registry.PoolSize.WithLabelValues(mq.name).Set(float64(mq.queue.PoolSize()))
	mq.registry.Workers.WithLabelValues(mq.name).Set(float64(mq.queue.Size()))
}

// CreateWorkers starts n background workers.
func (mq *MetricsQueue) CreateWorkers(n int) {
	mq.queue.CreateWorkers(n)
	mq.updateMetrics()
}

// GetFreeTask returns an inert task from the internal pool.
func (mq *MetricsQueue) GetFreeTask() *Task {
	t := mq.queue.GetFreeTask()
	mq.updateMetrics()
	return t
}

// Submit queues a task for execution. Submission, drop and execution
// counts come through the underlying queue's instrumentation hooks.
func (mq *MetricsQueue) Submit(task *Task) {
	mq.queue.Submit(task)
	mq.updateMetrics()
}

// Cancel removes a still-pending task.
func (mq *MetricsQueue) Cancel(task *Task) bool {
	ok := mq.queue.Cancel(task)
	if ok && mq.enabled {
		mq.registry.TasksCancelled.WithLabelValues(mq.name).Inc()
	}
	mq.updateMetrics()
	return ok
}

// CancelAll cancels every still-pending task in the given slice.
func (mq *MetricsQueue) CancelAll(tasks []*Task) int {
	removed := mq.queue.CancelAll(tasks)
	if mq.enabled && removed > 0 {
		mq.registry.TasksCancelled.WithLabelValues(mq.name).Add(float64(removed))
	}
	mq.updateMetrics()
	return removed
}

// Pause gates all workers.
func (mq *MetricsQueue) Pause() {
	mq.queue.Pause()
}

// Resume releases the pause gate.
func (mq *MetricsQueue) Resume() {
	mq.queue.Resume()
}

// Drain blocks until all work at or above the threshold has completed.
func (mq *MetricsQueue) Drain(priority uint32) {
	start := time.Now()
	mq.queue.Drain(priority)

	if mq.enabled {
		mq.registry.DrainDuration.WithLabelValues(mq.name).Observe(time.Since(start).Seconds())
	}
	mq.updateMetrics()
}

// IsDrained reports whether no incomplete task at or above the threshold remains.
func (mq *MetricsQueue) IsDrained(priority uint32) bool {
	return mq.queue.IsDrained(priority)
}

// Draining reports whether a Drain call is in progress.
func (mq *MetricsQueue) Draining() bool {
	return mq.queue.Draining()
}

// PurgeCompleted removes completed tasks at or above the threshold.
func (mq *MetricsQueue) PurgeCompleted(priority uint32) {
	mq.queue.PurgeCompleted(priority)
	mq.updateMetrics()
}

// Maintain runs the per-frame housekeeping hook.
func (mq *MetricsQueue) Maintain() {
	mq.queue.Maintain()
	mq.updateMetrics()
}

// Size returns the number of workers.
func (mq *MetricsQueue) Size() int {
	return mq.queue.Size()
}

// QueueSize returns the number of tasks pending execution.
func (mq *MetricsQueue) QueueSize() int {
	size := mq.queue.QueueSize()
	if mq.enabled {
		mq.registry.QueueDepth.WithLabelValues(mq.name).Set(float64(size))
	}
	return size
}

// PoolSize returns the number of tasks held in the free pool.
func (mq *MetricsQueue) PoolSize() int {
	size := mq.queue.PoolSize()
	if mq.enabled {
		mq.registry.PoolSize.WithLabelValues(mq.name).Set(float64(size))
	}
	return size
}

// Incomplete returns the number of incomplete tasks at or above the threshold.
func (mq *MetricsQueue) Incomplete(priority uint32) int {
	return mq.queue.Incomplete(priority)
}

// Shutdown stops all workers.
func (mq *MetricsQueue) Shutdown() <-chan struct{} {
	return mq.queue.Shutdown()
}
