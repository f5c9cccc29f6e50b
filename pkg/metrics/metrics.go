// Package metrics provides Prometheus instrumentation for taskflow components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for taskflow components.
type Registry struct {
	// Work queue metrics
	TasksSubmitted        *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksCancelled        *prometheus.CounterVec
	TasksDropped          *prometheus.CounterVec
	QueueDepth            *prometheus.GaugeVec
	PoolSize              *prometheus.GaugeVec
	Workers               *prometheus.GaugeVec
	TaskExecutionDuration *prometheus.HistogramVec
	DrainDuration         *prometheus.HistogramVec

	// Recurring scheduler metrics
	RecurringEntries  *prometheus.GaugeVec
	RecurringFired    *prometheus.CounterVec
	RecurringMisfires *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by taskflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "workqueue",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks submitted to the work queue",
			},
			[]string{"queue"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "workqueue",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks that ran to completion",
			},
			[]string{"queue"},
		),

		TasksCancelled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "workqueue",
				Name:      "tasks_cancelled_total",
				Help:      "Total number of pending tasks removed before execution",
			},
			[]string{"queue"},
		),

		TasksDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "workqueue",
				Name:      "tasks_dropped_total",
				Help:      "Total number of invalid submissions dropped",
			},
			[]string{"queue"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "workqueue",
				Name:      "queue_depth",
				Help:      "Number of tasks pending execution",
			},
			[]string{"queue"},
		),

		PoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "workqueue",
				Name:      "pool_size",
				Help:      "Number of reusable tasks held in the free pool",
			},
			[]string{"queue"},
		),

		Workers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "workqueue",
				Name:      "workers",
				Help:      "Number of background workers",
			},
			[]string{"queue"},
		),

		TaskExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskflow",
				Subsystem: "workqueue",
				Name:      "task_execution_duration_seconds",
				Help:      "Time spent executing task work functions",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),

		DrainDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskflow",
				Subsystem: "workqueue",
				Name:      "drain_duration_seconds",
				Help:      "Time spent blocked in Drain calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),

		RecurringEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "recurring",
				Name:      "entries",
				Help:      "Number of scheduled recurring entries",
			},
			[]string{"scheduler"},
		),

		RecurringFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "recurring",
				Name:      "fired_total",
				Help:      "Total number of recurring entries fired into the work queue",
			},
			[]string{"scheduler"},
		),

		RecurringMisfires: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "recurring",
				Name:      "misfires_total",
				Help:      "Total number of recurring occurrences missed by a late dispatch",
			},
			[]string{"scheduler"},
		),
	}
}
