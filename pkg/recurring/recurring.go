package recurring

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vnykmshr/taskflow/pkg/metrics"
	"github.com/vnykmshr/taskflow/pkg/workqueue"
)

// Entry describes a scheduled recurring entry.
type Entry struct {
	ID       string
	Priority uint32
	RunAt    time.Time
	Interval time.Duration // Zero for one-time and cron entries
	Cron     string        // Empty for one-time and interval entries
	Created  time.Time
}

// Scheduler fires recurring work into a priority work queue. Each time
// an entry comes due, the scheduler acquires a pooled task from the
// queue, fills in the entry's work function and priority, and submits
// it.
type Scheduler interface {
	// One-time scheduling
	Schedule(id string, priority uint32, fn workqueue.WorkFunc, runAt time.Time) error
	ScheduleAfter(id string, priority uint32, fn workqueue.WorkFunc, delay time.Duration) error

	// Recurring scheduling
	ScheduleRepeating(id string, priority uint32, fn workqueue.WorkFunc, interval time.Duration) error
	ScheduleCron(id string, cronExpr string, priority uint32, fn workqueue.WorkFunc) error

	// Entry management
	Cancel(id string) bool
	CancelAll()
	List() []Entry

	// Lifecycle
	Start() error
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	// Queue receives fired entries. If nil, the scheduler creates a
	// private queue with four workers and owns its shutdown.
	Queue workqueue.WorkQueue

	// Location is used to evaluate cron schedules. Defaults to time.Local.
	Location *time.Location

	// TickInterval is how often due entries are checked (default: 50ms).
	TickInterval time.Duration

	// MaxEntries caps the number of scheduled entries (default: 10000).
	MaxEntries int

	// Logger receives dispatch diagnostics. Nil means no logging.
	Logger *zap.Logger

	// Metrics, if non-nil, receives entry/firing counts under Name.
	Metrics *metrics.Registry

	// Name labels this scheduler's metrics (default: "recurring").
	Name string
}

type scheduledEntry struct {
	id           string
	priority     uint32
	fn           workqueue.WorkFunc
	runAt        time.Time
	interval     time.Duration
	cronExpr     string
	cronSchedule cron.Schedule
	created      time.Time
}

type scheduler struct {
	queue        workqueue.WorkQueue
	ownQueue     bool
	location     *time.Location
	tickInterval time.Duration
	maxEntries   int
	cronParser   cron.Parser
	logger       *zap.Logger
	metrics      *metrics.Registry
	name         string

	mu      sync.RWMutex
	entries map[string]*scheduledEntry
	done    chan struct{}
	stopped chan struct{}
	running bool
}

// New creates a scheduler with default configuration.
func New() Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) Scheduler {
	queue := cfg.Queue
	ownQueue := false
	if queue == nil {
		queue = workqueue.New()
		queue.CreateWorkers(4)
		ownQueue = true
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = 50 * time.Millisecond
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	name := cfg.Name
	if name == "" {
		name = "recurring"
	}

	return &scheduler{
		queue:        queue,
		ownQueue:     ownQueue,
		location:     location,
		tickInterval: tickInterval,
		maxEntries:   maxEntries,
		cronParser:   cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:       logger,
		metrics:      cfg.Metrics,
		name:         name,
		entries:      make(map[string]*scheduledEntry),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

func (s *scheduler) Schedule(id string, priority uint32, fn workqueue.WorkFunc, runAt time.Time) error {
	if err := validate(id, fn); err != nil {
		return err
	}
	if runAt.IsZero() {
		return fmt.Errorf("entry run time cannot be zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(&scheduledEntry{
		id:       id,
		priority: priority,
		fn:       fn,
		runAt:    runAt,
		created:  time.Now(),
	})
}

func (s *scheduler) ScheduleAfter(id string, priority uint32, fn workqueue.WorkFunc, delay time.Duration) error {
	return s.Schedule(id, priority, fn, time.Now().Add(delay))
}

func (s *scheduler) ScheduleRepeating(id string, priority uint32, fn workqueue.WorkFunc, interval time.Duration) error {
	if err := validate(id, fn); err != nil {
		return err
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(&scheduledEntry{
		id:       id,
		priority: priority,
		fn:       fn,
		runAt:    time.Now(),
		interval: interval,
		created:  time.Now(),
	})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, priority uint32, fn workqueue.WorkFunc) error {
	if err := validate(id, fn); err != nil {
		return err
	}
	if cronExpr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}

	schedule, err := s.cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().In(s.location)
	return s.insertLocked(&scheduledEntry{
		id:           id,
		priority:     priority,
		fn:           fn,
		runAt:        schedule.Next(now),
		cronExpr:     cronExpr,
		cronSchedule: schedule,
		created:      now,
	})
}

func validate(id string, fn workqueue.WorkFunc) error {
	if id == "" {
		return fmt.Errorf("entry ID cannot be empty")
	}
	if len(id) > 255 {
		return fmt.Errorf("entry ID too long (max 255 characters)")
	}
	if fn == nil {
		return fmt.Errorf("work function cannot be nil")
	}
	return nil
}

func (s *scheduler) insertLocked(e *scheduledEntry) error {
	if _, exists := s.entries[e.id]; exists {
		return fmt.Errorf("entry with ID %q already exists, use a different ID or cancel the existing entry first", e.id)
	}
	if len(s.entries) >= s.maxEntries {
		return fmt.Errorf("cannot schedule entry: maximum number of entries (%d) reached", s.maxEntries)
	}

	s.entries[e.id] = e
	s.updateEntryGauge(len(s.entries))
	return nil
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; !exists {
		return false
	}
	delete(s.entries, id)
	s.updateEntryGauge(len(s.entries))
	return true
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*scheduledEntry)
	s.updateEntryGauge(0)
}

func (s *scheduler) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, Entry{
			ID:       e.id,
			Priority: e.priority,
			RunAt:    e.runAt,
			Interval: e.interval,
			Cron:     e.cronExpr,
			Created:  e.created,
		})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	go s.run()
	return nil
}

func (s *scheduler) Stop() <-chan struct{} {
	done := make(chan struct{})

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		close(done)
		return done
	}
	s.running = false
	s.mu.Unlock()

	close(s.done)

	go func() {
		<-s.stopped
		if s.ownQueue {
			<-s.queue.Shutdown()
		}
		close(done)
	}()

	return done
}

func (s *scheduler) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.dispatch(now)
		}
	}
}

// dispatch fires every due entry, advancing repeating and cron entries
// to their next occurrence and removing one-time entries.
func (s *scheduler) dispatch(now time.Time) {
	s.mu.Lock()
	var due []*scheduledEntry
	for _, e := range s.entries {
		if !e.runAt.After(now) {
			due = append(due, e)
		}
	}

	for _, e := range due {
		// An entry more than one full interval late has missed at
		// least one occurrence; occurrences are not replayed.
		if e.interval > 0 && now.Sub(e.runAt) >= e.interval && s.metrics != nil {
			s.metrics.RecurringMisfires.WithLabelValues(s.name).Inc()
		}

		switch {
		case e.cronSchedule != nil:
			e.runAt = e.cronSchedule.Next(now.In(s.location))
		case e.interval > 0:
			e.runAt = now.Add(e.interval)
		default:
			delete(s.entries, e.id)
		}
	}
	s.updateEntryGauge(len(s.entries))
	s.mu.Unlock()

	for _, e := range due {
		s.fire(e)
	}
}

// fire submits one occurrence of an entry into the work queue using a
// pooled task.
func (s *scheduler) fire(e *scheduledEntry) {
	task := s.queue.GetFreeTask()
	task.Fn = e.fn
	task.Priority = e.priority
	task.Payload = e.id

	s.queue.Submit(task)

	if s.metrics != nil {
		s.metrics.RecurringFired.WithLabelValues(s.name).Inc()
	}

	s.logger.Debug("fired recurring entry",
		zap.String("id", e.id),
		zap.Uint32("priority", e.priority))
}

func (s *scheduler) updateEntryGauge(n int) {
	if s.metrics != nil {
		s.metrics.RecurringEntries.WithLabelValues(s.name).Set(float64(n))
	}
}
