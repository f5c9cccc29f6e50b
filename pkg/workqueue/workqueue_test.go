package workqueue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/taskflow/internal/testutil"
)

func TestPriorityOrderingZeroWorkers(t *testing.T) {
	q := New()

	var order []uint32
	record := func(task *Task, worker int) {
		order = append(order, task.Priority)
	}

	for _, p := range []uint32{3, 1, 5, 2, 4} {
		q.Submit(&Task{Fn: record, Priority: p})
	}

	q.Drain(0)

	testutil.AssertEqual(t, len(order), 5)
	for i := 1; i < len(order); i++ {
		if order[i] > order[i-1] {
			t.Fatalf("execution order %v is not non-increasing in priority", order)
		}
	}
}

// Submitting A then B at the same priority must execute B first.
func TestTieBreakLawEndToEnd(t *testing.T) {
	q := New()

	var order []string
	name := func(n string) WorkFunc {
		return func(task *Task, worker int) {
			order = append(order, n)
		}
	}

	q.Submit(&Task{Fn: name("A"), Priority: 5})
	q.Submit(&Task{Fn: name("B"), Priority: 5})

	q.Drain(0)

	testutil.AssertEqual(t, len(order), 2)
	testutil.AssertEqual(t, order[0], "B")
	testutil.AssertEqual(t, order[1], "A")
}

func TestAtMostOnceExecution(t *testing.T) {
	q := New()
	q.CreateWorkers(4)
	defer func() { <-q.Shutdown() }()

	const n = 200
	counters := make([]int32, n)
	tasks := make([]*Task, n)

	for i := 0; i < n; i++ {
		idx := i
		tasks[i] = &Task{
			Fn: func(task *Task, worker int) {
				atomic.AddInt32(&counters[idx], 1)
			},
			Priority: uint32(i % 7),
		}
		q.Submit(tasks[i])
	}

	q.Drain(0)

	for i := 0; i < n; i++ {
		testutil.AssertEqual(t, atomic.LoadInt32(&counters[i]), int32(1))
		testutil.AssertEqual(t, tasks[i].Completed(), true)
	}
}

func TestPauseBlocksProgress(t *testing.T) {
	q := New()
	q.CreateWorkers(2)
	defer func() { <-q.Shutdown() }()

	q.Pause()

	var completed int32
	for i := 0; i < 5; i++ {
		q.Submit(&Task{
			Fn: func(task *Task, worker int) {
				atomic.AddInt32(&completed, 1)
			},
			Priority: 1,
		})
	}

	testutil.Never(t, 50*time.Millisecond, func() bool {
		return atomic.LoadInt32(&completed) > 0
	})

	q.Resume()

	testutil.Eventually(t, testutil.TestTimeout, func() bool {
		return atomic.LoadInt32(&completed) == 5
	})
}

func TestPauseResumeIdempotent(t *testing.T) {
	q := New()
	q.CreateWorkers(1)
	defer func() { <-q.Shutdown() }()

	q.Pause()
	q.Pause()
	q.Resume()
	q.Resume()

	var ran int32
	q.Submit(&Task{
		Fn:       func(task *Task, worker int) { atomic.AddInt32(&ran, 1) },
		Priority: 1,
	})
	q.Drain(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&ran), int32(1))
}

func TestDrainCompleteness(t *testing.T) {
	q := New()
	q.CreateWorkers(2)
	defer func() { <-q.Shutdown() }()

	var high, low int32
	for i := 0; i < 8; i++ {
		q.Submit(&Task{
			Fn: func(task *Task, worker int) {
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&low, 1)
			},
			Priority: 1,
		})
	}
	highTasks := make([]*Task, 8)
	for i := 0; i < 8; i++ {
		highTasks[i] = &Task{
			Fn: func(task *Task, worker int) {
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&high, 1)
			},
			Priority: 5,
		}
		q.Submit(highTasks[i])
	}

	q.Drain(5)

	testutil.AssertEqual(t, atomic.LoadInt32(&high), int32(8))
	for _, task := range highTasks {
		testutil.AssertEqual(t, task.Completed(), true)
	}
	testutil.AssertEqual(t, q.IsDrained(5), true)

	// Low-priority work is allowed to still be pending; finish it off.
	q.Drain(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&low), int32(8))
}

func TestCancelPending(t *testing.T) {
	q := New()

	var ran int32
	task := &Task{
		Fn:       func(task *Task, worker int) { atomic.AddInt32(&ran, 1) },
		Priority: 3,
	}
	q.Submit(task)

	testutil.AssertEqual(t, q.Cancel(task), true)
	testutil.AssertEqual(t, q.QueueSize(), 0)
	testutil.AssertEqual(t, q.Cancel(task), false)
	testutil.AssertEqual(t, q.Cancel(nil), false)

	q.Drain(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&ran), int32(0))
}

// Cancelling a task a worker has already claimed must fail, and the
// task must still run exactly once.
func TestCancelRace(t *testing.T) {
	q := New()
	q.CreateWorkers(1)
	defer func() { <-q.Shutdown() }()

	claimed := make(chan struct{})
	release := make(chan struct{})
	var ran int32

	task := &Task{
		Fn: func(task *Task, worker int) {
			close(claimed)
			<-release
			atomic.AddInt32(&ran, 1)
		},
		Priority: 1,
	}
	q.Submit(task)

	<-claimed
	testutil.AssertEqual(t, q.Cancel(task), false)

	close(release)
	q.Drain(0)

	testutil.AssertEqual(t, atomic.LoadInt32(&ran), int32(1))
	testutil.AssertEqual(t, task.Completed(), true)
}

func TestCancelAll(t *testing.T) {
	q := New()

	var tasks []*Task
	for i := 0; i < 3; i++ {
		task := &Task{Fn: noopFn, Priority: uint32(i)}
		tasks = append(tasks, task)
		q.Submit(task)
	}
	unsubmitted := &Task{Fn: noopFn, Priority: 9}

	removed := q.CancelAll(append(tasks, unsubmitted, nil))
	testutil.AssertEqual(t, removed, 3)
	testutil.AssertEqual(t, q.QueueSize(), 0)
}

func TestInvalidSubmissionsDropped(t *testing.T) {
	q := New()

	q.Submit(nil)
	q.Submit(&Task{Priority: 5}) // nil Fn

	testutil.AssertEqual(t, q.QueueSize(), 0)
	testutil.AssertEqual(t, q.IsDrained(0), true)
}

func TestDuplicateSubmissionDropped(t *testing.T) {
	q := New()

	var ran int32
	task := &Task{
		Fn:       func(task *Task, worker int) { atomic.AddInt32(&ran, 1) },
		Priority: 2,
	}

	q.Submit(task)
	q.Submit(task)

	testutil.AssertEqual(t, q.QueueSize(), 1)
	q.Drain(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&ran), int32(1))
}

func TestPoolRoundTrip(t *testing.T) {
	q := New()

	task := q.GetFreeTask()
	task.Fn = noopFn
	task.Payload = "work"
	task.Priority = 4
	task.Notify = true

	q.Submit(task)
	q.Drain(0)

	// The completed task was purged and recycled: inert again and back
	// in the pool, where the next acquire may hand out the same object.
	testutil.AssertEqual(t, task.Fn == nil, true)
	testutil.AssertEqual(t, task.Payload == nil, true)
	testutil.AssertEqual(t, task.Priority, uint32(inertPriority))
	testutil.AssertEqual(t, task.Notify, false)
	testutil.AssertEqual(t, task.Completed(), false)
	testutil.AssertEqual(t, q.PoolSize(), 1)
	testutil.AssertEqual(t, q.GetFreeTask(), task)
}

func TestCompletionNotifications(t *testing.T) {
	var mu sync.Mutex
	var notified []*Task

	q := NewWithConfig(Config{
		OnTaskCompleted: func(task *Task) {
			mu.Lock()
			notified = append(notified, task)
			mu.Unlock()
		},
	})

	highNotify := &Task{Fn: noopFn, Priority: 5, Notify: true}
	highSilent := &Task{Fn: noopFn, Priority: 5}
	lowNotify := &Task{Fn: noopFn, Priority: 1, Notify: true}

	q.Submit(highNotify)
	q.Submit(highSilent)
	q.Submit(lowNotify)

	// Draining at threshold 3 must not surface the low-priority
	// completion even though nothing else is running.
	q.Drain(3)
	testutil.AssertEqual(t, len(notified), 1)
	testutil.AssertEqual(t, notified[0], highNotify)

	// Maintenance purges down to priority zero.
	q.Maintain()
	testutil.AssertEqual(t, len(notified), 2)
	testutil.AssertEqual(t, notified[1], lowNotify)
}

func TestPurgeCompletedExplicit(t *testing.T) {
	var mu sync.Mutex
	var notified int

	q := NewWithConfig(Config{
		OnTaskCompleted: func(task *Task) {
			mu.Lock()
			notified++
			mu.Unlock()
		},
	})
	q.CreateWorkers(1)
	defer func() { <-q.Shutdown() }()

	task := q.GetFreeTask()
	task.Fn = noopFn
	task.Priority = 2
	task.Notify = true
	q.Submit(task)

	testutil.Eventually(t, testutil.TestTimeout, func() bool {
		return task.Completed()
	})

	// Completed but not yet purged: the worker never purges.
	mu.Lock()
	testutil.AssertEqual(t, notified, 0)
	mu.Unlock()

	q.PurgeCompleted(0)
	mu.Lock()
	testutil.AssertEqual(t, notified, 1)
	mu.Unlock()
	testutil.AssertEqual(t, q.PoolSize(), 1)
}

// Notification handlers must observe the task before it is recycled.
func TestNotificationSeesTaskFields(t *testing.T) {
	var payload any

	q := NewWithConfig(Config{
		OnTaskCompleted: func(task *Task) {
			payload = task.Payload
		},
	})

	task := q.GetFreeTask()
	task.Fn = noopFn
	task.Payload = "intact"
	task.Priority = 1
	task.Notify = true

	q.Submit(task)
	q.Drain(0)

	testutil.AssertEqual(t, payload, any("intact"))
}

func TestEndToEndTwoWorkers(t *testing.T) {
	q := New()
	q.CreateWorkers(2)
	defer func() { <-q.Shutdown() }()

	var counter int32
	tasks := make([]*Task, 0, 10)
	for _, p := range []uint32{1, 1, 1, 5, 5, 3, 3, 3, 3, 3} {
		task := &Task{
			Fn: func(task *Task, worker int) {
				atomic.AddInt32(&counter, 1)
			},
			Priority: p,
		}
		tasks = append(tasks, task)
		q.Submit(task)
	}

	q.Drain(0)

	testutil.AssertEqual(t, atomic.LoadInt32(&counter), int32(10))
	for _, task := range tasks {
		testutil.AssertEqual(t, task.Completed(), true)
	}
}

// With no workers and a 1ms budget, three 2ms tasks must complete
// across successive maintenance calls, not all in one.
func TestMaintainBudgetIncremental(t *testing.T) {
	q := NewWithConfig(Config{NonThreadedBudget: time.Millisecond})

	var counter int32
	for i := 0; i < 3; i++ {
		q.Submit(&Task{
			Fn: func(task *Task, worker int) {
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&counter, 1)
			},
			Priority: 1,
		})
	}

	q.Maintain()
	first := atomic.LoadInt32(&counter)
	if first == 3 {
		t.Fatal("first maintenance call drained the whole queue despite the budget")
	}

	calls := 1
	for atomic.LoadInt32(&counter) < 3 && calls < 20 {
		q.Maintain()
		calls++
	}
	testutil.AssertEqual(t, atomic.LoadInt32(&counter), int32(3))
	testutil.AssertEqual(t, q.QueueSize(), 0)
	if calls < 2 {
		t.Fatalf("expected incremental completion across calls, finished in %d", calls)
	}
}

func TestCreateWorkersOnce(t *testing.T) {
	q := New()
	q.CreateWorkers(2)
	defer func() { <-q.Shutdown() }()

	q.CreateWorkers(5)
	testutil.AssertEqual(t, q.Size(), 2)
}

func TestZeroWorkersSynchronousMode(t *testing.T) {
	q := New()
	q.CreateWorkers(0)
	testutil.AssertEqual(t, q.Size(), 0)

	var ran int32
	q.Submit(&Task{
		Fn:       func(task *Task, worker int) { atomic.AddInt32(&ran, 1) },
		Priority: 1,
	})

	testutil.Eventually(t, testutil.TestTimeout, func() bool {
		q.Maintain()
		return atomic.LoadInt32(&ran) == 1
	})
}

// Host-thread execution passes worker index 0; pool workers use 1..n.
func TestWorkerIndexConvention(t *testing.T) {
	q := New()

	var hostIndex int32 = -1
	q.Submit(&Task{
		Fn: func(task *Task, worker int) {
			atomic.StoreInt32(&hostIndex, int32(worker))
		},
		Priority: 1,
	})
	q.Drain(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&hostIndex), int32(0))

	q2 := New()
	q2.CreateWorkers(3)
	defer func() { <-q2.Shutdown() }()

	indexes := make(chan int, 16)
	for i := 0; i < 16; i++ {
		q2.Submit(&Task{
			Fn: func(task *Task, worker int) {
				indexes <- worker
			},
			Priority: 1,
		})
	}
	q2.Drain(0)
	close(indexes)

	for idx := range indexes {
		if idx < 0 || idx > 3 {
			t.Fatalf("worker index %d out of range [0, 3]", idx)
		}
	}
}

func TestDrainingFlag(t *testing.T) {
	q := New()

	var observed bool
	q.Submit(&Task{
		Fn: func(task *Task, worker int) {
			observed = q.Draining()
		},
		Priority: 1,
	})

	testutil.AssertEqual(t, q.Draining(), false)
	q.Drain(0)
	testutil.AssertEqual(t, observed, true)
	testutil.AssertEqual(t, q.Draining(), false)
}

// Drain re-establishes the gate once the queue is empty; a fresh
// submission must wake the workers again without an explicit Resume.
func TestSubmitClearsStaleGate(t *testing.T) {
	q := New()
	q.CreateWorkers(2)
	defer func() { <-q.Shutdown() }()

	q.Submit(&Task{Fn: noopFn, Priority: 1})
	q.Drain(0)

	var ran int32
	q.Submit(&Task{
		Fn:       func(task *Task, worker int) { atomic.AddInt32(&ran, 1) },
		Priority: 1,
	})

	testutil.Eventually(t, testutil.TestTimeout, func() bool {
		return atomic.LoadInt32(&ran) == 1
	})
}

func TestIncomplete(t *testing.T) {
	q := New()

	q.Submit(&Task{Fn: noopFn, Priority: 5})
	q.Submit(&Task{Fn: noopFn, Priority: 1})

	testutil.AssertEqual(t, q.Incomplete(0), 2)
	testutil.AssertEqual(t, q.Incomplete(3), 1)
	testutil.AssertEqual(t, q.IsDrained(0), false)

	q.Drain(3)
	testutil.AssertEqual(t, q.Incomplete(3), 0)
	testutil.AssertEqual(t, q.Incomplete(0), 1)

	q.Drain(0)
	testutil.AssertEqual(t, q.Incomplete(0), 0)
	testutil.AssertEqual(t, q.IsDrained(0), true)
}

func TestShutdown(t *testing.T) {
	q := New()
	q.CreateWorkers(2)

	q.Submit(&Task{Fn: noopFn, Priority: 1})
	q.Drain(0)

	select {
	case <-q.Shutdown():
	case <-time.After(testutil.TestTimeout):
		t.Fatal("shutdown did not complete")
	}

	// Shutdown is one-way and idempotent.
	<-q.Shutdown()
	q.CreateWorkers(2)
	testutil.AssertEqual(t, q.Size(), 2)
}
