package workqueue

// defaultPoolTolerance is how far the free list must have shrunk within
// one maintenance cycle before the pool starts evicting entries.
const defaultPoolTolerance = 10

// taskPool is a free list of inert, reusable tasks. It keeps
// high-submission-rate callers from churning the allocator.
//
// The pool has no locking of its own: it is only ever touched while the
// owning queue's mutex is held.
type taskPool struct {
	free      []*Task
	lastSize  int
	tolerance int
}

// acquire returns a recycled task if one is available, otherwise a
// freshly allocated task marked as poolable.
func (p *taskPool) acquire() *Task {
	if len(p.free) > 0 {
		t := p.free[0]
		p.free[0] = nil
		p.free = p.free[1:]
		return t
	}
	return &Task{Priority: inertPriority, poolable: true}
}

// release resets a poolable task and appends it to the free list.
// Caller-allocated tasks are left alone.
func (p *taskPool) release(t *Task) {
	if !t.poolable {
		return
	}
	t.reset()
	p.free = append(p.free, t)
}

// shrink evicts entries when the free list has contracted by more than
// the tolerance since the previous call. Comparing against the previous
// size rather than an absolute cap keeps the pool from oscillating
// between allocation and eviction when the submission rate hovers near
// its working size.
func (p *taskPool) shrink() {
	current := len(p.free)
	difference := p.lastSize - current

	// Clear the vacated slots so the evicted tasks become collectable
	// now, not whenever the backing array happens to reallocate.
	for i := 0; len(p.free) > 0 && difference > p.tolerance && i < difference; i++ {
		p.free[0] = nil
		p.free = p.free[1:]
	}

	p.lastSize = current
}

// size returns the number of tasks currently held in the free list.
func (p *taskPool) size() int {
	return len(p.free)
}
