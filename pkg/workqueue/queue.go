package workqueue

// priorityQueue keeps pending tasks ordered by descending priority.
// Mutated only while the owning queue's mutex is held.
type priorityQueue struct {
	items []*Task
}

// insert places the task before the first existing entry whose priority
// is less than or equal to the new task's priority, or at the back if
// no such entry exists.
//
// Within a priority band this makes later submissions run first: the
// scan stops at the first equal-priority entry and splices in front of
// it. Callers relying on ordering among equal priorities get LIFO, and
// the tie-break is pinned down by tests since changing it would silently
// alter scheduling behavior.
func (q *priorityQueue) insert(t *Task) {
	for i, existing := range q.items {
		if existing.Priority <= t.Priority {
			q.items = append(q.items, nil)
			copy(q.items[i+1:], q.items[i:])
			q.items[i] = t
			return
		}
	}
	q.items = append(q.items, t)
}

// front returns the highest-priority pending task without removing it,
// or nil if the queue is empty.
func (q *priorityQueue) front() *Task {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// popFront removes and returns the highest-priority pending task, or
// nil if the queue is empty.
func (q *priorityQueue) popFront() *Task {
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t
}

// remove takes a specific task out of the queue if it is still pending.
// It reports whether the task was found; a task already claimed by a
// worker is not in the queue anymore and cannot be removed.
func (q *priorityQueue) remove(t *Task) bool {
	for i, existing := range q.items {
		if existing == t {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

func (q *priorityQueue) len() int {
	return len(q.items)
}

func (q *priorityQueue) empty() bool {
	return len(q.items) == 0
}
