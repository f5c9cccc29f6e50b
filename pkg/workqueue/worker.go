package workqueue

// runWorker is the main loop for one background worker. It claims the
// highest-priority pending task under the queue mutex, runs it with the
// mutex released so long tasks never block other workers or
// submissions, and signals completion for drain waiters.
func (q *workQueue) runWorker(index int) {
	defer q.workerWg.Done()

	for {
		q.mu.Lock()
		for !q.shutdown && (q.paused || q.idle || q.queue.empty()) {
			q.cond.Wait()
		}
		if q.shutdown {
			q.mu.Unlock()
			return
		}

		task := q.queue.popFront()
		q.mu.Unlock()

		q.runTask(task, index)

		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}
