// Package queue implements the shared work queue feeding the crawl workers.
package queue

import (
	"sync"
	"time"
)

// Task is one unit of work. A task with Stop set is a termination signal and
// must not be acknowledged with TaskDone.
type Task struct {
	Code string
	Stop bool
}

// TaskQueue is a thread-safe FIFO queue with join semantics: Join blocks
// until every pushed task has been popped and acknowledged via TaskDone.
// Stop tasks bypass the unfinished counter so they can be pushed after Join
// returns without re-arming it.
type TaskQueue struct {
	mu         sync.Mutex
	cond       *sync.Cond
	tasks      chan Task
	unfinished int
}

// New creates a queue able to hold up to capacity tasks without blocking.
func New(capacity int) *TaskQueue {
	q := &TaskQueue{
		tasks: make(chan Task, capacity),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a work task and increments the unfinished counter.
func (q *TaskQueue) Push(code string) {
	q.mu.Lock()
	q.unfinished++
	q.mu.Unlock()
	q.tasks <- Task{Code: code}
}

// PushStop enqueues one termination signal. Callers push one per worker
// after Join has returned.
func (q *TaskQueue) PushStop() {
	q.tasks <- Task{Stop: true}
}

// Pop removes the next task, waiting up to timeout. The second return value
// is false on timeout, which callers treat as "queue drained" rather than a
// stop signal.
func (q *TaskQueue) Pop(timeout time.Duration) (Task, bool) {
	select {
	case task := <-q.tasks:
		return task, true
	case <-time.After(timeout):
		return Task{}, false
	}
}

// TaskDone acknowledges one completed work task. Every Pop of a non-stop
// task must be matched by exactly one TaskDone on every exit path.
func (q *TaskQueue) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished > 0 {
		q.unfinished--
	}
	if q.unfinished == 0 {
		q.cond.Broadcast()
	}
}

// Join blocks until the unfinished counter reaches zero.
func (q *TaskQueue) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.unfinished > 0 {
		q.cond.Wait()
	}
}

// Size returns the number of tasks currently buffered.
func (q *TaskQueue) Size() int {
	return len(q.tasks)
}

// Unfinished returns the number of pushed tasks not yet acknowledged.
func (q *TaskQueue) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}
