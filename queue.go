package shard

import (
	"github.com/gammazero/deque"
)

// taskQueue is the scheduler's task queue: two injection endpoints,
// normal (tail) and urgent (also its own tail, but drained entirely
// before any normal-lane task is considered — an explicit priority
// override, FIFO within each lane). Backed by gammazero/deque.
type taskQueue struct {
	normal deque.Deque[Task]
	urgent deque.Deque[Task]
}

// schedule enqueues t at the tail of the normal lane.
func (q *taskQueue) schedule(t Task) {
	q.normal.PushBack(t)
}

// scheduleUrgent enqueues t at the tail of the urgent lane.
func (q *taskQueue) scheduleUrgent(t Task) {
	q.urgent.PushBack(t)
}

// pop removes and returns the next task to run: the whole urgent lane
// drains before any normal-lane task is considered.
func (q *taskQueue) pop() (Task, bool) {
	if q.urgent.Len() > 0 {
		return q.urgent.PopFront(), true
	}
	if q.normal.Len() > 0 {
		return q.normal.PopFront(), true
	}
	return nil, false
}

// len reports the total number of tasks still queued across both
// lanes.
func (q *taskQueue) len() int {
	return q.urgent.Len() + q.normal.Len()
}
