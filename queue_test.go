package shard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskQueueUrgentDrainsFirst(t *testing.T) {
	r := require.New(t)

	var q taskQueue
	var order []string

	q.schedule(TaskFunc(func() { order = append(order, "normal-1") }))
	q.schedule(TaskFunc(func() { order = append(order, "normal-2") }))
	q.scheduleUrgent(TaskFunc(func() { order = append(order, "urgent-1") }))
	q.scheduleUrgent(TaskFunc(func() { order = append(order, "urgent-2") }))

	for {
		task, ok := q.pop()
		if !ok {
			break
		}
		task.RunAndDispose()
	}

	r.Equal([]string{"urgent-1", "urgent-2", "normal-1", "normal-2"}, order)
}

func TestTaskQueueFIFOWithinLane(t *testing.T) {
	r := require.New(t)

	var q taskQueue
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.schedule(TaskFunc(func() { order = append(order, i) }))
	}

	for {
		task, ok := q.pop()
		if !ok {
			break
		}
		task.RunAndDispose()
	}

	r.Equal([]int{0, 1, 2, 3, 4}, order)
}

func TestTaskQueueLen(t *testing.T) {
	r := require.New(t)

	var q taskQueue
	r.Zero(q.len())

	q.schedule(TaskFunc(func() {}))
	q.scheduleUrgent(TaskFunc(func() {}))
	r.Equal(2, q.len())

	q.pop()
	r.Equal(1, q.len())
}
