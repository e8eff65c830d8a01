package scheduler

import (
	"container/heap"

	"github.com/corepipeio/corepipe/ptime"
)

// WorkItem is a unit of scheduled work: an action due no earlier than
// dueTime, scoped to a SchedulerContext so quiescence and stop operations
// can target just that context's items.
type WorkItem struct {
	action  func(signal *CancelSignal) error
	dueTime ptime.Time
	ctx     *SchedulerContext

	seq uint64 // insertion order, breaks dueTime ties FIFO
}

// workQueue is a min-heap of WorkItem ordered by dueTime, then by insertion
// order, adapted from the teacher event loop's timerHeap
// (eventloop/loop.go) generalized from time.Time to ptime.Time and from a
// bare task to a (action, dueTime, context) tuple per spec §4.2.
type workQueue []*WorkItem

func (q workQueue) Len() int { return len(q) }

func (q workQueue) Less(i, j int) bool {
	if q[i].dueTime != q[j].dueTime {
		return q[i].dueTime < q[j].dueTime
	}
	return q[i].seq < q[j].seq
}

func (q workQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *workQueue) Push(x any) { *q = append(*q, x.(*WorkItem)) }

func (q *workQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return x
}

var _ heap.Interface = (*workQueue)(nil)
