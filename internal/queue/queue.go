// Package queue implements the kernel's time-priority queue: a
// min-heap over messages keyed by delivery time, augmented with a
// monotone insertion counter so that messages enqueued with the same
// delivery time pop in FIFO order. This generalizes the teacher
// engine's price-time heap (engine/queue.go) from order priority to
// message delivery-time priority.
package queue

import (
	"container/heap"

	"github.com/realmfikri/marketsim/internal/types"
)

// entry wraps a Message for heap bookkeeping.
type entry struct {
	msg   types.Message
	seq   int64
	index int
}

// innerHeap is the container/heap.Interface implementation; TimeQueue
// wraps it to keep the insertion counter private.
type innerHeap []*entry

func (h innerHeap) Len() int { return len(h) }

func (h innerHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.msg.At != b.msg.At {
		return a.msg.At < b.msg.At
	}
	return a.seq < b.seq
}

func (h innerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *innerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimeQueue is a min-priority container over messages keyed by
// delivery time ("At"), with stable FIFO ordering among ties.
// Push/Pop are O(log N); Peek is O(1).
type TimeQueue struct {
	h       innerHeap
	nextSeq int64
}

// New builds an empty TimeQueue.
func New() *TimeQueue {
	q := &TimeQueue{}
	heap.Init(&q.h)
	return q
}

// Push enqueues msg, preserving insertion order as the tie-break for
// messages sharing the same delivery time.
func (q *TimeQueue) Push(msg types.Message) {
	heap.Push(&q.h, &entry{msg: msg, seq: q.nextSeq})
	q.nextSeq++
}

// Peek returns the message with the smallest delivery time without
// removing it. ok is false if the queue is empty.
func (q *TimeQueue) Peek() (types.Message, bool) {
	if len(q.h) == 0 {
		return types.Message{}, false
	}
	return q.h[0].msg, true
}

// Pop removes and returns the message with the smallest delivery
// time, breaking ties by insertion order.
func (q *TimeQueue) Pop() (types.Message, bool) {
	if len(q.h) == 0 {
		return types.Message{}, false
	}
	e := heap.Pop(&q.h).(*entry)
	return e.msg, true
}

// Len returns the number of queued messages.
func (q *TimeQueue) Len() int {
	return len(q.h)
}

// Clear empties the queue, discarding all pending messages.
func (q *TimeQueue) Clear() {
	q.h = nil
	heap.Init(&q.h)
}
