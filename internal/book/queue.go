package book

import (
	"container/heap"

	"github.com/realmfikri/marketsim/internal/types"
)

// orderEntry wraps a resident order for heap operations. It carries a
// monotonic sequence number used only to break ties when price and
// timestamp are both equal, keeping heap ordering stable; the
// sequence never leaves this package.
type orderEntry struct {
	order *types.LimitOrder
	index int
	isBid bool
	seq   int64
}

// sideQueue is a price-time priority min-heap: for bids the entry
// with the highest price (then earliest ts, then earliest seq) sorts
// to the root; for asks the lowest price sorts to the root.
type sideQueue struct {
	entries []*orderEntry
	isBid   bool
}

func (q *sideQueue) Len() int { return len(q.entries) }

func (q *sideQueue) Less(i, j int) bool {
	a, b := q.entries[i], q.entries[j]
	if a.order.Price != b.order.Price {
		if q.isBid {
			return a.order.Price > b.order.Price
		}
		return a.order.Price < b.order.Price
	}
	if a.order.Ts != b.order.Ts {
		return a.order.Ts < b.order.Ts
	}
	return a.seq < b.seq
}

func (q *sideQueue) Swap(i, j int) {
	q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
	q.entries[i].index = i
	q.entries[j].index = j
}

func (q *sideQueue) Push(x any) {
	e := x.(*orderEntry)
	e.index = len(q.entries)
	q.entries = append(q.entries, e)
}

func (q *sideQueue) Pop() any {
	old := q.entries
	n := len(old)
	e := old[n-1]
	e.index = -1
	q.entries = old[:n-1]
	return e
}

func (q *sideQueue) peek() *orderEntry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

func (q *sideQueue) removeTop() *orderEntry {
	return heap.Pop(q).(*orderEntry)
}

func (q *sideQueue) remove(e *orderEntry) *orderEntry {
	return heap.Remove(q, e.index).(*orderEntry)
}

func (q *sideQueue) fix(e *orderEntry) {
	heap.Fix(q, e.index)
}
