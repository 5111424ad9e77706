package dhcpeloop

import (
	"container/heap"
	"time"
)

// TimerKey identifies a timer. It stands in for the C original's
// (queue-id, callback, argument) triple: Go callbacks are not
// comparable, so Name takes the callback's place as the caller-chosen
// symbolic identity ("retransmit", "t1", "t2", "expire", ...) that
// makes a timer addressable for replacement or targeted removal.
type TimerKey struct {
	Queue int
	Name  string
}

// TimerFunc is invoked when a timer fires, with the loop's current
// notion of "now".
type TimerFunc func(now time.Time)

// timerEntry is one scheduled callback. index is maintained by
// container/heap and is -1 once popped or removed.
type timerEntry struct {
	key   TimerKey
	when  time.Time
	seq   uint64
	fn    TimerFunc
	index int
}

// timerHeap orders entries chronologically; entries due at the same
// instant fire in insertion order, per spec.md §4.4 "Ordering
// guarantees".
type timerHeap []*timerEntry

var _ heap.Interface = (*timerHeap)(nil)

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}

	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]

	return e
}
