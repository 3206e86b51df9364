package runner

import (
	"context"
	"sync/atomic"
)

const (
	itemPending int32 = iota
	itemRunning
	itemCanceled
)

type mainItem struct {
	ctx      context.Context
	fn       func(ctx context.Context) error
	priority Priority
	seq      uint64
	state    atomic.Int32
	err      error
	done     chan struct{}
}

// claim moves the item from pending to target. Only one of the loop and
// a canceling waiter can win.
func (i *mainItem) claim(target int32) bool {
	return i.state.CompareAndSwap(itemPending, target)
}

// priorityQueue implements heap.Interface. Higher priority pops first,
// equal priorities pop in submission order.
type priorityQueue []*mainItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority > pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(*mainItem))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[0 : n-1]
	return item
}
