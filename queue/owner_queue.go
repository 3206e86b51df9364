package queue

import "github.com/goliatone/go-action/pipeline"

// ownerQueue holds the pending handles of one owner. Guarded by the
// manager mutex.
type ownerQueue struct {
	key     string
	pending []*pipeline.Handle
	current *pipeline.Handle
	busy    bool
}

func (q *ownerQueue) push(h *pipeline.Handle) {
	q.pending = append(q.pending, h)
}

func (q *ownerQueue) pop() (*pipeline.Handle, bool) {
	if len(q.pending) == 0 {
		return nil, false
	}
	h := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return h, true
}

// depth counts pending handles plus the running one.
func (q *ownerQueue) depth() int {
	n := len(q.pending)
	if q.current != nil {
		n++
	}
	return n
}
