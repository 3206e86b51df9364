package queue

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/pipeline"
	"github.com/goliatone/go-action/runner"
)

// Manager serializes handles per owner key. Each owner gets a FIFO and
// at most one running handle; different owners run concurrently.
type Manager struct {
	mu       sync.Mutex
	queues   map[string]*ownerQueue
	disposed atomic.Bool
	wg       sync.WaitGroup

	ctx      context.Context
	exec     runner.Executor
	logger   action.Logger
	recorder Recorder
	reporter action.Reporter
}

// NewManager creates a manager that runs stages through exec.
func NewManager(exec runner.Executor, opts ...Option) *Manager {
	if exec == nil {
		exec = runner.Inline{}
	}
	m := &Manager{
		queues:   make(map[string]*ownerQueue),
		ctx:      context.Background(),
		exec:     exec,
		logger:   action.NopLogger{},
		recorder: NopRecorder{},
		reporter: action.NopReporter{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.logger = action.NormalizeLogger(m.logger)
	return m
}

// Enqueue appends h to its owner's queue and starts the queue if it was
// idle. It returns false once the manager is disposed; the caller then
// owns h and must drain it.
func (m *Manager) Enqueue(h *pipeline.Handle) bool {
	if h == nil {
		return false
	}
	owner := h.OwnerKey()

	m.mu.Lock()
	if m.disposed.Load() {
		m.mu.Unlock()
		m.recorder.RecordRejected(owner)
		m.logger.Debug("handle rejected", "owner", owner, "handle_id", h.ID())
		return false
	}

	q, ok := m.queues[owner]
	if !ok {
		q = &ownerQueue{key: owner}
		m.queues[owner] = q
	}
	q.push(h)
	depth := q.depth()

	start := !q.busy
	if start {
		q.busy = true
		m.wg.Add(1)
	}
	m.mu.Unlock()

	m.recorder.RecordEnqueued(owner, depth)
	m.logger.Debug("handle enqueued", "owner", owner, "handle_id", h.ID(), "depth", depth)

	if start {
		go m.drain(q)
	}
	return true
}

// Submit is Enqueue with an error for the rejected case.
func (m *Manager) Submit(h *pipeline.Handle) error {
	if h == nil {
		return pipeline.ErrInvalidStage
	}
	if !m.Enqueue(h) {
		return disposedError(h.OwnerKey(), h.ID())
	}
	return nil
}

func (m *Manager) drain(q *ownerQueue) {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		q.current = nil
		h, ok := q.pop()
		if !ok {
			q.busy = false
			if m.queues[q.key] == q {
				delete(m.queues, q.key)
			}
			m.mu.Unlock()
			return
		}
		q.current = h
		m.mu.Unlock()

		m.runHandle(h)
	}
}

func (m *Manager) runHandle(h *pipeline.Handle) {
	owner := h.OwnerKey()
	defer func() {
		if r := recover(); r != nil {
			err := action.RecoverError(r)
			m.logger.Error("handle escaped its guards", "owner", owner, "handle_id", h.ID(), "error", err)
			action.SafeReport(m.reporter, err, "queue", owner)
		}
	}()

	started := time.Now()
	m.recorder.RecordStarted(owner)

	var ok bool
	drained := m.disposed.Load()
	if drained {
		ok = h.Drain(m.ctx, m.exec)
	} else {
		ok = h.Run(m.ctx, m.exec, m.disposed.Load)
	}

	m.recorder.RecordCompleted(owner, time.Since(started), ok, drained)
	m.logger.Debug("handle completed", "owner", owner, "handle_id", h.ID(), "success", ok, "drained", drained)
}

// Dispose rejects new handles, drains every pending handle through its
// finishers and waits for running handles to finish. Calling it again
// only waits.
func (m *Manager) Dispose(ctx context.Context) error {
	m.mu.Lock()
	if m.disposed.CompareAndSwap(false, true) {
		m.logger.Info("queue manager disposing", "owners", len(m.queues))
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disposed reports whether Dispose was called.
func (m *Manager) Disposed() bool {
	return m.disposed.Load()
}

// Pending returns the number of handles waiting behind the running one.
func (m *Manager) Pending(owner string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[owner]; ok {
		return len(q.pending)
	}
	return 0
}

// Busy reports whether owner has a handle running.
func (m *Manager) Busy(owner string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[owner]; ok {
		return q.busy
	}
	return false
}

// Owners returns the owner keys with live queues, sorted.
func (m *Manager) Owners() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.queues))
	for key := range m.queues {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
