package runner

import (
	"container/heap"
	"context"
	"sync"

	action "github.com/goliatone/go-action"
)

// MainLoop is the single UI-affine execution context. Callbacks run one
// at a time on a dedicated goroutine, highest priority first and FIFO
// within a priority.
type MainLoop struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    priorityQueue
	seq      uint64
	stopping bool
	limit    int

	startOnce sync.Once
	done      chan struct{}

	logger action.Logger
}

// NewMainLoop creates a loop. Call Start before expecting callbacks to run.
func NewMainLoop(opts ...MainOption) *MainLoop {
	m := &MainLoop{
		done:   make(chan struct{}),
		logger: action.NopLogger{},
	}
	m.cond = sync.NewCond(&m.mu)
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.logger = action.NormalizeLogger(m.logger)
	return m
}

// Start launches the loop goroutine. Calling it again is a no-op.
func (m *MainLoop) Start() {
	m.startOnce.Do(func() {
		ready := make(chan struct{})
		go m.run(ready)
		<-ready
	})
}

// Stop refuses new callbacks, runs the ones already queued and waits for
// the loop to exit or ctx to end.
func (m *MainLoop) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopping = true
	m.cond.Broadcast()
	m.mu.Unlock()

	m.Start()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type loopKey struct{}

// OnMainThread reports whether ctx belongs to a callback running on this
// loop. Callbacks receive such a context from Invoke and RunOnMainThread.
func (m *MainLoop) OnMainThread(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	loop, _ := ctx.Value(loopKey{}).(*MainLoop)
	return loop == m
}

func (m *MainLoop) bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, loopKey{}, m)
}

// offLoop clears the loop marker for callbacks moved to another goroutine.
func offLoop(ctx context.Context) context.Context {
	if _, ok := ctx.Value(loopKey{}).(*MainLoop); !ok {
		return ctx
	}
	return context.WithValue(ctx, loopKey{}, (*MainLoop)(nil))
}

// Pending returns the number of queued callbacks.
func (m *MainLoop) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// RunOnMainThread queues fn without waiting for it.
func (m *MainLoop) RunOnMainThread(fn func(ctx context.Context), priority Priority) error {
	if fn == nil {
		return nil
	}
	_, err := m.post(context.Background(), func(ctx context.Context) error {
		fn(ctx)
		return nil
	}, priority)
	return err
}

// Invoke runs fn on the loop and waits for it. When already on the loop
// (ctx carries the loop marker) it runs inline. If ctx ends before fn starts, fn is dropped and the
// context error is returned; once fn started Invoke waits for it.
func (m *MainLoop) Invoke(ctx context.Context, fn func(ctx context.Context) error, priority Priority) error {
	if fn == nil {
		return nil
	}
	if m.OnMainThread(ctx) {
		return action.Guard(func() error { return fn(ctx) })
	}

	item, err := m.post(ctx, fn, priority)
	if err != nil {
		return err
	}

	select {
	case <-item.done:
		return item.err
	case <-ctx.Done():
		if item.claim(itemCanceled) {
			return &DispatchError{Affinity: Main, Err: ctx.Err()}
		}
		<-item.done
		return item.err
	}
}

func (m *MainLoop) post(ctx context.Context, fn func(ctx context.Context) error, priority Priority) (*mainItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopping {
		return nil, &DispatchError{Affinity: Main, Err: ErrMainLoopStopped}
	}
	if m.limit > 0 && m.queue.Len() >= m.limit {
		return nil, &DispatchError{Affinity: Main, Err: ErrMainQueueFull}
	}

	m.seq++
	item := &mainItem{
		ctx:      m.bind(ctx),
		fn:       fn,
		priority: priority,
		seq:      m.seq,
		done:     make(chan struct{}),
	}
	heap.Push(&m.queue, item)
	m.cond.Signal()
	return item, nil
}

func (m *MainLoop) next() (*mainItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.queue.Len() == 0 && !m.stopping {
		m.cond.Wait()
	}
	if m.queue.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&m.queue).(*mainItem), true
}

func (m *MainLoop) run(ready chan<- struct{}) {
	close(ready)
	defer close(m.done)

	for {
		item, ok := m.next()
		if !ok {
			m.logger.Debug("main loop exited")
			return
		}
		if !item.claim(itemRunning) {
			continue
		}
		item.err = action.Guard(func() error { return item.fn(item.ctx) })
		if item.err != nil {
			m.logger.Debug("main loop callback failed", "error", item.err)
		}
		close(item.done)
	}
}
