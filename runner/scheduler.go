package runner

import (
	"context"

	action "github.com/goliatone/go-action"
)

// Executor runs fn on the context named by affinity and returns its
// error. fn receives the context it runs under. A *DispatchError means
// fn never started.
type Executor interface {
	Execute(ctx context.Context, affinity Affinity, priority Priority, fn func(ctx context.Context) error) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, affinity Affinity, priority Priority, fn func(ctx context.Context) error) error

func (f ExecutorFunc) Execute(ctx context.Context, affinity Affinity, priority Priority, fn func(ctx context.Context) error) error {
	return f(ctx, affinity, priority, fn)
}

// Scheduler routes main affinity work to a MainLoop and background work
// to a Pool.
type Scheduler struct {
	main *MainLoop
	pool *Pool
}

func NewScheduler(main *MainLoop, pool *Pool) *Scheduler {
	if main == nil {
		main = NewMainLoop()
	}
	if pool == nil {
		pool = NewPool(0)
	}
	return &Scheduler{main: main, pool: pool}
}

func (s *Scheduler) Main() *MainLoop { return s.main }
func (s *Scheduler) Pool() *Pool     { return s.pool }

func (s *Scheduler) Execute(ctx context.Context, affinity Affinity, priority Priority, fn func(ctx context.Context) error) error {
	if ctx.Err() != nil {
		return &DispatchError{Affinity: affinity, Err: ctx.Err()}
	}
	if affinity == Main {
		return s.main.Invoke(ctx, fn, priority)
	}
	return s.pool.Do(ctx, fn)
}

// Inline runs every callback on the caller goroutine. Useful in tests
// and for hosts without a UI thread.
type Inline struct{}

func (Inline) Execute(ctx context.Context, affinity Affinity, _ Priority, fn func(ctx context.Context) error) error {
	if ctx.Err() != nil {
		return &DispatchError{Affinity: affinity, Err: ctx.Err()}
	}
	if fn == nil {
		return nil
	}
	return action.Guard(func() error { return fn(ctx) })
}
