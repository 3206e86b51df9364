package runner

import (
	"context"
	"runtime"

	action "github.com/goliatone/go-action"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many background callbacks run at once.
type Pool struct {
	sem    *semaphore.Weighted
	size   int64
	logger action.Logger
}

// NewPool creates a pool with size slots, or one slot per CPU when
// size is not positive.
func NewPool(size int, opts ...PoolOption) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   int64(size),
		logger: action.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = action.NormalizeLogger(p.logger)
	return p
}

// Size returns the number of slots.
func (p *Pool) Size() int { return int(p.size) }

// Do waits for a slot and runs fn on the calling goroutine.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return &DispatchError{Affinity: Background, Err: err}
	}
	defer p.sem.Release(1)
	return action.Guard(func() error { return fn(ctx) })
}

// Go waits for a slot and runs fn on a new goroutine. Failures are
// passed to onErr when it is set.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context) error, onErr func(error)) error {
	if fn == nil {
		return nil
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return &DispatchError{Affinity: Background, Err: err}
	}
	runCtx := offLoop(ctx)
	go func() {
		defer p.sem.Release(1)
		if err := action.Guard(func() error { return fn(runCtx) }); err != nil {
			p.logger.Debug("background callback failed", "error", err)
			if onErr != nil {
				onErr(err)
			}
		}
	}()
	return nil
}

// Wait blocks until every slot is free or ctx ends.
func (p *Pool) Wait(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		return err
	}
	p.sem.Release(p.size)
	return nil
}
