package pipeline

import (
	"context"
	"sync"
)

// Future carries the success flag of one handle. It resolves once.
type Future struct {
	mu       sync.RWMutex
	value    bool
	resolved bool
	done     chan struct{}
	metadata map[string]any
}

func NewFuture() *Future {
	return &Future{
		done:     make(chan struct{}),
		metadata: make(map[string]any),
	}
}

// Resolved returns a future that already holds value.
func Resolved(value bool) *Future {
	f := NewFuture()
	f.resolve(value)
	return f
}

func (f *Future) resolve(value bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved {
		return false
	}
	f.value = value
	f.resolved = true
	close(f.done)
	return true
}

// Done is closed when the future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Value returns the result and whether it is final.
func (f *Future) Value() (bool, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value, f.resolved
}

// Wait blocks until the future resolves or ctx ends.
func (f *Future) Wait(ctx context.Context) (bool, error) {
	select {
	case <-f.done:
		v, _ := f.Value()
		return v, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (f *Future) SetMetadata(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadata[key] = value
}

func (f *Future) Metadata(key string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	val, ok := f.metadata[key]
	return val, ok
}

type handleKey struct{}

// ContextWithHandle exposes h to the stages it runs.
func ContextWithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// HandleFromContext returns the handle running the current stage, if any.
func HandleFromContext(ctx context.Context) *Handle {
	if h, ok := ctx.Value(handleKey{}).(*Handle); ok {
		return h
	}
	return nil
}
