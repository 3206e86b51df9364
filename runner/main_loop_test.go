package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedLoop(t *testing.T, opts ...MainOption) *MainLoop {
	t.Helper()
	loop := NewMainLoop(opts...)
	loop.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = loop.Stop(ctx)
	})
	return loop
}

func TestMainLoopOrdersByPriorityThenFIFO(t *testing.T) {
	loop := NewMainLoop()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) {
		return func(context.Context) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	require.NoError(t, loop.RunOnMainThread(record("low"), PriorityLow))
	require.NoError(t, loop.RunOnMainThread(record("normal-1"), PriorityNormal))
	require.NoError(t, loop.RunOnMainThread(record("high"), PriorityHigh))
	require.NoError(t, loop.RunOnMainThread(record("normal-2"), PriorityNormal))
	assert.Equal(t, 4, loop.Pending())

	loop.Start()
	require.NoError(t, loop.Stop(context.Background()))

	assert.Equal(t, []string{"high", "normal-1", "normal-2", "low"}, order)
}

func TestMainLoopInvokeRunsOnLoopGoroutine(t *testing.T) {
	loop := startedLoop(t)

	assert.False(t, loop.OnMainThread(context.Background()))

	var onMain bool
	err := loop.Invoke(context.Background(), func(ctx context.Context) error {
		onMain = loop.OnMainThread(ctx)
		return nil
	}, PriorityNormal)
	require.NoError(t, err)
	assert.True(t, onMain)
}

func TestMainLoopInvokeIsReentrant(t *testing.T) {
	loop := startedLoop(t)

	var inner bool
	err := loop.Invoke(context.Background(), func(ctx context.Context) error {
		return loop.Invoke(ctx, func(context.Context) error {
			inner = true
			return nil
		}, PriorityHigh)
	}, PriorityNormal)
	require.NoError(t, err)
	assert.True(t, inner)
}

func TestMainLoopMarkerIsPerLoop(t *testing.T) {
	first := startedLoop(t)
	second := startedLoop(t)

	var onFirst, onSecond bool
	err := first.Invoke(context.Background(), func(ctx context.Context) error {
		onFirst = first.OnMainThread(ctx)
		onSecond = second.OnMainThread(ctx)
		return second.Invoke(ctx, func(inner context.Context) error {
			onSecond = second.OnMainThread(inner)
			return nil
		}, PriorityNormal)
	}, PriorityNormal)
	require.NoError(t, err)
	assert.True(t, onFirst)
	assert.True(t, onSecond)
	assert.False(t, first.OnMainThread(context.Background()))
}

func TestRunOnMainThreadPassesLoopContext(t *testing.T) {
	loop := NewMainLoop()

	var onMain bool
	require.NoError(t, loop.RunOnMainThread(func(ctx context.Context) {
		onMain = loop.OnMainThread(ctx)
	}, PriorityNormal))

	loop.Start()
	require.NoError(t, loop.Stop(context.Background()))
	assert.True(t, onMain)
}

func TestMainLoopInvokeReturnsErrorsAndPanics(t *testing.T) {
	loop := startedLoop(t)

	err := loop.Invoke(context.Background(), func(context.Context) error {
		return errors.New("boom")
	}, PriorityNormal)
	assert.EqualError(t, err, "boom")

	err = loop.Invoke(context.Background(), func(context.Context) error {
		panic("kaboom")
	}, PriorityNormal)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	err = loop.Invoke(context.Background(), func(context.Context) error { return nil }, PriorityNormal)
	assert.NoError(t, err)
}

func TestMainLoopInvokeDropsCanceledWork(t *testing.T) {
	loop := NewMainLoop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	err := loop.Invoke(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	}, PriorityNormal)

	var dispatch *DispatchError
	require.ErrorAs(t, err, &dispatch)
	assert.ErrorIs(t, err, context.Canceled)

	loop.Start()
	require.NoError(t, loop.Stop(context.Background()))
	assert.False(t, ran.Load())
}

func TestMainLoopRejectsAfterStop(t *testing.T) {
	loop := NewMainLoop()
	loop.Start()
	require.NoError(t, loop.Stop(context.Background()))

	err := loop.RunOnMainThread(func(context.Context) {}, PriorityNormal)
	assert.ErrorIs(t, err, ErrMainLoopStopped)

	err = loop.Invoke(context.Background(), func(context.Context) error { return nil }, PriorityNormal)
	var dispatch *DispatchError
	require.ErrorAs(t, err, &dispatch)
	assert.Equal(t, Main, dispatch.Affinity)
}

func TestMainLoopQueueLimit(t *testing.T) {
	loop := NewMainLoop(WithQueueLimit(1))

	require.NoError(t, loop.RunOnMainThread(func(context.Context) {}, PriorityNormal))
	err := loop.RunOnMainThread(func(context.Context) {}, PriorityNormal)
	assert.ErrorIs(t, err, ErrMainQueueFull)

	loop.Start()
	require.NoError(t, loop.Stop(context.Background()))
}
