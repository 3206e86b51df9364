package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/flow"
	"github.com/goliatone/go-action/pipeline"
	"github.com/goliatone/go-action/runner"
)

type countingOwner struct {
	key    string
	starts atomic.Int32
	stops  atomic.Int32
}

func (o *countingOwner) OwnerKey() string { return o.key }
func (o *countingOwner) StartLoading()    { o.starts.Add(1) }
func (o *countingOwner) StopLoading()     { o.stops.Add(1) }

type counters struct {
	before, canExecute, execute, completed, after, dispose atomic.Int32
}

type countingFlow struct {
	flow.Base
	c       *counters
	gate    bool
	execErr error
	work    time.Duration
}

func (f *countingFlow) Before(context.Context) error {
	f.c.before.Add(1)
	return nil
}

func (f *countingFlow) CanExecute(context.Context) bool {
	f.c.canExecute.Add(1)
	return f.gate
}

func (f *countingFlow) Execute(context.Context) (bool, error) {
	f.c.execute.Add(1)
	if f.work > 0 {
		time.Sleep(f.work)
	}
	return f.execErr == nil, f.execErr
}

func (f *countingFlow) ExecuteCompleted(context.Context) error {
	f.c.completed.Add(1)
	return nil
}

func (f *countingFlow) After(context.Context) error {
	f.c.after.Add(1)
	return nil
}

func (f *countingFlow) Dispose(context.Context) error {
	f.c.dispose.Add(1)
	return nil
}

type errorLog struct {
	mu     sync.Mutex
	errs   []error
	titles []string
}

func (l *errorLog) Report(err error, title, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
	l.titles = append(l.titles, title)
}

func (l *errorLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}

func newController(t *testing.T, opts ...Option) (*Controller, *errorLog) {
	t.Helper()
	rep := &errorLog{}
	opts = append([]Option{
		WithHooks(flow.NewHooks()),
		WithReporter(rep),
		WithWorkers(4),
	}, opts...)
	c := New(opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c, rep
}

func wait(t *testing.T, ok func(context.Context) (bool, error)) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := ok(ctx)
	require.NoError(t, err)
	return v
}

func TestInvokeActionAsyncSuccess(t *testing.T) {
	c, rep := newController(t)
	cnt := &counters{}
	var seenID int
	require.NoError(t, c.Register("orders::save", func() flow.Flow {
		return &probeWithEntry{countingFlow: countingFlow{c: cnt, gate: true}, seen: &seenID}
	}))

	owner := &countingOwner{key: "view-1"}
	future := c.InvokeActionAsync(context.Background(), owner, "orders::save", action.With("id", 42))

	assert.True(t, wait(t, future.Wait))
	assert.Equal(t, 42, seenID)
	assert.Equal(t, int32(1), cnt.completed.Load())
	assert.Equal(t, int32(1), owner.starts.Load())
	assert.Equal(t, int32(1), owner.stops.Load())
	assert.Zero(t, rep.count())
}

type probeWithEntry struct {
	countingFlow
	seen *int
}

func (p *probeWithEntry) Execute(ctx context.Context) (bool, error) {
	id, err := action.Get[int](p.Context(), "id")
	if err != nil {
		return false, err
	}
	*p.seen = id
	return p.countingFlow.Execute(ctx)
}

func TestGateFalseScenario(t *testing.T) {
	c, rep := newController(t)
	cnt := &counters{}
	require.NoError(t, c.Register("orders::save", func() flow.Flow {
		return &countingFlow{c: cnt, gate: false}
	}))

	owner := &countingOwner{key: "view-1"}
	ok := wait(t, c.InvokeActionAsync(context.Background(), owner, "orders::save").Wait)

	assert.False(t, ok)
	assert.Equal(t, int32(1), owner.starts.Load())
	assert.Equal(t, int32(1), owner.stops.Load())
	assert.Equal(t, int32(1), cnt.dispose.Load())
	assert.Zero(t, cnt.execute.Load())
	assert.Zero(t, cnt.completed.Load())
	assert.Zero(t, rep.count())
}

func TestExecuteErrorScenario(t *testing.T) {
	c, rep := newController(t)
	cnt := &counters{}
	boom := errors.New("invalid operation")
	require.NoError(t, c.Register("orders::save", func() flow.Flow {
		return &countingFlow{c: cnt, gate: true, execErr: boom}
	}))

	owner := &countingOwner{key: "view-1"}
	var ok bool
	assert.NotPanics(t, func() {
		ok = wait(t, c.InvokeActionAsync(context.Background(), owner, "orders::save").Wait)
	})

	assert.False(t, ok)
	assert.Zero(t, cnt.completed.Load())
	require.Equal(t, 1, rep.count())
	assert.ErrorIs(t, rep.errs[0], boom)
	assert.Equal(t, "orders::save", rep.titles[0])
	assert.Equal(t, owner.starts.Load(), owner.stops.Load())
}

func TestConstructionFailuresAreReported(t *testing.T) {
	c, rep := newController(t)
	require.NoError(t, c.Register("explodes", func() flow.Flow { panic("ctor") }))

	owner := &countingOwner{key: "view-1"}

	ok := wait(t, c.InvokeActionAsync(context.Background(), owner, "missing").Wait)
	assert.False(t, ok)
	assert.True(t, flow.IsUnknownAction(rep.errs[0]))

	ok = wait(t, c.InvokeActionAsync(context.Background(), owner, "explodes").Wait)
	assert.False(t, ok)

	ok = wait(t, c.InvokeActionAsync(context.Background(), owner, "explodes", action.With("bad", &countingOwner{})).Wait)
	assert.False(t, ok)

	ok = wait(t, c.InvokeActionAsync(context.Background(), nil, "explodes").Wait)
	assert.False(t, ok)

	assert.Equal(t, 4, rep.count())
	assert.Empty(t, c.Manager().Owners())
	assert.Zero(t, owner.starts.Load())
}

func TestOwnerHandlesAreSerialized(t *testing.T) {
	c, _ := newController(t)

	var mu sync.Mutex
	var order []string

	require.NoError(t, c.Register("slow", func() flow.Flow {
		return &recordingFlow{id: "slow", work: 50 * time.Millisecond, mu: &mu, order: &order}
	}))
	require.NoError(t, c.Register("fast", func() flow.Flow {
		return &recordingFlow{id: "fast", mu: &mu, order: &order}
	}))

	owner := action.NewStaticOwner("A")
	first := c.InvokeActionAsync(context.Background(), owner, "slow")
	second := c.InvokeActionAsync(context.Background(), owner, "fast")

	assert.True(t, wait(t, second.Wait))
	assert.True(t, wait(t, first.Wait))
	assert.Equal(t, []string{
		"slow:before", "slow:execute", "slow:dispose",
		"fast:before", "fast:execute", "fast:dispose",
	}, order)
	assert.False(t, owner.Loading.Loading())
}

type recordingFlow struct {
	flow.Base
	id    string
	work  time.Duration
	mu    *sync.Mutex
	order *[]string
}

func (r *recordingFlow) add(step string) {
	r.mu.Lock()
	*r.order = append(*r.order, r.id+":"+step)
	r.mu.Unlock()
}

func (r *recordingFlow) Before(context.Context) error {
	r.add("before")
	return nil
}

func (r *recordingFlow) Execute(context.Context) (bool, error) {
	time.Sleep(r.work)
	r.add("execute")
	return true, nil
}

func (r *recordingFlow) Dispose(context.Context) error {
	r.add("dispose")
	return nil
}

func TestTwoOwnersRunConcurrently(t *testing.T) {
	c, _ := newController(t)
	cnt := &counters{}
	work := 100 * time.Millisecond
	require.NoError(t, c.Register("slow", func() flow.Flow {
		return &countingFlow{c: cnt, gate: true, work: work}
	}))

	started := time.Now()
	a := c.InvokeActionAsync(context.Background(), &countingOwner{key: "A"}, "slow")
	b := c.InvokeActionAsync(context.Background(), &countingOwner{key: "B"}, "slow")

	assert.True(t, wait(t, a.Wait))
	assert.True(t, wait(t, b.Wait))
	assert.Less(t, time.Since(started), 2*work-10*time.Millisecond)
}

type typedFlow struct {
	flow.Base
}

func TestGenericInvoke(t *testing.T) {
	c, _ := newController(t)
	name, err := flow.Register(c.Registry(), func() *typedFlow { return &typedFlow{} })
	require.NoError(t, err)
	assert.Equal(t, "controller::typed_flow", name)

	owner := action.NewStaticOwner("A")
	assert.True(t, wait(t, InvokeAsync[*typedFlow](context.Background(), c, owner).Wait))
	Invoke[*typedFlow](context.Background(), c, owner)
}

func TestShutdownDrainsAndRejects(t *testing.T) {
	c, _ := newController(t)
	cnt := &counters{}
	release := make(chan struct{})
	require.NoError(t, c.Register("blocking", func() flow.Flow {
		return &blockingFlow{countingFlow: countingFlow{c: cnt, gate: true}, release: release}
	}))
	require.NoError(t, c.Register("plain", func() flow.Flow {
		return &countingFlow{c: cnt, gate: true}
	}))

	owner := &countingOwner{key: "A"}
	first := c.InvokeActionAsync(context.Background(), owner, "blocking")
	require.Eventually(t, func() bool { return cnt.execute.Load() == 1 }, time.Second, time.Millisecond)

	pending := c.InvokeActionAsync(context.Background(), owner, "plain")

	done := make(chan error, 1)
	go func() { done <- c.Shutdown(context.Background()) }()
	require.Eventually(t, c.Manager().Disposed, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, <-done)

	assert.False(t, wait(t, first.Wait))
	assert.False(t, wait(t, pending.Wait))

	late := c.InvokeActionAsync(context.Background(), owner, "plain")
	assert.False(t, wait(t, late.Wait))

	assert.Equal(t, int32(1), cnt.execute.Load())
	assert.Zero(t, cnt.completed.Load())
	assert.Equal(t, int32(3), cnt.dispose.Load())
	assert.Equal(t, owner.starts.Load(), owner.stops.Load())
}

func TestComposeFailureStillDisposes(t *testing.T) {
	c, rep := newController(t)
	cnt := &counters{}
	require.NoError(t, c.Register("plain", func() flow.Flow { return &countingFlow{c: cnt, gate: true} }))

	owner := &countingOwner{key: "  "}
	ok := wait(t, c.InvokeActionAsync(context.Background(), owner, "plain").Wait)
	assert.False(t, ok)

	assert.Equal(t, int32(1), cnt.dispose.Load())
	assert.Zero(t, cnt.before.Load())
	assert.Zero(t, owner.starts.Load())
	assert.Equal(t, 1, rep.count())
	assert.Empty(t, c.Manager().Owners())
}

func TestShutdownWaitsForRejectedDrains(t *testing.T) {
	c, _ := newController(t)
	cnt := &counters{}
	require.NoError(t, c.Register("plain", func() flow.Flow { return &countingFlow{c: cnt, gate: true} }))

	require.NoError(t, c.Shutdown(context.Background()))

	owner := &countingOwner{key: "view-late"}
	futures := make([]*pipeline.Future, 0, 5)
	for i := 0; i < 5; i++ {
		futures = append(futures, c.InvokeActionAsync(context.Background(), owner, "plain"))
	}

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, int32(5), cnt.dispose.Load())
	assert.Equal(t, owner.starts.Load(), owner.stops.Load())

	for _, f := range futures {
		assert.False(t, wait(t, f.Wait))
	}
}

type blockingFlow struct {
	countingFlow
	release chan struct{}
}

func (b *blockingFlow) Execute(ctx context.Context) (bool, error) {
	ok, err := b.countingFlow.Execute(ctx)
	<-b.release
	return ok, err
}

func TestExecutorOverride(t *testing.T) {
	c, _ := newController(t, WithExecutor(runner.Inline{}))
	assert.Nil(t, c.MainLoop())
	require.NoError(t, c.Register("x", func() flow.Flow { return &typedFlow{} }))
	assert.True(t, wait(t, c.InvokeActionAsync(context.Background(), action.NewStaticOwner("A"), "x").Wait))
}
