package flow

import (
	"context"
	"fmt"
	"sync/atomic"

	apperrors "github.com/goliatone/go-errors"
	"github.com/looplab/fsm"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/pipeline"
)

// State is a lifecycle state of one flow invocation.
type State string

const (
	StateCreated     State = "created"
	StateBefore      State = "before"
	StateGateChecked State = "gate_checked"
	StateExecuting   State = "executing"
	StateCompleting  State = "completing"
	StateAfter       State = "after"
	StateFinishing   State = "finishing"
	StateTerminal    State = "terminal"
)

const (
	eventBefore    = "before"
	eventCheck     = "check"
	eventExecute   = "execute"
	eventComplete  = "complete"
	eventAfter     = "after"
	eventFinish    = "finish"
	eventTerminate = "terminate"
)

func lifecycleEvents() fsm.Events {
	return fsm.Events{
		{Name: eventBefore, Src: []string{string(StateCreated)}, Dst: string(StateBefore)},
		{Name: eventCheck, Src: []string{string(StateBefore)}, Dst: string(StateGateChecked)},
		{Name: eventExecute, Src: []string{string(StateGateChecked)}, Dst: string(StateExecuting)},
		{Name: eventComplete, Src: []string{string(StateExecuting)}, Dst: string(StateCompleting)},
		{Name: eventAfter, Src: []string{
			string(StateCreated),
			string(StateBefore),
			string(StateGateChecked),
			string(StateExecuting),
			string(StateCompleting),
		}, Dst: string(StateAfter)},
		{Name: eventFinish, Src: []string{
			string(StateCreated),
			string(StateBefore),
			string(StateGateChecked),
			string(StateExecuting),
			string(StateCompleting),
			string(StateAfter),
		}, Dst: string(StateFinishing)},
		{Name: eventTerminate, Src: []string{string(StateFinishing)}, Dst: string(StateTerminal)},
	}
}

// Instance drives one flow through one invocation.
type Instance struct {
	name     string
	flow     Flow
	owner    action.Owner
	context  *action.Context
	gate     *pipeline.Gate
	machine  *fsm.FSM
	hooks    *Hooks
	logger   action.Logger
	reporter action.Reporter

	observers []func(from, to State)
	loading   atomic.Bool
	disposed  atomic.Bool
	composed  atomic.Bool
}

// InstanceOption configures an Instance.
type InstanceOption func(*Instance)

// WithHooks sets the hook registry. The default is DefaultHooks().
func WithHooks(h *Hooks) InstanceOption {
	return func(i *Instance) {
		if h != nil {
			i.hooks = h
		}
	}
}

func WithLogger(l action.Logger) InstanceOption {
	return func(i *Instance) {
		i.logger = l
	}
}

func WithReporter(r action.Reporter) InstanceOption {
	return func(i *Instance) {
		i.reporter = r
	}
}

// WithTransitionObserver is called on every lifecycle state change.
func WithTransitionObserver(fn func(from, to State)) InstanceOption {
	return func(i *Instance) {
		if fn != nil {
			i.observers = append(i.observers, fn)
		}
	}
}

// NewInstance binds f to owner and c. A nil context gets an empty one
// named after the action.
func NewInstance(name string, f Flow, owner action.Owner, c *action.Context, opts ...InstanceOption) (*Instance, error) {
	if f == nil {
		return nil, cloneFlowError(ErrInvalidFactory, "flow is required", nil, map[string]any{"name": name})
	}
	if owner == nil {
		return nil, cloneFlowError(ErrMissingOwner, "", nil, map[string]any{"name": name})
	}
	if name == "" {
		name = action.TypeName(f)
	}
	if c == nil {
		var err error
		if c, err = action.NewContext(name); err != nil {
			return nil, err
		}
	}

	i := &Instance{
		name:     name,
		flow:     f,
		owner:    owner,
		context:  c,
		gate:     pipeline.NewGate(),
		hooks:    defaultHooks,
		logger:   action.NopLogger{},
		reporter: action.NopReporter{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	i.logger = action.WithLoggerFields(action.NormalizeLogger(i.logger), map[string]any{
		"action": name,
		"owner":  owner.OwnerKey(),
	})

	i.machine = fsm.NewFSM(string(StateCreated), lifecycleEvents(), fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			i.logger.Trace("flow transition", "from", e.Src, "to", e.Dst)
			for _, fn := range i.observers {
				fn(State(e.Src), State(e.Dst))
			}
		},
	})

	f.bind(owner, c)
	return i, nil
}

func (i *Instance) Name() string             { return i.name }
func (i *Instance) Flow() Flow               { return i.flow }
func (i *Instance) Owner() action.Owner      { return i.owner }
func (i *Instance) Context() *action.Context { return i.context }
func (i *Instance) Gate() *pipeline.Gate     { return i.gate }
func (i *Instance) State() State             { return State(i.machine.Current()) }
func (i *Instance) Disposed() bool           { return i.disposed.Load() }

func (i *Instance) enter(ctx context.Context, event string) error {
	if err := i.machine.Event(ctx, event); err != nil {
		return cloneFlowError(ErrInvalidTransition, fmt.Sprintf("cannot %s from %s", event, i.machine.Current()), err, map[string]any{
			"action": i.name,
			"event":  event,
		})
	}
	return nil
}

func (i *Instance) disposedError() error {
	return cloneFlowError(ErrFlowDisposed, "", nil, map[string]any{"action": i.name})
}

func (i *Instance) hookEvent() HookEvent {
	return HookEvent{Action: i.name, Owner: i.owner, Context: i.context}
}

func (i *Instance) reportHook(err error) {
	action.SafeReport(i.reporter, err, i.name, "hook")
}

func (i *Instance) before(ctx context.Context) error {
	if i.disposed.Load() {
		return i.disposedError()
	}
	if err := i.enter(ctx, eventBefore); err != nil {
		return err
	}

	i.owner.StartLoading()
	i.loading.Store(true)
	if inv, ok := i.owner.(action.Invalidator); ok {
		inv.InvalidatePending()
	}

	if err := i.hooks.runBefore(ctx, i.hookEvent(), i.logger, i.reportHook); err != nil {
		return err
	}
	return i.flow.Before(ctx)
}

func (i *Instance) canExecute(ctx context.Context) bool {
	if i.disposed.Load() {
		return false
	}
	if err := i.enter(ctx, eventCheck); err != nil {
		i.logger.Warn("gate check skipped", "error", err)
		return false
	}
	return i.flow.CanExecute(ctx)
}

func (i *Instance) execute(ctx context.Context) error {
	if i.disposed.Load() {
		return i.disposedError()
	}
	if err := i.enter(ctx, eventExecute); err != nil {
		return err
	}
	ok, err := i.flow.Execute(ctx)
	if err != nil {
		return err
	}
	i.gate.Set(ok)
	return nil
}

func (i *Instance) complete(ctx context.Context) error {
	if i.disposed.Load() {
		return i.disposedError()
	}
	if err := i.enter(ctx, eventComplete); err != nil {
		return err
	}
	if err := i.flow.ExecuteCompleted(ctx); err != nil {
		return err
	}
	i.context.MarkSuccessful()
	return nil
}

func (i *Instance) after(ctx context.Context) (err error) {
	if i.disposed.Load() {
		return i.disposedError()
	}
	defer func() {
		if i.loading.CompareAndSwap(true, false) {
			i.owner.StopLoading()
		}
	}()

	if err := i.enter(ctx, eventAfter); err != nil {
		return err
	}

	if afterErr := i.flow.After(ctx); afterErr != nil {
		err = afterErr
	}
	if hookErr := i.hooks.runAfter(ctx, i.hookEvent(), i.logger, i.reportHook); hookErr != nil {
		if err == nil {
			err = hookErr
		} else {
			err = apperrors.Join(err, hookErr)
		}
	}
	return err
}

func (i *Instance) dispose(ctx context.Context) error {
	if !i.disposed.CompareAndSwap(false, true) {
		return i.disposedError()
	}
	if err := i.enter(ctx, eventFinish); err != nil {
		i.logger.Warn("dispose from unexpected state", "error", err)
	}
	defer func() {
		if err := i.enter(ctx, eventTerminate); err != nil {
			i.logger.Warn("terminate failed", "error", err)
		}
	}()
	return i.flow.Dispose(ctx)
}
