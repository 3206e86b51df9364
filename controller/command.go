package controller

import (
	"context"
	"sync"
	"sync/atomic"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/pipeline"
	"github.com/goliatone/go-action/runner"
)

// Command is a repeatable binding of one action to one owner, the kind a
// button is wired to. Every run gets a fresh flow instance and the
// command is disabled while a run is in flight.
type Command struct {
	ctrl    *Controller
	owner   action.Owner
	name    string
	entries []action.Entry

	running  atomic.Bool
	mu       sync.Mutex
	onChange []func(canExecute bool)
}

// NewCommand binds name to owner. entries are copied into every run.
func (c *Controller) NewCommand(owner action.Owner, name string, entries ...action.Entry) *Command {
	return &Command{
		ctrl:    c,
		owner:   owner,
		name:    name,
		entries: append([]action.Entry(nil), entries...),
	}
}

// Name returns the bound action name.
func (cmd *Command) Name() string { return cmd.name }

// OnCanExecuteChanged registers fn to hear when CanExecute flips.
func (cmd *Command) OnCanExecuteChanged(fn func(canExecute bool)) {
	if fn == nil {
		return
	}
	cmd.mu.Lock()
	cmd.onChange = append(cmd.onChange, fn)
	cmd.mu.Unlock()
}

// CanExecute is false while a run is in flight or after shutdown.
func (cmd *Command) CanExecute() bool {
	return !cmd.running.Load() && !cmd.ctrl.manager.Disposed()
}

// Execute starts a run. A busy command resolves false immediately.
func (cmd *Command) Execute(ctx context.Context) *pipeline.Future {
	if !cmd.acquire() {
		return pipeline.Resolved(false)
	}

	future := cmd.ctrl.InvokeActionAsync(ctx, cmd.owner, cmd.name, cmd.entries...)
	go func() {
		<-future.Done()
		cmd.release()
	}()
	return future
}

// ExecuteWithRetry runs the action until it succeeds or maxRetries extra
// attempts are spent. Retries reuse the first context with its result
// reset, each with a fresh flow instance.
func (cmd *Command) ExecuteWithRetry(ctx context.Context, maxRetries int, strategy runner.RetryStrategy) (bool, error) {
	if !cmd.acquire() {
		return false, ErrCommandBusy
	}
	defer cmd.release()

	actx, err := action.NewContextWithPolicy(cmd.name, cmd.ctrl.policy, cmd.entries...)
	if err != nil {
		cmd.ctrl.rejected(ctx, cmd.name, "context", err)
		return false, err
	}

	err = runner.Retry(ctx, strategy, maxRetries, func(attempt int) error {
		if attempt > 0 {
			actx.ResetResult()
			cmd.ctrl.logger.Debug("retrying action", "action", cmd.name, "attempt", attempt)
		}
		ok, err := cmd.ctrl.invoke(ctx, cmd.owner, cmd.name, actx).Wait(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrActionFailed
		}
		return nil
	})
	return err == nil, err
}

func (cmd *Command) acquire() bool {
	if cmd.ctrl.manager.Disposed() || !cmd.running.CompareAndSwap(false, true) {
		return false
	}
	cmd.notify(false)
	return true
}

func (cmd *Command) release() {
	cmd.running.Store(false)
	cmd.notify(cmd.CanExecute())
}

func (cmd *Command) notify(canExecute bool) {
	cmd.mu.Lock()
	listeners := append([]func(bool){}, cmd.onChange...)
	cmd.mu.Unlock()
	for _, fn := range listeners {
		fn(canExecute)
	}
}
