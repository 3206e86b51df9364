package flow

import (
	"context"
	"errors"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/pipeline"
	"github.com/goliatone/go-action/runner"
)

// Handle composes the instance into its pipeline: before, gate and
// execute work stages, then the after and dispose finishers. An
// instance composes once.
func (i *Instance) Handle() (*pipeline.Handle, error) {
	if !i.composed.CompareAndSwap(false, true) {
		return nil, cloneFlowError(ErrInvalidTransition, "instance already composed", nil, map[string]any{
			"action": i.name,
		})
	}

	b := pipeline.NewBuilder(i.owner.OwnerKey()).
		Named(i.name).
		UseGate(i.gate).
		WithLogger(i.logger).
		Wrap("before", i.before, runner.Main).
		Gate("can_execute", i.canExecute, runner.Main).
		ContinueWith("execute", i.execute, i.executeAffinity())

	if ext, ok := i.flow.(Extender); ok {
		ext.Extend(b)
	}

	return b.
		ContinueWith("execute_completed", i.complete, runner.Main).
		FinishWith("after", i.after, runner.PriorityHigh, runner.Main).
		FinishWith("dispose", i.dispose, runner.PriorityLow, runner.Background).
		Catch(i.report).
		Result(i.context.Successful).
		Build()
}

// Abandon disposes an instance whose handle will never run, such as one
// that failed to compose. It is a no-op once the instance was disposed.
func (i *Instance) Abandon(ctx context.Context) error {
	if i.disposed.Load() {
		return nil
	}
	return action.Guard(func() error { return i.dispose(context.WithoutCancel(ctx)) })
}

func (i *Instance) executeAffinity() runner.Affinity {
	if a, ok := i.flow.(Affine); ok {
		return a.ExecuteAffinity()
	}
	return runner.Background
}

func (i *Instance) report(_ context.Context, err error) {
	detail := err.Error()
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		detail = stageErr.Stage
	}
	i.logger.Warn("action stage failed", "stage", detail, "error", err)
	action.SafeReport(i.reporter, err, i.name, detail)
}
