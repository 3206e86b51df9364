package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/runner"
)

// Handle is one assembled invocation: work stages, finishers, a gate
// and the future of its success flag. A handle runs once.
type Handle struct {
	id        string
	owner     string
	name      string
	stages    []Stage
	finishers []Stage
	gate      *Gate
	catch     func(ctx context.Context, err error)
	result    func() bool
	future    *Future
	consumed  atomic.Bool
	logger    action.Logger
}

func (h *Handle) ID() string       { return h.id }
func (h *Handle) OwnerKey() string { return h.owner }
func (h *Handle) Name() string     { return h.name }
func (h *Handle) Gate() *Gate      { return h.gate }
func (h *Handle) Future() *Future  { return h.future }

// Stages returns the work stages in run order.
func (h *Handle) Stages() []Stage { return append([]Stage(nil), h.stages...) }

// Finishers returns the finishers in run order.
func (h *Handle) Finishers() []Stage { return append([]Stage(nil), h.finishers...) }

// Done is closed once the handle reached its terminal state.
func (h *Handle) Done() <-chan struct{} { return h.future.Done() }

// Wait blocks until the handle resolves or ctx ends.
func (h *Handle) Wait(ctx context.Context) (bool, error) {
	return h.future.Wait(ctx)
}

// Consumed reports whether Run or Drain was already called.
func (h *Handle) Consumed() bool { return h.consumed.Load() }

// Run executes the work stages in order, then every finisher, and
// resolves the future. halted is polled before each work stage; once it
// reports true the remaining work stages are skipped.
func (h *Handle) Run(ctx context.Context, exec runner.Executor, halted func() bool) bool {
	if !h.consumed.CompareAndSwap(false, true) {
		h.logger.Warn("handle run ignored", "error", ErrHandleConsumed)
		v, _ := h.future.Value()
		return v
	}
	if exec == nil {
		exec = runner.Inline{}
	}

	ctx = ContextWithHandle(ctx, h)
	h.logger.Debug("handle started", "stages", len(h.stages), "finishers", len(h.finishers))

	func() {
		defer h.recoverEscaped(ctx, "work")
		for _, stage := range h.stages {
			if halted != nil && halted() {
				h.logger.Debug("handle halted", "stage", stage.Name)
				h.gate.Close()
				return
			}
			h.runWork(ctx, exec, stage)
		}
	}()

	return h.finish(ctx, exec)
}

// Drain runs only the finishers and resolves the future with false.
func (h *Handle) Drain(ctx context.Context, exec runner.Executor) bool {
	if !h.consumed.CompareAndSwap(false, true) {
		h.logger.Warn("handle drain ignored", "error", ErrHandleConsumed)
		v, _ := h.future.Value()
		return v
	}
	if exec == nil {
		exec = runner.Inline{}
	}

	ctx = ContextWithHandle(ctx, h)
	h.logger.Debug("handle drained")
	h.gate.Close()
	return h.finish(ctx, exec)
}

func (h *Handle) runWork(ctx context.Context, exec runner.Executor, stage Stage) {
	switch stage.Kind {
	case StageGate:
		if !h.gate.Open() {
			return
		}
		var ok bool
		err := exec.Execute(ctx, stage.Affinity, stage.Priority, func(ctx context.Context) error {
			ok = stage.check(ctx)
			return nil
		})
		if err != nil {
			h.fail(ctx, stage, dispatchFailure(stage, err))
			return
		}
		if !ok {
			h.logger.Debug("gate closed", "stage", stage.Name)
			h.gate.Close()
		}
	case StageContinue:
		if !h.gate.Open() {
			return
		}
		fallthrough
	default:
		if err := exec.Execute(ctx, stage.Affinity, stage.Priority, func(ctx context.Context) error {
			return stage.run(ctx)
		}); err != nil {
			h.fail(ctx, stage, dispatchFailure(stage, err))
		}
	}
}

func (h *Handle) finish(ctx context.Context, exec runner.Executor) bool {
	ctx = context.WithoutCancel(ctx)

	for _, stage := range h.finishers {
		h.runFinisher(ctx, exec, stage)
	}

	result := h.gate.Open()
	if result && h.result != nil {
		result = h.readResult(ctx)
	}
	h.future.resolve(result)
	h.logger.Debug("handle finished", "success", result)
	return result
}

func (h *Handle) runFinisher(ctx context.Context, exec runner.Executor, stage Stage) {
	defer h.recoverEscaped(ctx, stage.Name)

	err := exec.Execute(ctx, stage.Affinity, stage.Priority, func(ctx context.Context) error {
		return stage.run(ctx)
	})

	var dispatch *runner.DispatchError
	if errors.As(err, &dispatch) {
		h.logger.Debug("finisher dispatch failed, running inline", "stage", stage.Name, "error", dispatch.Err)
		err = action.Guard(func() error { return stage.run(ctx) })
	}
	if err != nil {
		h.report(ctx, stage, err)
	}
}

func (h *Handle) readResult(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			h.report(ctx, Stage{Name: "result", Kind: StageFinish}, action.RecoverError(r))
		}
	}()
	return h.result()
}

func (h *Handle) fail(ctx context.Context, stage Stage, err error) {
	h.gate.Close()
	h.report(ctx, stage, err)
}

func (h *Handle) recoverEscaped(ctx context.Context, where string) {
	if r := recover(); r != nil {
		h.gate.Close()
		h.report(ctx, Stage{Name: where}, action.RecoverError(r))
	}
}

func (h *Handle) report(ctx context.Context, stage Stage, err error) {
	stageErr := &StageError{
		Handle: h.id,
		Owner:  h.owner,
		Stage:  stage.Name,
		Kind:   stage.Kind,
		Err:    err,
	}
	h.logger.Debug("stage failed", "stage", stage.Name, "error", err)
	if h.catch == nil {
		h.logger.Error("unhandled stage failure", "stage", stage.Name, "error", err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("exception handler panicked", "stage", stage.Name, "panic", r)
		}
	}()
	h.catch(ctx, stageErr)
}
