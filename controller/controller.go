package controller

import (
	"context"
	"fmt"
	"sync"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/flow"
	"github.com/goliatone/go-action/pipeline"
	"github.com/goliatone/go-action/queue"
	"github.com/goliatone/go-action/runner"
)

// Controller turns "run action X for this owner" into a queued handle.
type Controller struct {
	registry *flow.Registry
	hooks    *flow.Hooks
	main     *runner.MainLoop
	exec     runner.Executor
	manager  *queue.Manager
	reporter action.Reporter
	logger   action.Logger
	recorder queue.Recorder
	policy   action.ClonePolicy

	workers        int
	mainQueueLimit int
	ownsMain       bool

	drains sync.WaitGroup
}

// New builds a controller and starts its main loop.
func New(opts ...Option) *Controller {
	c := &Controller{
		logger:   action.NopLogger{},
		reporter: action.NopReporter{},
		recorder: queue.NopRecorder{},
		policy:   action.CloneStrict,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.logger = action.NormalizeLogger(c.logger)
	if c.registry == nil {
		c.registry = flow.NewRegistry()
	}
	if c.hooks == nil {
		c.hooks = flow.DefaultHooks()
	}
	if c.reporter == nil {
		c.reporter = action.NopReporter{}
	}

	if c.exec == nil {
		if c.main == nil {
			c.main = runner.NewMainLoop(
				runner.WithMainLogger(c.logger),
				runner.WithQueueLimit(c.mainQueueLimit),
			)
			c.ownsMain = true
		}
		c.main.Start()
		c.exec = runner.NewScheduler(c.main, runner.NewPool(c.workers, runner.WithPoolLogger(c.logger)))
	}

	c.manager = queue.NewManager(c.exec,
		queue.WithLogger(c.logger),
		queue.WithRecorder(c.recorder),
		queue.WithReporter(c.reporter),
	)
	return c
}

func (c *Controller) Registry() *flow.Registry   { return c.registry }
func (c *Controller) Hooks() *flow.Hooks         { return c.hooks }
func (c *Controller) Manager() *queue.Manager    { return c.manager }
func (c *Controller) MainLoop() *runner.MainLoop { return c.main }
func (c *Controller) Executor() runner.Executor  { return c.exec }

// Register adds an action factory under name.
func (c *Controller) Register(name string, factory flow.Factory) error {
	return c.registry.Register(name, factory)
}

// InvokeAction runs the named action for owner without waiting.
func (c *Controller) InvokeAction(ctx context.Context, owner action.Owner, name string, entries ...action.Entry) {
	c.InvokeActionAsync(ctx, owner, name, entries...)
}

// InvokeActionAsync runs the named action for owner. The future
// resolves with the success flag. Construction failures are reported
// and resolve false; nothing is queued for them.
func (c *Controller) InvokeActionAsync(ctx context.Context, owner action.Owner, name string, entries ...action.Entry) *pipeline.Future {
	actx, err := action.NewContextWithPolicy(name, c.policy, entries...)
	if err != nil {
		return c.rejected(ctx, name, "context", err)
	}
	return c.invoke(ctx, owner, name, actx)
}

// Invoke runs the action registered for F without waiting.
func Invoke[F flow.Flow](ctx context.Context, c *Controller, owner action.Owner, entries ...action.Entry) {
	c.InvokeAction(ctx, owner, action.TypeNameFor[F](), entries...)
}

// InvokeAsync runs the action registered for F.
func InvokeAsync[F flow.Flow](ctx context.Context, c *Controller, owner action.Owner, entries ...action.Entry) *pipeline.Future {
	return c.InvokeActionAsync(ctx, owner, action.TypeNameFor[F](), entries...)
}

func (c *Controller) invoke(ctx context.Context, owner action.Owner, name string, actx *action.Context) *pipeline.Future {
	if owner == nil {
		return c.rejected(ctx, name, "owner", ErrInvalidOwner)
	}

	f, err := c.registry.New(name)
	if err != nil {
		return c.rejected(ctx, name, "construct", err)
	}

	inst, err := flow.NewInstance(name, f, owner, actx,
		flow.WithHooks(c.hooks),
		flow.WithLogger(c.logger),
		flow.WithReporter(c.reporter),
	)
	if err != nil {
		return c.rejected(ctx, name, "construct", err)
	}

	h, err := inst.Handle()
	if err != nil {
		if derr := inst.Abandon(ctx); derr != nil {
			c.logger.WithContext(ctx).Warn("abandoned action dispose failed", "action", name, "error", derr)
			action.SafeReport(c.reporter, derr, name, "dispose failed")
		}
		return c.rejected(ctx, name, "compose", err)
	}

	if !c.manager.Enqueue(h) {
		c.logger.WithContext(ctx).Warn("action rejected, draining", "action", name, "owner", owner.OwnerKey())
		c.drains.Add(1)
		go func() {
			defer c.drains.Done()
			h.Drain(context.Background(), c.exec)
		}()
	}
	return h.Future()
}

func (c *Controller) rejected(ctx context.Context, name, stage string, err error) *pipeline.Future {
	c.logger.WithContext(ctx).Error("action not started", "action", name, "stage", stage, "error", err)
	action.SafeReport(c.reporter, err, name, fmt.Sprintf("%s failed", stage))
	return pipeline.Resolved(false)
}

// Shutdown disposes the queue manager, draining pending handles, waits
// for rejected handles to finish draining, then stops the main loop if
// the controller created it.
func (c *Controller) Shutdown(ctx context.Context) error {
	if err := c.manager.Dispose(ctx); err != nil {
		return err
	}
	if err := c.waitDrains(ctx); err != nil {
		return err
	}
	if c.ownsMain && c.main != nil {
		return c.main.Stop(ctx)
	}
	return nil
}

func (c *Controller) waitDrains(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.drains.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
