package controller

import (
	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/flow"
	"github.com/goliatone/go-action/queue"
	"github.com/goliatone/go-action/runner"
)

type Option func(*Controller)

// WithRegistry sets the action registry. The default is a fresh one.
func WithRegistry(r *flow.Registry) Option {
	return func(c *Controller) {
		c.registry = r
	}
}

// WithHooks sets the hook registry. The default is flow.DefaultHooks().
func WithHooks(h *flow.Hooks) Option {
	return func(c *Controller) {
		c.hooks = h
	}
}

// WithMainLoop shares an existing main loop. The controller starts it
// but leaves stopping it to the caller.
func WithMainLoop(m *runner.MainLoop) Option {
	return func(c *Controller) {
		c.main = m
	}
}

// WithWorkers sizes the background pool.
func WithWorkers(n int) Option {
	return func(c *Controller) {
		c.workers = n
	}
}

// WithMainQueueLimit caps callbacks waiting on the main loop.
func WithMainQueueLimit(n int) Option {
	return func(c *Controller) {
		c.mainQueueLimit = n
	}
}

// WithExecutor replaces the main loop and pool with exec.
func WithExecutor(exec runner.Executor) Option {
	return func(c *Controller) {
		c.exec = exec
	}
}

func WithLogger(l action.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

func WithReporter(r action.Reporter) Option {
	return func(c *Controller) {
		c.reporter = r
	}
}

func WithRecorder(r queue.Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithClonePolicy sets how entry values are copied into contexts.
func WithClonePolicy(p action.ClonePolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}
