package flow

import (
	"context"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/pipeline"
	"github.com/goliatone/go-action/runner"
)

// Flow is a user action. Implementations embed Base and override the
// lifecycle methods they need.
type Flow interface {
	Before(ctx context.Context) error
	CanExecute(ctx context.Context) bool
	Execute(ctx context.Context) (bool, error)
	ExecuteCompleted(ctx context.Context) error
	After(ctx context.Context) error
	Dispose(ctx context.Context) error

	bind(owner action.Owner, c *action.Context)
}

// Base gives every lifecycle method a default and keeps the owner and
// context the flow was bound to.
type Base struct {
	owner   action.Owner
	context *action.Context
}

func (b *Base) bind(owner action.Owner, c *action.Context) {
	b.owner = owner
	b.context = c
}

// Owner returns the owner the flow runs for.
func (b *Base) Owner() action.Owner { return b.owner }

// Context returns the invocation context.
func (b *Base) Context() *action.Context { return b.context }

func (b *Base) Before(context.Context) error           { return nil }
func (b *Base) CanExecute(context.Context) bool        { return true }
func (b *Base) Execute(context.Context) (bool, error)  { return true, nil }
func (b *Base) ExecuteCompleted(context.Context) error { return nil }
func (b *Base) After(context.Context) error            { return nil }
func (b *Base) Dispose(context.Context) error          { return nil }

// Affine flows choose where Execute runs. The default is a pool worker.
type Affine interface {
	ExecuteAffinity() runner.Affinity
}

// Extender flows add their own work stages between Execute and
// ExecuteCompleted.
type Extender interface {
	Extend(b *pipeline.Builder)
}
