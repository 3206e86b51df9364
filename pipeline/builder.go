package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/runner"
)

// Builder assembles the stages of one handle. It only records
// callbacks; nothing runs until the handle is run.
type Builder struct {
	owner     string
	name      string
	stages    []Stage
	finishers []Stage
	gate      *Gate
	catch     func(ctx context.Context, err error)
	result    func() bool
	logger    action.Logger
	err       error
}

// NewBuilder starts a handle for ownerKey.
func NewBuilder(ownerKey string) *Builder {
	return &Builder{
		owner:  strings.TrimSpace(ownerKey),
		logger: action.NopLogger{},
	}
}

// Named sets the action name used in logs and stage errors.
func (b *Builder) Named(name string) *Builder {
	b.name = name
	return b
}

// Wrap adds a stage that always runs unless the handle is halted.
func (b *Builder) Wrap(name string, fn StageFunc, affinity runner.Affinity) *Builder {
	return b.addStage(Stage{Name: name, Kind: StageWrap, Affinity: affinity, run: fn}, fn != nil)
}

// Gate adds a predicate. It is only asked while the gate is open and a
// false answer closes it.
func (b *Builder) Gate(name string, fn GateFunc, affinity runner.Affinity) *Builder {
	return b.addStage(Stage{Name: name, Kind: StageGate, Affinity: affinity, check: fn}, fn != nil)
}

// ContinueWith adds a work stage. Its body is skipped once the gate is
// closed, but the stage is still visited.
func (b *Builder) ContinueWith(name string, fn StageFunc, affinity runner.Affinity) *Builder {
	return b.addStage(Stage{Name: name, Kind: StageContinue, Affinity: affinity, run: fn}, fn != nil)
}

// FinishWith adds a cleanup stage. Finishers always run, highest
// priority first, ties in registration order.
func (b *Builder) FinishWith(name string, fn StageFunc, priority runner.Priority, affinity runner.Affinity) *Builder {
	if fn == nil {
		b.fail(name)
		return b
	}
	b.finishers = append(b.finishers, Stage{
		Name:     name,
		Kind:     StageFinish,
		Affinity: affinity,
		Priority: priority,
		run:      fn,
		order:    len(b.finishers),
	})
	return b
}

// Catch sets the exception handler. It sees every stage failure once.
func (b *Builder) Catch(fn func(ctx context.Context, err error)) *Builder {
	b.catch = fn
	return b
}

// Result sets how the final success flag is read once the finishers ran.
// Without it the flag is the gate state.
func (b *Builder) Result(fn func() bool) *Builder {
	b.result = fn
	return b
}

// UseGate shares g with the handle instead of a private gate.
func (b *Builder) UseGate(g *Gate) *Builder {
	b.gate = g
	return b
}

func (b *Builder) WithLogger(l action.Logger) *Builder {
	b.logger = l
	return b
}

// Build returns the handle or the first assembly error.
func (b *Builder) Build() (*Handle, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.owner == "" {
		return nil, ErrMissingOwner
	}

	gate := b.gate
	if gate == nil {
		gate = NewGate()
	}

	finishers := append([]Stage(nil), b.finishers...)
	sort.SliceStable(finishers, func(i, j int) bool {
		if finishers[i].Priority != finishers[j].Priority {
			return finishers[i].Priority > finishers[j].Priority
		}
		return finishers[i].order < finishers[j].order
	})

	id := uuid.NewString()
	future := NewFuture()
	future.SetMetadata("handle_id", id)
	future.SetMetadata("owner", b.owner)
	if b.name != "" {
		future.SetMetadata("action", b.name)
	}

	h := &Handle{
		id:        id,
		owner:     b.owner,
		name:      b.name,
		stages:    append([]Stage(nil), b.stages...),
		finishers: finishers,
		gate:      gate,
		catch:     b.catch,
		result:    b.result,
		future:    future,
	}
	h.logger = action.WithLoggerFields(action.NormalizeLogger(b.logger), map[string]any{
		"owner":     h.owner,
		"handle_id": h.id,
		"action":    h.name,
	})
	return h, nil
}

func (b *Builder) addStage(stage Stage, ok bool) *Builder {
	if !ok {
		b.fail(stage.Name)
		return b
	}
	stage.Priority = runner.PriorityNormal
	stage.order = len(b.stages)
	b.stages = append(b.stages, stage)
	return b
}

func (b *Builder) fail(name string) {
	if b.err == nil {
		b.err = invalidStage(name)
	}
}
