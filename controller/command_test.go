package controller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/flow"
	"github.com/goliatone/go-action/runner"
)

type flakyFlow struct {
	flow.Base
	attempts *atomic.Int32
	failFor  int32
	contexts chan *action.Context
}

func (f *flakyFlow) Execute(context.Context) (bool, error) {
	n := f.attempts.Add(1)
	f.contexts <- f.Context()
	if n <= f.failFor {
		return false, errors.New("transient")
	}
	return true, nil
}

func TestCommandDisablesWhileRunning(t *testing.T) {
	c, _ := newController(t)
	release := make(chan struct{})
	cnt := &counters{}
	require.NoError(t, c.Register("blocking", func() flow.Flow {
		return &blockingFlow{countingFlow: countingFlow{c: cnt, gate: true}, release: release}
	}))

	var changes []bool
	cmd := c.NewCommand(action.NewStaticOwner("A"), "blocking")
	changesCh := make(chan bool, 4)
	cmd.OnCanExecuteChanged(func(v bool) { changesCh <- v })

	assert.True(t, cmd.CanExecute())
	first := cmd.Execute(context.Background())
	assert.False(t, cmd.CanExecute())

	busy := cmd.Execute(context.Background())
	v, resolved := busy.Value()
	assert.True(t, resolved)
	assert.False(t, v)

	close(release)
	assert.True(t, wait(t, first.Wait))
	require.Eventually(t, cmd.CanExecute, time.Second, time.Millisecond)

	changes = append(changes, <-changesCh, <-changesCh)
	assert.Equal(t, []bool{false, true}, changes)
	assert.Equal(t, int32(1), cnt.execute.Load())
}

func TestCommandCreatesFreshInstances(t *testing.T) {
	c, _ := newController(t)
	var built atomic.Int32
	require.NoError(t, c.Register("x", func() flow.Flow {
		built.Add(1)
		return &typedFlow{}
	}))

	cmd := c.NewCommand(action.NewStaticOwner("A"), "x")
	assert.True(t, wait(t, cmd.Execute(context.Background()).Wait))
	require.Eventually(t, cmd.CanExecute, time.Second, time.Millisecond)
	assert.True(t, wait(t, cmd.Execute(context.Background()).Wait))
	assert.Equal(t, int32(2), built.Load())
}

func TestExecuteWithRetryReusesContext(t *testing.T) {
	c, rep := newController(t)
	var attempts atomic.Int32
	contexts := make(chan *action.Context, 8)
	require.NoError(t, c.Register("flaky", func() flow.Flow {
		return &flakyFlow{attempts: &attempts, failFor: 2, contexts: contexts}
	}))

	cmd := c.NewCommand(action.NewStaticOwner("A"), "flaky", action.With("id", 1))
	ok, err := cmd.ExecuteWithRetry(context.Background(), 3, runner.NoDelayStrategy{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, 2, rep.count())

	first := <-contexts
	assert.Same(t, first, <-contexts)
	last := <-contexts
	assert.Same(t, first, last)
	assert.True(t, last.Successful())
}

func TestExecuteWithRetryGivesUp(t *testing.T) {
	c, _ := newController(t)
	var attempts atomic.Int32
	contexts := make(chan *action.Context, 8)
	require.NoError(t, c.Register("flaky", func() flow.Flow {
		return &flakyFlow{attempts: &attempts, failFor: 10, contexts: contexts}
	}))

	cmd := c.NewCommand(action.NewStaticOwner("A"), "flaky")
	ok, err := cmd.ExecuteWithRetry(context.Background(), 1, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrActionFailed)
	assert.Equal(t, int32(2), attempts.Load())
	assert.True(t, cmd.CanExecute())
}
