package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/controller"
	"github.com/goliatone/go-action/flow"
)

func waitDone(t *testing.T, h Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("handle %s did not finish, status %s", h.Name(), h.Status())
	}
}

func TestScheduleAfterCompletesAndReportsStatus(t *testing.T) {
	scheduler := NewScheduler()
	var count atomic.Int32

	h, err := scheduler.ScheduleAfter(50*time.Millisecond, JobConfig{Name: "once"}, func(context.Context) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	waitDone(t, h)
	assert.Equal(t, int32(1), count.Load())
	assert.Equal(t, ScheduleStatusCompleted, h.Status())
	assert.Equal(t, 1, h.Runs())
	assert.Empty(t, scheduler.Handles())
}

func TestScheduleAtCancelPreventsExecution(t *testing.T) {
	scheduler := NewScheduler()
	var count atomic.Int32

	h, err := scheduler.ScheduleAt(time.Now().Add(250*time.Millisecond), JobConfig{}, func(context.Context) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", h.Name())

	h.Cancel()
	waitDone(t, h)

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, count.Load())
	assert.Equal(t, ScheduleStatusCanceled, h.Status())
}

func TestOneShotFailureRetriesThenFails(t *testing.T) {
	var reported []error
	scheduler := NewScheduler(WithErrorHandler(func(err error) { reported = append(reported, err) }))
	var attempts atomic.Int32
	boom := errors.New("boom")

	h, err := scheduler.ScheduleAfter(0, JobConfig{Name: "flaky", MaxRetries: 2}, func(context.Context) error {
		attempts.Add(1)
		return boom
	})
	require.NoError(t, err)

	waitDone(t, h)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, ScheduleStatusFailed, h.Status())
	assert.ErrorIs(t, h.Err(), boom)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], boom)
}

func TestJobPanicIsAFailure(t *testing.T) {
	scheduler := NewScheduler(WithErrorHandler(func(error) {}))
	h, err := scheduler.ScheduleAfter(0, JobConfig{Name: "panics"}, func(context.Context) error {
		panic("kaboom")
	})
	require.NoError(t, err)

	waitDone(t, h)
	var panicErr *action.PanicError
	assert.ErrorAs(t, h.Err(), &panicErr)
}

func TestScheduleCronRunsUntilCanceled(t *testing.T) {
	scheduler := NewScheduler(WithParser(SecondsParser))
	var count atomic.Int32

	h, err := scheduler.ScheduleCron(JobConfig{Name: "tick", Expression: "@every 1s"}, func(context.Context) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop(context.Background())

	assert.Eventually(t, func() bool { return count.Load() > 0 }, 2500*time.Millisecond, 20*time.Millisecond)

	h.Cancel()
	waitDone(t, h)
	assert.Equal(t, ScheduleStatusCanceled, h.Status())
}

func TestRecurringFailureKeepsScheduleUnlessStopOnFailure(t *testing.T) {
	scheduler := NewScheduler(WithErrorHandler(func(error) {}))
	boom := errors.New("boom")

	keep, err := scheduler.ScheduleCron(JobConfig{Name: "keep", Expression: "@every 1s"}, func(context.Context) error {
		return boom
	})
	require.NoError(t, err)
	stop, err := scheduler.ScheduleCron(JobConfig{Name: "stop", Expression: "@every 1s", StopOnFailure: true}, func(context.Context) error {
		return boom
	})
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop(context.Background())

	waitDone(t, stop)
	assert.Equal(t, ScheduleStatusFailed, stop.Status())

	assert.Eventually(t, func() bool { return keep.Runs() > 0 && keep.Status() == ScheduleStatusIdle }, 2500*time.Millisecond, 20*time.Millisecond)
	assert.ErrorIs(t, keep.Err(), boom)
}

func TestSchedulerStopMarksHandleStopped(t *testing.T) {
	scheduler := NewScheduler()
	h, err := scheduler.ScheduleCron(JobConfig{Expression: "@every 5s"}, func(context.Context) error { return nil })
	require.NoError(t, err)
	pending, err := scheduler.ScheduleAfter(time.Hour, JobConfig{}, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Len(t, scheduler.Handles(), 2)

	require.NoError(t, scheduler.Start(context.Background()))
	require.NoError(t, scheduler.Stop(context.Background()))

	waitDone(t, h)
	waitDone(t, pending)
	assert.Equal(t, ScheduleStatusStopped, h.Status())
	assert.Equal(t, ScheduleStatusStopped, pending.Status())
	assert.Empty(t, scheduler.Handles())
}

func TestScheduleValidation(t *testing.T) {
	scheduler := NewScheduler()

	_, err := scheduler.ScheduleCron(JobConfig{}, func(context.Context) error { return nil })
	assert.Error(t, err)

	_, err = scheduler.ScheduleCron(JobConfig{Expression: "@every 1s"}, nil)
	assert.Error(t, err)

	_, err = scheduler.ScheduleCron(JobConfig{Expression: "not a cron"}, func(context.Context) error { return nil })
	assert.Error(t, err)

	assert.NoError(t, ValidateExpression(DefaultParser, "*/5 * * * *"))
	assert.Error(t, ValidateExpression(DefaultParser, "*/5 * * * * *"))
	assert.NoError(t, ValidateExpression(SecondsParser, "*/5 * * * * *"))
}

type gatedFlow struct {
	flow.Base
	ok bool
}

func (f *gatedFlow) CanExecute(context.Context) bool { return f.ok }

func TestActionJobMapsResultToError(t *testing.T) {
	ctrl := controller.New(controller.WithHooks(flow.NewHooks()), controller.WithWorkers(2))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ctrl.Shutdown(ctx)
	}()

	require.NoError(t, ctrl.Register("jobs::allowed", func() flow.Flow { return &gatedFlow{ok: true} }))
	require.NoError(t, ctrl.Register("jobs::blocked", func() flow.Flow { return &gatedFlow{ok: false} }))

	owner := action.NewStaticOwner("scheduler")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.NoError(t, ActionJob(ctrl, owner, "jobs::allowed")(ctx))

	err := ActionJob(ctrl, owner, "jobs::blocked")(ctx)
	require.Error(t, err)
	assert.Equal(t, controller.ErrCodeActionFailed, flow.ErrorCode(err))

	assert.Error(t, ActionJob(nil, owner, "jobs::allowed")(ctx))
}
