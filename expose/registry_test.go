package expose

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/controller"
	"github.com/goliatone/go-action/cron"
	"github.com/goliatone/go-action/flow"
)

type saveFlow struct {
	flow.Base
	seen *string
}

func (f *saveFlow) Execute(context.Context) (bool, error) {
	if f.seen != nil {
		*f.seen = action.GetOr(f.Context(), "id", "")
	}
	return true, nil
}

func (f *saveFlow) CLIOptions() CLIConfig {
	return CLIConfig{Aliases: []string{"save"}}
}

func (f *saveFlow) Exposure() Exposure {
	return Exposure{Listed: true, Tags: []string{"orders"}, Mutates: true}
}

type deniedFlow struct {
	flow.Base
}

func (f *deniedFlow) CanExecute(context.Context) bool { return false }

func (f *deniedFlow) CLIOptions() CLIConfig {
	return CLIConfig{Name: "denied", Description: "Always refused", Hidden: true}
}

type tickFlow struct {
	flow.Base
}

func (f *tickFlow) CronOptions() CronConfig {
	return CronConfig{Expression: "@every 1h", Owner: "ticker"}
}

func newController(t *testing.T) *controller.Controller {
	t.Helper()
	ctrl := controller.New(controller.WithHooks(flow.NewHooks()), controller.WithWorkers(2))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ctrl.Shutdown(ctx)
	})
	return ctrl
}

func TestCLICommandsInvokeActions(t *testing.T) {
	ctrl := newController(t)
	var seen string
	require.NoError(t, ctrl.Register("orders::save_order", func() flow.Flow { return &saveFlow{seen: &seen} }))
	require.NoError(t, ctrl.Register("orders::denied", func() flow.Flow { return &deniedFlow{} }))

	out := &bytes.Buffer{}
	reg := NewRegistry(ctrl, WithOutput(out))
	require.NoError(t, reg.ExposeAll())
	require.NoError(t, reg.Initialize())

	options, err := reg.CLIOptions()
	require.NoError(t, err)
	require.Len(t, options, 2)

	parser, err := kong.New(&struct{}{}, append(options, kong.Name("app"))...)
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{"orders-save-order", "--owner", "view-1", "--set", "id=42"})
	require.NoError(t, err)
	require.NoError(t, kctx.Run())
	assert.Equal(t, "42", seen)
	assert.Contains(t, out.String(), "orders::save_order owner=view-1 success=true")

	kctx, err = parser.Parse([]string{"save"})
	require.NoError(t, err)
	require.NoError(t, kctx.Run())

	kctx, err = parser.Parse([]string{"denied"})
	require.NoError(t, err)
	err = kctx.Run()
	require.Error(t, err)
	assert.Equal(t, controller.ErrCodeActionFailed, flow.ErrorCode(err))

	exposure, ok := reg.Exposure("orders::save_order")
	require.True(t, ok)
	assert.True(t, exposure.Mutates)
	assert.Equal(t, []string{"orders::save_order"}, reg.Listed())
}

func TestCronActionsNeedScheduler(t *testing.T) {
	ctrl := newController(t)
	require.NoError(t, ctrl.Register("status::tick", func() flow.Flow { return &tickFlow{} }))

	reg := NewRegistry(ctrl)
	require.NoError(t, reg.Expose("status::tick"))
	err := reg.Initialize()
	require.Error(t, err)
	assert.Equal(t, ErrCodeSchedulerNotSet, flow.ErrorCode(err))
}

func TestCronActionsAreScheduled(t *testing.T) {
	ctrl := newController(t)
	require.NoError(t, ctrl.Register("status::tick", func() flow.Flow { return &tickFlow{} }))

	scheduler := cron.NewScheduler()
	defer scheduler.Stop(context.Background())

	reg := NewRegistry(ctrl, WithScheduler(scheduler))
	require.NoError(t, reg.Expose("status::tick"))
	require.NoError(t, reg.Initialize())

	schedules := reg.Schedules()
	require.Len(t, schedules, 1)
	assert.Equal(t, "status::tick", schedules[0].Name())
	assert.Equal(t, cron.ScheduleStatusScheduled, schedules[0].Status())

	options, err := reg.CLIOptions()
	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestRegistryLifecycleErrors(t *testing.T) {
	ctrl := newController(t)
	reg := NewRegistry(ctrl)

	_, err := reg.CLIOptions()
	assert.Equal(t, ErrCodeNotInitialized, flow.ErrorCode(err))

	assert.Error(t, reg.Expose(" "))
	require.NoError(t, reg.Expose("missing::action"))

	err = reg.Initialize()
	assert.True(t, flow.IsUnknownAction(err))

	assert.Equal(t, ErrCodeAlreadyInitialized, flow.ErrorCode(reg.Initialize()))
	assert.Equal(t, ErrCodeAlreadyInitialized, flow.ErrorCode(reg.Expose("late")))
}

func TestCLIConfigTags(t *testing.T) {
	assert.Empty(t, CLIConfig{}.BuildTags())
	assert.Equal(t, []string{"aliases:a,b", `hidden:""`}, CLIConfig{Aliases: []string{"a", "b"}, Hidden: true}.BuildTags())
	assert.Equal(t, "orders-save-order", commandName("orders::save_order"))
}
