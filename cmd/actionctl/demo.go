package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/controller"
	"github.com/goliatone/go-action/expose"
	"github.com/goliatone/go-action/flow"
	"github.com/goliatone/go-action/runner"
)

// demoOwner stands in for a view: a random key and a loading counter
// that logs its transitions.
type demoOwner struct {
	key     string
	loading *action.LoadingCounter
}

func newDemoOwner(logger action.Logger, key string) *demoOwner {
	if key == "" {
		key = uuid.NewString()
	}
	o := &demoOwner{key: key}
	o.loading = action.NewLoadingCounter(func(loading bool) {
		logger.Debug("owner loading changed", "owner", key, "loading", loading)
	})
	return o
}

func (o *demoOwner) OwnerKey() string { return o.key }
func (o *demoOwner) StartLoading()    { o.loading.Start() }
func (o *demoOwner) StopLoading()     { o.loading.Stop() }

const (
	actionSaveOrder   = "orders::save_order"
	actionExport      = "reports::export"
	actionPing        = "status::ping"
	defaultWorkPeriod = 50 * time.Millisecond
)

// saveOrder requires an "id" entry and simulates background work.
type saveOrder struct {
	flow.Base
}

func (f *saveOrder) CanExecute(context.Context) bool {
	return f.Context().Has("id")
}

func (f *saveOrder) Execute(ctx context.Context) (bool, error) {
	select {
	case <-time.After(workPeriod(f.Context())):
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (f *saveOrder) CLIOptions() expose.CLIConfig {
	return expose.CLIConfig{Name: "save-order", Description: "Save an order (needs --set id=...)", Group: "orders"}
}

func (f *saveOrder) Exposure() expose.Exposure {
	return expose.Exposure{Listed: true, Tags: []string{"orders"}, Mutates: true}
}

// exportReport fails when the "fail" entry is set, to exercise the
// exception path.
type exportReport struct {
	flow.Base
}

func (f *exportReport) Execute(context.Context) (bool, error) {
	if action.GetOr(f.Context(), "fail", "") != "" {
		return false, fmt.Errorf("export of %s refused", action.GetOr(f.Context(), "report", "report"))
	}
	time.Sleep(workPeriod(f.Context()))
	return true, nil
}

func (f *exportReport) CLIOptions() expose.CLIConfig {
	return expose.CLIConfig{Name: "export", Description: "Export a report (--set fail=1 to fail)", Group: "reports"}
}

func (f *exportReport) Exposure() expose.Exposure {
	return expose.Exposure{Listed: true, Tags: []string{"reports"}}
}

// ping runs its work on the main loop.
type ping struct {
	flow.Base
}

func (f *ping) ExecuteAffinity() runner.Affinity { return runner.Main }

func (f *ping) Execute(context.Context) (bool, error) {
	return true, nil
}

func (f *ping) CLIOptions() expose.CLIConfig {
	return expose.CLIConfig{Name: "ping", Description: "Touch the main loop", Aliases: []string{"p"}}
}

func workPeriod(c *action.Context) time.Duration {
	if raw := action.GetOr(c, "work", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return defaultWorkPeriod
}

func registerDemoActions(ctrl *controller.Controller) error {
	for name, factory := range map[string]flow.Factory{
		actionSaveOrder: func() flow.Flow { return &saveOrder{} },
		actionExport:    func() flow.Flow { return &exportReport{} },
		actionPing:      func() flow.Flow { return &ping{} },
	} {
		if err := ctrl.Register(name, factory); err != nil {
			return err
		}
	}
	return nil
}
