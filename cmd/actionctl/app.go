package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/config"
	"github.com/goliatone/go-action/controller"
	"github.com/goliatone/go-action/cron"
	"github.com/goliatone/go-action/expose"
	"github.com/goliatone/go-action/flow"
	"github.com/goliatone/go-action/logging"
	"github.com/goliatone/go-action/metrics"
	"github.com/goliatone/go-action/queue"
	"github.com/goliatone/go-action/report"
)

// app holds everything a command needs. Build it with newApp and
// release it with Close.
type app struct {
	cfg       config.Config
	out       io.Writer
	logger    action.Logger
	reporter  action.Reporter
	sentry    *report.Sentry
	registry  *prometheus.Registry
	server    *http.Server
	ctrl      *controller.Controller
	scheduler *cron.Scheduler
	exposed   *expose.Registry
}

// newApp wires the stack from cfg. Command output goes to out, logs to
// logOut.
func newApp(cfg config.Config, out, logOut io.Writer) (*app, error) {
	logger, err := logging.New(cfg.Logging(logOut))
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Clone()
	if err != nil {
		return nil, err
	}
	before, after, err := cfg.HookModes()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, out: out, logger: logger}
	if err := a.buildReporter(); err != nil {
		return nil, err
	}

	var recorder queue.Recorder = queue.NopRecorder{}
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		recorder = metrics.NewPrometheus(a.registry)
	}

	hooks := flow.NewHooks()
	hooks.SetFailureModes(before, after)
	if err := hooks.RegisterBefore("*", func(_ context.Context, evt flow.HookEvent) error {
		logger.Trace("action starting", "action", evt.Action, "owner", evt.Owner.OwnerKey())
		return nil
	}); err != nil {
		return nil, err
	}
	hooks.Seal()

	a.ctrl = controller.New(
		controller.WithHooks(hooks),
		controller.WithWorkers(cfg.Workers),
		controller.WithMainQueueLimit(cfg.MainQueueSize),
		controller.WithClonePolicy(policy),
		controller.WithLogger(logger),
		controller.WithReporter(a.reporter),
		controller.WithRecorder(recorder),
	)
	if err := registerDemoActions(a.ctrl); err != nil {
		_ = a.ctrl.Shutdown(context.Background())
		return nil, err
	}

	a.scheduler = cron.NewScheduler(
		cron.WithLogger(logger),
		cron.WithErrorHandler(func(err error) {
			action.SafeReport(a.reporter, err, "schedule", "cron")
		}),
	)
	a.exposed = expose.NewRegistry(a.ctrl,
		expose.WithScheduler(a.scheduler),
		expose.WithOutput(out),
		expose.WithOwnerFactory(func(key string) action.Owner { return newDemoOwner(logger, key) }),
	)
	if err := errors.Join(a.exposed.ExposeAll(), a.exposed.Initialize()); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) buildReporter() error {
	reporters := report.Multi{report.NewLog(a.logger)}
	if dsn := a.cfg.Report.SentryDSN; dsn != "" {
		s, err := report.NewSentryClient(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: a.cfg.Report.Environment,
		}, map[string]string{"component": "actionctl"})
		if err != nil {
			return err
		}
		a.sentry = s
		reporters = append(reporters, s)
	}

	a.reporter = reporters
	if a.cfg.Report.Throttle > 0 {
		a.reporter = report.NewThrottle(reporters, a.cfg.Report.Throttle, a.cfg.Report.Burst)
	}
	return nil
}

// serveMetrics exposes /metrics when enabled. Errors after startup are
// logged.
func (a *app) serveMetrics() {
	if a.registry == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	a.server = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", a.cfg.Metrics.Addr)
}

// Close stops schedules, drains the controller and flushes reporters.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.scheduler != nil {
		errs = append(errs, a.scheduler.Stop(ctx))
	}
	if a.ctrl != nil {
		errs = append(errs, a.ctrl.Shutdown(ctx))
	}
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if a.sentry != nil {
		a.sentry.Flush(2 * time.Second)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
