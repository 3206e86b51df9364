package expose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/alecthomas/kong"
	apperrors "github.com/goliatone/go-errors"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/controller"
	"github.com/goliatone/go-action/cron"
)

// Registry publishes controller actions to a kong CLI and to a cron
// scheduler, based on the optional interfaces their flows implement.
type Registry struct {
	mu          sync.Mutex
	ctrl        *controller.Controller
	scheduler   *cron.Scheduler
	out         io.Writer
	newOwner    func(key string) action.Owner
	names       []string
	initialized bool
	cliOptions  []kong.Option
	schedules   []cron.Handle
	exposures   map[string]Exposure
}

// Option configures a Registry.
type Option func(*Registry)

// WithScheduler receives the schedules of CronAction flows.
func WithScheduler(s *cron.Scheduler) Option {
	return func(r *Registry) {
		r.scheduler = s
	}
}

// WithOutput sets where CLI commands print their result.
func WithOutput(w io.Writer) Option {
	return func(r *Registry) {
		if w != nil {
			r.out = w
		}
	}
}

// WithOwnerFactory controls how owner keys from flags and schedules
// become owners.
func WithOwnerFactory(fn func(key string) action.Owner) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newOwner = fn
		}
	}
}

func NewRegistry(ctrl *controller.Controller, opts ...Option) *Registry {
	r := &Registry{
		ctrl:      ctrl,
		out:       os.Stdout,
		newOwner:  func(key string) action.Owner { return action.NewStaticOwner(key) },
		exposures: make(map[string]Exposure),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Expose queues a registered action for publication.
func (r *Registry) Expose(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.New("action name cannot be empty", apperrors.CategoryBadInput).
			WithTextCode("EXPOSE_EMPTY_NAME")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return ErrAlreadyInitialized
	}
	r.names = append(r.names, name)
	return nil
}

// ExposeAll queues every action known to the controller registry.
func (r *Registry) ExposeAll() error {
	var errs error
	for _, name := range r.ctrl.Registry().Names() {
		errs = errors.Join(errs, r.Expose(name))
	}
	return errs
}

// Initialize inspects one instance of each exposed action and publishes
// it. Errors for individual actions are joined; the rest still publish.
func (r *Registry) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return ErrAlreadyInitialized
	}

	var errs error
	for _, name := range r.names {
		probe, err := r.ctrl.Registry().New(name)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}

		if exposure, ok := ExposureOf(probe); ok {
			r.exposures[name] = exposure
		}
		if cli, ok := probe.(CLIAction); ok {
			r.registerWithCLI(name, cli.CLIOptions())
		}
		if cronAction, ok := probe.(CronAction); ok {
			errs = errors.Join(errs, r.registerWithCron(name, cronAction.CronOptions()))
		}
	}

	r.initialized = true
	return errs
}

func (r *Registry) registerWithCLI(name string, opts CLIConfig) {
	if strings.TrimSpace(opts.Name) == "" {
		opts.Name = commandName(name)
	}
	if opts.Description == "" {
		opts.Description = "Invoke " + name
	}

	cmd := &actionCommand{
		name:     name,
		ctrl:     r.ctrl,
		out:      r.out,
		newOwner: r.newOwner,
	}
	r.cliOptions = append(r.cliOptions, kong.DynamicCommand(
		opts.Name,
		opts.Description,
		opts.Group,
		cmd,
		opts.BuildTags()...,
	))
}

func (r *Registry) registerWithCron(name string, opts CronConfig) error {
	if r.scheduler == nil {
		return ErrSchedulerNotSet.Clone().WithMetadata(map[string]any{"action": name})
	}

	owner := opts.Owner
	if strings.TrimSpace(owner) == "" {
		owner = "cron:" + name
	}

	h, err := r.scheduler.ScheduleCron(cron.JobConfig{
		Name:          name,
		Expression:    opts.Expression,
		MaxRetries:    opts.MaxRetries,
		StopOnFailure: opts.StopOnFailure,
	}, cron.ActionJob(r.ctrl, r.newOwner(owner), name))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryExternal, "cron scheduler registration failed").
			WithTextCode(ErrCodeCronRegistration).
			WithMetadata(map[string]any{
				"action":     name,
				"expression": opts.Expression,
			})
	}
	r.schedules = append(r.schedules, h)
	return nil
}

// CLIOptions returns the kong options of every CLI action.
func (r *Registry) CLIOptions() ([]kong.Option, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, ErrNotInitialized
	}
	return append([]kong.Option(nil), r.cliOptions...), nil
}

// Schedules returns the handles created for CronAction flows.
func (r *Registry) Schedules() []cron.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cron.Handle(nil), r.schedules...)
}

// Exposure returns the listing metadata published for name.
func (r *Registry) Exposure(name string) (Exposure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exposures[name]
	return e, ok
}

// Listed returns the names whose exposure asks to be listed.
func (r *Registry) Listed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for name, e := range r.exposures {
		if e.Listed {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// commandName turns "orders::save_order" into "orders-save-order".
func commandName(action string) string {
	return strings.NewReplacer("::", "-", "_", "-", ".", "-").Replace(strings.ToLower(action))
}

// actionCommand is the kong command behind every CLI action.
type actionCommand struct {
	Owner string            `help:"Owner key the invocation is queued under." default:"cli"`
	Set   map[string]string `help:"Context entries as key=value." short:"s"`

	name     string
	ctrl     *controller.Controller
	out      io.Writer
	newOwner func(key string) action.Owner
}

func (c *actionCommand) Run() error {
	keys := make([]string, 0, len(c.Set))
	for k := range c.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]action.Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, action.With(k, c.Set[k]))
	}

	ctx := context.Background()
	ok, err := c.ctrl.InvokeActionAsync(ctx, c.newOwner(c.Owner), c.name, entries...).Wait(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s owner=%s success=%t\n", c.name, c.Owner, ok)
	if !ok {
		return controller.ErrActionFailed.Clone().WithMetadata(map[string]any{"action": c.name})
	}
	return nil
}
