package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/cron"
	"github.com/goliatone/go-action/flow"
	"github.com/goliatone/go-action/logging"
)

// Config is the YAML model for a controller and its surroundings.
type Config struct {
	Workers       int              `json:"workers" yaml:"workers"`
	MainQueueSize int              `json:"main_queue_size" yaml:"main_queue_size"`
	ClonePolicy   string           `json:"clone_policy" yaml:"clone_policy"`
	Hooks         HooksConfig      `json:"hooks" yaml:"hooks"`
	Log           LogConfig        `json:"log" yaml:"log"`
	Report        ReportConfig     `json:"report" yaml:"report"`
	Metrics       MetricsConfig    `json:"metrics" yaml:"metrics"`
	Schedules     []ScheduleConfig `json:"schedules,omitempty" yaml:"schedules,omitempty"`
}

type HooksConfig struct {
	BeforeFailureMode string `json:"before_failure_mode" yaml:"before_failure_mode"`
	AfterFailureMode  string `json:"after_failure_mode" yaml:"after_failure_mode"`
}

type LogConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	Level   string `json:"level" yaml:"level"`
	Format  string `json:"format" yaml:"format"`
}

// ReportConfig tunes error reporting. Throttle and Burst limit repeated
// reports per title. An empty SentryDSN keeps reports in the log.
type ReportConfig struct {
	Throttle    time.Duration `json:"throttle" yaml:"throttle"`
	Burst       int           `json:"burst" yaml:"burst"`
	SentryDSN   string        `json:"sentry_dsn" yaml:"sentry_dsn"`
	Environment string        `json:"environment" yaml:"environment"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// ScheduleConfig binds a cron expression to an action invocation.
type ScheduleConfig struct {
	Name       string         `json:"name" yaml:"name"`
	Expression string         `json:"expression" yaml:"expression"`
	Owner      string         `json:"owner" yaml:"owner"`
	Action     string         `json:"action" yaml:"action"`
	Entries    map[string]any `json:"entries,omitempty" yaml:"entries,omitempty"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Workers:       0,
		MainQueueSize: 0,
		ClonePolicy:   "strict",
		Hooks: HooksConfig{
			BeforeFailureMode: string(flow.HookFailureModeFailClosed),
			AfterFailureMode:  string(flow.HookFailureModeFailOpen),
		},
		Log: LogConfig{
			Backend: logging.BackendGlog,
			Level:   "info",
			Format:  "json",
		},
		Report: ReportConfig{
			Throttle: time.Second,
			Burst:    5,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Parse decodes YAML (or JSON) over Defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative"))
	}
	if c.MainQueueSize < 0 {
		errs = append(errs, fmt.Errorf("main_queue_size must not be negative"))
	}
	if _, err := c.Clone(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.HookModes(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Backend)) {
	case "", logging.BackendGlog, logging.BackendZap, logging.BackendFmt:
	default:
		errs = append(errs, fmt.Errorf("log.backend %q is not supported", c.Log.Backend))
	}
	if c.Report.Throttle < 0 {
		errs = append(errs, fmt.Errorf("report.throttle must not be negative"))
	}
	if c.Report.Burst < 0 {
		errs = append(errs, fmt.Errorf("report.burst must not be negative"))
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		errs = append(errs, fmt.Errorf("metrics.addr is required when metrics are enabled"))
	}

	names := make(map[string]struct{}, len(c.Schedules))
	for idx, s := range c.Schedules {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("schedules[%d]: %w", idx, err))
			continue
		}
		if _, dup := names[s.Name]; dup {
			errs = append(errs, fmt.Errorf("schedules[%d]: duplicate name %q", idx, s.Name))
		}
		names[s.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

// Validate checks the required fields and the cron expression.
func (s ScheduleConfig) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(s.Action) == "" {
		return fmt.Errorf("action is required for schedule %s", s.Name)
	}
	if strings.TrimSpace(s.Owner) == "" {
		return fmt.Errorf("owner is required for schedule %s", s.Name)
	}
	if err := cron.ValidateExpression(cron.DefaultParser, s.Expression); err != nil {
		return fmt.Errorf("schedule %s expression %q: %w", s.Name, s.Expression, err)
	}
	return nil
}

// Clone returns the configured clone policy.
func (c Config) Clone() (action.ClonePolicy, error) {
	return action.ParseClonePolicy(c.ClonePolicy)
}

// HookModes returns the before and after hook failure modes.
func (c Config) HookModes() (before, after flow.HookFailureMode, err error) {
	before, err = flow.ParseHookFailureMode(c.Hooks.BeforeFailureMode, flow.HookFailureModeFailClosed)
	if err != nil {
		return before, after, fmt.Errorf("hooks.before_failure_mode: %w", err)
	}
	after, err = flow.ParseHookFailureMode(c.Hooks.AfterFailureMode, flow.HookFailureModeFailOpen)
	if err != nil {
		return before, after, fmt.Errorf("hooks.after_failure_mode: %w", err)
	}
	return before, after, nil
}

// Logging maps the log section to a logging.Config writing to out.
func (c Config) Logging(out io.Writer) logging.Config {
	return logging.Config{
		Backend: c.Log.Backend,
		Level:   c.Log.Level,
		Format:  c.Log.Format,
		Writer:  out,
	}
}

// ContextEntries converts schedule entries to context entries in key
// order. Scalars are copied, nested YAML values are shared.
func (s ScheduleConfig) ContextEntries() []action.Entry {
	if len(s.Entries) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Entries))
	for k := range s.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]action.Entry, 0, len(keys))
	for _, k := range keys {
		switch v := s.Entries[k].(type) {
		case map[string]any, []any:
			out = append(out, action.Share(k, v))
		default:
			out = append(out, action.With(k, v))
		}
	}
	return out
}
