package cron

import (
	"fmt"
	"io"
	"log"
	"time"

	rcron "github.com/robfig/cron/v3"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/runner"
)

// LogLevel filters what the cron engine itself logs.
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelDebug
)

// Parser selects the cron expression dialect.
type Parser int

const (
	// DefaultParser accepts five fields and descriptors such as "@every 1m".
	DefaultParser Parser = iota
	StandardParser
	// SecondsParser adds a leading seconds field.
	SecondsParser
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone schedules are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// WithLogger routes scheduler and cron engine logs to logger.
func WithLogger(logger action.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithLogWriter sends cron engine logs to a plain writer when no logger
// is configured.
func WithLogWriter(writer io.Writer) Option {
	return func(s *Scheduler) {
		s.logWriter = writer
	}
}

func WithLogLevel(level LogLevel) Option {
	return func(s *Scheduler) {
		s.logLevel = level
	}
}

// WithErrorHandler receives job failures and recovered panics.
func WithErrorHandler(handler func(error)) Option {
	return func(s *Scheduler) {
		s.errorHandler = handler
	}
}

func WithParser(p Parser) Option {
	return func(s *Scheduler) {
		s.parser = p
	}
}

// JobConfig describes how a job is scheduled and retried.
type JobConfig struct {
	Name       string
	Expression string
	MaxRetries int
	Retry      runner.RetryStrategy
	Timeout    time.Duration
	// StopOnFailure ends a recurring schedule after its first failed run.
	// Otherwise the failure is recorded and the schedule stays active.
	StopOnFailure bool
}

// loggerAdapter adapts action.Logger to the robfig/cron logger.
type loggerAdapter struct {
	logger action.Logger
	level  LogLevel
}

func (l *loggerAdapter) Info(msg string, keysAndValues ...any) {
	if l.level >= LogLevelInfo {
		l.logger.Debug("cron: "+msg, keysAndValues...)
	}
}

func (l *loggerAdapter) Error(err error, msg string, keysAndValues ...any) {
	if l.level >= LogLevelError {
		l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
	}
}

// errorHandlerAdapter feeds recovered job panics to the error handler.
type errorHandlerAdapter struct {
	handler func(error)
}

func (e *errorHandlerAdapter) Info(string, ...any) {}

func (e *errorHandlerAdapter) Error(err error, msg string, keysAndValues ...any) {
	if e.handler == nil {
		return
	}
	if err != nil {
		e.handler(err)
		return
	}
	e.handler(fmt.Errorf("%s %v", msg, keysAndValues))
}

func makeLogger(out io.Writer, level LogLevel) rcron.Logger {
	stdLogger := log.New(out, "cron: ", log.LstdFlags)
	if level >= LogLevelDebug {
		return rcron.VerbosePrintfLogger(stdLogger)
	}
	return rcron.PrintfLogger(stdLogger)
}

func (s *Scheduler) build() []rcron.Option {
	opts := make([]rcron.Option, 0, 4)

	if s.location != nil {
		opts = append(opts, rcron.WithLocation(s.location))
	}

	if s.parser == SecondsParser {
		opts = append(opts, rcron.WithParser(rcron.NewParser(
			rcron.Second|rcron.Minute|rcron.Hour|rcron.Dom|rcron.Month|rcron.Dow|rcron.Descriptor,
		)))
	} else {
		opts = append(opts, rcron.WithParser(rcron.NewParser(
			rcron.Minute|rcron.Hour|rcron.Dom|rcron.Month|rcron.Dow|rcron.Descriptor,
		)))
	}

	opts = append(opts, rcron.WithChain(
		rcron.Recover(&errorHandlerAdapter{handler: s.errorHandler}),
	))

	var cronLogger rcron.Logger
	switch {
	case s.logger != nil:
		cronLogger = &loggerAdapter{logger: s.logger, level: s.logLevel}
	case s.logWriter != nil && s.logLevel > LogLevelSilent:
		cronLogger = makeLogger(s.logWriter, s.logLevel)
	}
	if cronLogger != nil {
		opts = append(opts, rcron.WithLogger(cronLogger))
	}
	return opts
}

// ValidateExpression reports whether expr parses under p.
func ValidateExpression(p Parser, expr string) error {
	fields := rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor
	if p == SecondsParser {
		fields |= rcron.Second
	}
	_, err := rcron.NewParser(fields).Parse(expr)
	return err
}
