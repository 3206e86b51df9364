package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-logger/glog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	action "github.com/goliatone/go-action"
)

const (
	BackendGlog = "glog"
	BackendZap  = "zap"
	BackendFmt  = "fmt"
)

// Config selects and tunes a logging backend.
type Config struct {
	Backend string
	Level   string
	Format  string
	Writer  io.Writer
}

// New builds the logger described by cfg. Empty fields default to a
// glog JSON logger at info level on stdout.
func New(cfg Config) (action.Logger, error) {
	out := cfg.Writer
	if out == nil {
		out = os.Stdout
	}
	level := strings.ToLower(strings.TrimSpace(cfg.Level))
	if level == "" {
		level = "info"
	}
	format := strings.ToLower(strings.TrimSpace(cfg.Format))

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendGlog:
		if format == "" || format == "json" {
			return NewGlog(glog.NewLogger(
				glog.WithWriter(out),
				glog.WithLoggerTypeJSON(),
				glog.WithLevel(level),
			)), nil
		}
		return NewGlog(glog.NewLogger(
			glog.WithWriter(out),
			glog.WithLevel(level),
		)), nil
	case BackendZap:
		l, err := newZapLogger(out, level, format)
		if err != nil {
			return nil, err
		}
		return NewZap(l.Sugar()), nil
	case BackendFmt:
		return action.NewFmtLogger(out), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}

func newZapLogger(out io.Writer, level, format string) (*zap.Logger, error) {
	if level == "trace" {
		level = "debug"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch format {
	case "console":
		encoderConfig.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.AddCaller()), nil
}
