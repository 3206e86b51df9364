package logging

import (
	"context"

	"github.com/goliatone/go-logger/glog"

	action "github.com/goliatone/go-action"
)

// Glog adapts a go-logger logger to action.Logger.
type Glog struct {
	logger glog.Logger
}

// NewGlog wraps l. A nil logger falls back to the fmt logger.
func NewGlog(l glog.Logger) action.Logger {
	if l == nil {
		return action.NewFmtLogger(nil)
	}
	return Glog{logger: l}
}

func (l Glog) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l Glog) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l Glog) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l Glog) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l Glog) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l Glog) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l Glog) WithContext(ctx context.Context) action.Logger {
	return Glog{logger: l.logger.WithContext(ctx)}
}

func (l Glog) WithFields(fields map[string]any) action.Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return Glog{logger: fl.WithFields(fields)}
	}
	return l
}
