package logging

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	action "github.com/goliatone/go-action"
)

// Zap adapts a sugared zap logger to action.Logger. Trace maps to debug.
type Zap struct {
	logger *zap.SugaredLogger
}

// NewZap wraps l. A nil logger falls back to the fmt logger.
func NewZap(l *zap.SugaredLogger) action.Logger {
	if l == nil {
		return action.NewFmtLogger(nil)
	}
	return Zap{logger: l}
}

func (l Zap) Trace(msg string, args ...any) { l.log(l.logger.Debugf, l.logger.Debugw, msg, args) }
func (l Zap) Debug(msg string, args ...any) { l.log(l.logger.Debugf, l.logger.Debugw, msg, args) }
func (l Zap) Info(msg string, args ...any)  { l.log(l.logger.Infof, l.logger.Infow, msg, args) }
func (l Zap) Warn(msg string, args ...any)  { l.log(l.logger.Warnf, l.logger.Warnw, msg, args) }
func (l Zap) Error(msg string, args ...any) { l.log(l.logger.Errorf, l.logger.Errorw, msg, args) }
func (l Zap) Fatal(msg string, args ...any) { l.log(l.logger.Fatalf, l.logger.Fatalw, msg, args) }

func (l Zap) WithContext(context.Context) action.Logger { return l }

func (l Zap) WithFields(fields map[string]any) action.Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kv := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return Zap{logger: l.logger.With(kv...)}
}

// log keeps printf style messages working next to key/value pairs.
func (l Zap) log(printf func(string, ...any), pairs func(string, ...any), msg string, args []any) {
	if len(args) > 0 && strings.Contains(msg, "%") {
		printf(msg, args...)
		return
	}
	pairs(msg, args...)
}
