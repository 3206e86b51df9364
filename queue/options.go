package queue

import (
	"context"

	action "github.com/goliatone/go-action"
)

type Option func(*Manager)

func WithLogger(l action.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r == nil {
			r = NopRecorder{}
		}
		m.recorder = r
	}
}

// WithReporter sets where queue level failures go. Stage failures are
// reported by each handle's own exception handler.
func WithReporter(r action.Reporter) Option {
	return func(m *Manager) {
		m.reporter = r
	}
}

// WithBaseContext sets the context handles run under.
func WithBaseContext(ctx context.Context) Option {
	return func(m *Manager) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}
