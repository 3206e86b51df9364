package runner

import action "github.com/goliatone/go-action"

// MainOption configures a MainLoop.
type MainOption func(*MainLoop)

// WithMainLogger sets the loop logger.
func WithMainLogger(l action.Logger) MainOption {
	return func(m *MainLoop) {
		m.logger = l
	}
}

// WithQueueLimit caps how many callbacks may wait on the loop. Zero means
// unbounded.
func WithQueueLimit(limit int) MainOption {
	return func(m *MainLoop) {
		if limit < 0 {
			limit = 0
		}
		m.limit = limit
	}
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the pool logger.
func WithPoolLogger(l action.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = l
	}
}
