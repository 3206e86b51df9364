package pipeline

import "sync/atomic"

// Gate decides whether the remaining work stages of a handle may run.
// It starts open and can only be closed.
type Gate struct {
	closed atomic.Bool
}

func NewGate() *Gate {
	return &Gate{}
}

// Open reports whether work may continue.
func (g *Gate) Open() bool {
	return !g.closed.Load()
}

// Close shuts the gate. It returns true for the call that closed it.
func (g *Gate) Close() bool {
	return g.closed.CompareAndSwap(false, true)
}

// Set closes the gate when ok is false. An open result never reopens it.
func (g *Gate) Set(ok bool) {
	if !ok {
		g.Close()
	}
}
