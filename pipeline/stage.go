package pipeline

import (
	"context"

	"github.com/goliatone/go-action/runner"
)

// StageKind is the role a stage plays in a handle.
type StageKind int

const (
	StageWrap StageKind = iota
	StageGate
	StageContinue
	StageFinish
)

func (k StageKind) String() string {
	switch k {
	case StageWrap:
		return "wrap"
	case StageGate:
		return "gate"
	case StageContinue:
		return "continue"
	case StageFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// StageFunc is the body of a wrap, continue or finish stage.
type StageFunc func(ctx context.Context) error

// GateFunc is the body of a gate stage.
type GateFunc func(ctx context.Context) bool

// Stage is one callback of a handle with its thread affinity.
type Stage struct {
	Name     string
	Kind     StageKind
	Affinity runner.Affinity
	Priority runner.Priority

	run   StageFunc
	check GateFunc
	order int
}
