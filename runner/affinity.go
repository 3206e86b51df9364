package runner

import (
	"fmt"
	"strings"
)

// Affinity tells where a callback must run.
type Affinity int

const (
	// Background callbacks run on a pool worker.
	Background Affinity = iota
	// Main callbacks run on the single UI-affine loop.
	Main
)

func (a Affinity) String() string {
	switch a {
	case Main:
		return "main"
	case Background:
		return "background"
	default:
		return fmt.Sprintf("affinity(%d)", int(a))
	}
}

// ParseAffinity maps "main"/"background" to an Affinity.
func ParseAffinity(s string) (Affinity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "main", "ui":
		return Main, nil
	case "", "background", "worker":
		return Background, nil
	default:
		return Background, fmt.Errorf("unknown affinity %q", s)
	}
}

// Priority orders callbacks waiting for the main loop. Higher runs first.
type Priority int

const (
	PriorityLow      Priority = -10
	PriorityNormal   Priority = 0
	PriorityHigh     Priority = 10
	PriorityCritical Priority = 20
)
