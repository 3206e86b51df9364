package runner

import (
	"fmt"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeMainLoopStopped = "MAIN_LOOP_STOPPED"
	ErrCodeMainQueueFull   = "MAIN_QUEUE_FULL"
)

var (
	ErrMainLoopStopped = apperrors.New("main loop stopped", apperrors.CategoryConflict).
				WithTextCode(ErrCodeMainLoopStopped)
	ErrMainQueueFull = apperrors.New("main loop queue is full", apperrors.CategoryConflict).
				WithTextCode(ErrCodeMainQueueFull)
)

// DispatchError means a callback could not be started on its target
// context. The callback did not run.
type DispatchError struct {
	Affinity Affinity
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s failed: %v", e.Affinity, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
