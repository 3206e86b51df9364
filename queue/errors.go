package queue

import (
	stderrors "errors"

	apperrors "github.com/goliatone/go-errors"
)

const ErrCodeManagerDisposed = "QUEUE_MANAGER_DISPOSED"

var ErrManagerDisposed = apperrors.New("queue manager disposed", apperrors.CategoryConflict).
	WithTextCode(ErrCodeManagerDisposed)

// IsManagerDisposed reports whether err is a rejection from a disposed manager.
func IsManagerDisposed(err error) bool {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode == ErrCodeManagerDisposed
	}
	return false
}

func disposedError(owner, handleID string) error {
	return ErrManagerDisposed.Clone().WithMetadata(map[string]any{
		"owner":     owner,
		"handle_id": handleID,
	})
}
