package flow

import (
	stderrors "errors"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeFlowDisposed       = "FLOW_DISPOSED"
	ErrCodeInvalidTransition  = "FLOW_INVALID_TRANSITION"
	ErrCodeUnknownAction      = "FLOW_UNKNOWN_ACTION"
	ErrCodeDuplicateAction    = "FLOW_DUPLICATE_ACTION"
	ErrCodeInvalidFactory     = "FLOW_INVALID_FACTORY"
	ErrCodeMissingOwner       = "FLOW_MISSING_OWNER"
	ErrCodeHookRegistrySealed = "FLOW_HOOK_REGISTRY_SEALED"
	ErrCodeHookFailed         = "FLOW_HOOK_FAILED"
)

var (
	ErrFlowDisposed = apperrors.New("flow disposed", apperrors.CategoryConflict).
			WithTextCode(ErrCodeFlowDisposed)
	ErrInvalidTransition = apperrors.New("invalid lifecycle transition", apperrors.CategoryConflict).
				WithTextCode(ErrCodeInvalidTransition)
	ErrUnknownAction = apperrors.New("unknown action", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeUnknownAction)
	ErrDuplicateAction = apperrors.New("action already registered", apperrors.CategoryConflict).
				WithTextCode(ErrCodeDuplicateAction)
	ErrInvalidFactory = apperrors.New("action factory is invalid", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidFactory)
	ErrMissingOwner = apperrors.New("flow owner is required", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeMissingOwner)
	ErrHookRegistrySealed = apperrors.New("hook registry sealed", apperrors.CategoryConflict).
				WithTextCode(ErrCodeHookRegistrySealed)
	ErrHookFailed = apperrors.New("lifecycle hook failed", apperrors.CategoryHandler).
			WithTextCode(ErrCodeHookFailed)
)

func cloneFlowError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrInvalidTransition
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of a flow error, or "".
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsDisposed reports whether err came from a disposed flow.
func IsDisposed(err error) bool {
	return ErrorCode(err) == ErrCodeFlowDisposed
}

// IsUnknownAction reports whether err came from a registry miss.
func IsUnknownAction(err error) bool {
	return ErrorCode(err) == ErrCodeUnknownAction
}
