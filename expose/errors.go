package expose

import apperrors "github.com/goliatone/go-errors"

const (
	ErrCodeAlreadyInitialized = "EXPOSE_ALREADY_INITIALIZED"
	ErrCodeNotInitialized     = "EXPOSE_NOT_INITIALIZED"
	ErrCodeSchedulerNotSet    = "EXPOSE_SCHEDULER_NOT_SET"
	ErrCodeCronRegistration   = "EXPOSE_CRON_REGISTRATION_FAILED"
)

var (
	ErrAlreadyInitialized = apperrors.New("expose registry already initialized", apperrors.CategoryConflict).
				WithTextCode(ErrCodeAlreadyInitialized)
	ErrNotInitialized = apperrors.New("expose registry not initialized", apperrors.CategoryConflict).
				WithTextCode(ErrCodeNotInitialized)
	ErrSchedulerNotSet = apperrors.New("cron scheduler not provided", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeSchedulerNotSet)
)
