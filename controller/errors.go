package controller

import (
	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeActionFailed = "ACTION_FAILED"
	ErrCodeCommandBusy  = "ACTION_COMMAND_BUSY"
	ErrCodeInvalidOwner = "ACTION_INVALID_OWNER"
)

var (
	ErrActionFailed = apperrors.New("action did not complete successfully", apperrors.CategoryHandler).
			WithTextCode(ErrCodeActionFailed)
	ErrCommandBusy = apperrors.New("command is already running", apperrors.CategoryConflict).
			WithTextCode(ErrCodeCommandBusy)
	ErrInvalidOwner = apperrors.New("action owner is required", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeInvalidOwner)
)
