package pipeline

import (
	"errors"
	"fmt"

	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-action/runner"
)

const (
	ErrCodeMissingOwner   = "PIPELINE_MISSING_OWNER"
	ErrCodeInvalidStage   = "PIPELINE_INVALID_STAGE"
	ErrCodeHandleConsumed = "PIPELINE_HANDLE_CONSUMED"
	ErrCodeStageDispatch  = "PIPELINE_STAGE_DISPATCH"
)

var (
	ErrMissingOwner = apperrors.New("pipeline owner key is required", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeMissingOwner)
	ErrInvalidStage = apperrors.New("pipeline stage callback is required", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeInvalidStage)
	ErrHandleConsumed = apperrors.New("handle already ran", apperrors.CategoryConflict).
				WithTextCode(ErrCodeHandleConsumed)
	ErrStageDispatch = apperrors.New("stage could not be dispatched", apperrors.CategoryHandler).
				WithTextCode(ErrCodeStageDispatch)
)

// StageError is what the exception handler receives when a stage fails.
type StageError struct {
	Handle string
	Owner  string
	Stage  string
	Kind   StageKind
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (%s) of handle %s failed: %v", e.Stage, e.Kind, e.Handle, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func invalidStage(name string) error {
	return apperrors.Wrap(ErrInvalidStage, apperrors.CategoryBadInput, fmt.Sprintf("stage %q has no callback", name)).
		WithTextCode(ErrCodeInvalidStage)
}

// dispatchFailure tags executor refusals so handlers can tell them apart
// from errors returned by the stage itself.
func dispatchFailure(stage Stage, err error) error {
	var dispatch *runner.DispatchError
	if !errors.As(err, &dispatch) {
		return err
	}
	return errors.Join(
		ErrStageDispatch.Clone().WithMetadata(map[string]any{
			"stage":    stage.Name,
			"affinity": dispatch.Affinity.String(),
		}),
		err,
	)
}
