package action

import (
	"fmt"
)

// DuplicateKeyError is returned when a key is added twice to a Context.
type DuplicateKeyError struct {
	Context string
	Key     string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("context %s: duplicate key %q", e.Context, e.Key)
}

// MissingReason tells why a typed lookup failed.
type MissingReason string

const (
	MissingReasonAbsent       MissingReason = "absent"
	MissingReasonTypeMismatch MissingReason = "type_mismatch"
)

// MissingKeyError is returned by Get when the key is absent or holds a
// value of another type.
type MissingKeyError struct {
	Context  string
	Key      string
	Reason   MissingReason
	Expected string
	Actual   string
}

func (e *MissingKeyError) Error() string {
	if e.Reason == MissingReasonTypeMismatch {
		return fmt.Sprintf("context %s: key %q holds %s, requested %s", e.Context, e.Key, e.Actual, e.Expected)
	}
	return fmt.Sprintf("context %s: missing key %q", e.Context, e.Key)
}

// UncopyableValueError is returned when a reference value cannot be
// cloned into a Context.
type UncopyableValueError struct {
	Key  string
	Type string
	Err  error
}

func (e *UncopyableValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("value for key %q of type %s cannot be copied: %v", e.Key, e.Type, e.Err)
	}
	return fmt.Sprintf("value for key %q of type %s cannot be copied: implement Cloner or mark the entry shared", e.Key, e.Type)
}

func (e *UncopyableValueError) Unwrap() error {
	return e.Err
}
