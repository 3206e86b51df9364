package action

import (
	"fmt"
	"runtime"
	"strings"
)

// PanicError carries a recovered panic value and the cleaned stack.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// RecoverError converts a value returned by recover() into an error.
// It returns nil when nothing was recovered.
func RecoverError(recovered any) error {
	if recovered == nil {
		return nil
	}
	fullStack := make([]byte, 8096)
	n := runtime.Stack(fullStack, false)
	return &PanicError{
		Value: recovered,
		Stack: cleanStackTrace(fullStack[:n]),
	}
}

// Guard runs fn and turns a panic into a *PanicError.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = RecoverError(r)
		}
	}()
	return fn()
}

func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")

	panicLineIndex := -1
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			panicLineIndex = i
			break
		}
	}

	// drop the panic() frame and its file reference
	if panicLineIndex >= 0 && panicLineIndex+2 < len(lines) {
		lines = lines[panicLineIndex+2:]
	}

	return []byte(strings.Join(lines, "\n"))
}
