package speechtext

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrInputDecode means an input could not be decoded or resampled.
	ErrInputDecode = errors.New("input decode failed")
	// ErrShapeInvariant means an internal shape assumption was violated.
	ErrShapeInvariant = errors.New("shape invariant violated")
	// ErrModelInvocation means the model failed or returned malformed output.
	ErrModelInvocation = errors.New("model invocation failed")
	// ErrCapacity means a request exceeded configured limits.
	ErrCapacity = errors.New("capacity exceeded")
	// ErrNotReady means no model is loaded yet.
	ErrNotReady = errors.New("service not ready")
)

// Error records which kind of failure happened and, for per-item failures,
// the position of the offending input.
type Error struct {
	Kind  error
	Index int // input position, or -1 for request-level failures
	Err   error
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%v: item %d: %v", e.Kind, e.Index, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(kind error, index int, err error) *Error {
	return &Error{Kind: kind, Index: index, Err: err}
}

// IsClientError reports whether err is the caller's fault: undecodable
// input or a request over the configured limits.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInputDecode) || errors.Is(err, ErrCapacity)
}
