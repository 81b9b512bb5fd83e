package policy

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable error class carried on the wire.
type Kind string

const (
	// KindUnavailable covers network faults, provider errors and empty replies.
	KindUnavailable Kind = "unavailable"

	// KindInvalidInput means the request itself was malformed.
	KindInvalidInput Kind = "invalid-input"
)

// Sentinel errors matched by *Error through errors.Is.
var (
	ErrPolicyUnavailable = errors.New("policy: unavailable")
	ErrInvalidInput      = errors.New("policy: invalid input")
)

// Error is returned by every Client implementation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("policy %s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPolicyUnavailable) and
// errors.Is(err, ErrInvalidInput) match by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrPolicyUnavailable:
		return e.Kind == KindUnavailable
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	}
	return false
}

// Unavailable wraps err as a KindUnavailable error.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUnavailable, Err: err}
}

// InvalidInput returns a KindInvalidInput error.
func InvalidInput(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a policy error, defaulting to unavailable.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnavailable
}
