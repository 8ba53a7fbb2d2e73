// Package engineerr defines the error-kind taxonomy:
// every fallible operation in store, predict, syncengine, and session
// returns one of these kinds, wrapped so callers can still reach the
// underlying cause with errors.As/errors.Is.
package engineerr

import "fmt"

// Kind identifies one of the five error categories.
type Kind int

const (
	// ProtocolError covers bad framing or a bad wire-format version.
	ProtocolError Kind = iota
	// DeterminismViolation covers a non-integer operation caught by the
	// debug guard, or a snapshot hash mismatch right after a load.
	DeterminismViolation
	// ResourceExhausted covers entity-id space exhaustion or a ring
	// buffer too small for a requested rollback.
	ResourceExhausted
	// ProgrammerError covers misuse such as a missing client-id resolver
	// or a query against an unregistered component.
	ProgrammerError
	// Transient covers a disconnected relay; retried with backoff by the
	// caller before escalating.
	Transient
)

func (k Kind) String() string {
	switch k {
	case ProtocolError:
		return "ProtocolError"
	case DeterminismViolation:
		return "DeterminismViolation"
	case ResourceExhausted:
		return "ResourceExhausted"
	case ProgrammerError:
		return "ProgrammerError"
	case Transient:
		return "Transient"
	default:
		return "UnknownKind"
	}
}

// Error wraps a Kind and an underlying cause (which may be nil).
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an Error wrapping cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
