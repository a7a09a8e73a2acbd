package router

import "github.com/pkg/errors"

// Kind classifies a router-level error (spec §7).
type Kind int

const (
	// KindAllocationFailure is fatal: abort the query.
	KindAllocationFailure Kind = iota
	// KindInvalidRequest rejects the query with a message (onboard+arrive-by,
	// unresolved origin, out-of-range stop).
	KindInvalidRequest
)

// Error wraps a cause with a Kind (spec §7; mirrors timetable.Error).
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string { return e.cause.Error() }
func (e *Error) Unwrap() error { return e.cause }

func invalidRequest(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidRequest, cause: errors.Errorf(format, args...)}
}

func allocationFailure(cause error) error {
	return &Error{Kind: KindAllocationFailure, cause: errors.Wrap(cause, "allocation failure")}
}
