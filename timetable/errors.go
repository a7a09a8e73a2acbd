package timetable

import "github.com/pkg/errors"

// Kind classifies a timetable-level error (spec §7).
type Kind int

const (
	// KindIncoherent is TimetableIncoherent: validation failed at load.
	KindIncoherent Kind = iota
)

// Error wraps a cause with a Kind, matching the router package's error
// shape (see router.Error, DESIGN.md).
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string { return e.cause.Error() }
func (e *Error) Unwrap() error { return e.cause }

func newError(k Kind, cause error) *Error { return &Error{Kind: k, cause: cause} }

// Incoherent wraps err as a TimetableIncoherent error.
func Incoherent(err error) error {
	return newError(KindIncoherent, errors.Wrap(err, "timetable incoherent"))
}
