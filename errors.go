package avatar

import (
	"errors"
	"fmt"
)

// Kind classifies the failures reported by this package. Every error returned
// by the skeleton builder and by the binding operations carries exactly one
// Kind; use KindOf to extract it, or compare against the Err* sentinels with
// errors.Is.
type Kind int

const (
	_ Kind = iota // zero value, never reported

	// Build-time kinds: the descriptor list does not describe a single tree.

	NoRootFound
	MultipleRootsFound
	InvalidID
	DuplicateID
	DuplicateSensorID
	UnreachableNodes

	// Runtime kinds: a binding transaction was rejected and left no trace.

	NullArgument
	InvalidArgument
	UnknownBone
	SensorIDInUse
	WrongDriverKind
	QueryFailed
	UnknownSensorID
)

func (k Kind) String() string {
	switch k {
	case NoRootFound:
		return "no root found"
	case MultipleRootsFound:
		return "multiple roots found"
	case InvalidID:
		return "invalid id"
	case DuplicateID:
		return "duplicate id"
	case DuplicateSensorID:
		return "duplicate sensor id"
	case UnreachableNodes:
		return "unreachable nodes"
	case NullArgument:
		return "null argument"
	case InvalidArgument:
		return "invalid argument"
	case UnknownBone:
		return "unknown bone"
	case SensorIDInUse:
		return "sensor id in use"
	case WrongDriverKind:
		return "wrong driver kind"
	case QueryFailed:
		return "query failed"
	case UnknownSensorID:
		return "unknown sensor id"
	default:
		return fmt.Sprintf("avatar.Kind(%d)", int(k))
	}
}

// Error describes a failure of a specific Kind.
//
// Ref names the offending identifier when there is one: the duplicated bone id
// or sensor id, the unknown bone, the bone already owning a sensor id, or the
// sensor id missing from a driver's list. Err is the underlying cause, if any
// (e.g. the upstream query failure).
type Error struct {
	Kind Kind
	Ref  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch e.Kind {
	case SensorIDInUse:
		msg += fmt.Sprintf(" by bone %q", e.Ref)
	default:
		if e.Ref != "" {
			msg += fmt.Sprintf(" %q", e.Ref)
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so any Error matches
// the sentinel of its Kind regardless of Ref and Err.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for use with errors.Is.
var (
	ErrNoRootFound        = &Error{Kind: NoRootFound}
	ErrMultipleRootsFound = &Error{Kind: MultipleRootsFound}
	ErrInvalidID          = &Error{Kind: InvalidID}
	ErrDuplicateID        = &Error{Kind: DuplicateID}
	ErrDuplicateSensorID  = &Error{Kind: DuplicateSensorID}
	ErrUnreachableNodes   = &Error{Kind: UnreachableNodes}
	ErrNullArgument       = &Error{Kind: NullArgument}
	ErrInvalidArgument    = &Error{Kind: InvalidArgument}
	ErrUnknownBone        = &Error{Kind: UnknownBone}
	ErrSensorIDInUse      = &Error{Kind: SensorIDInUse}
	ErrWrongDriverKind    = &Error{Kind: WrongDriverKind}
	ErrQueryFailed        = &Error{Kind: QueryFailed}
	ErrUnknownSensorID    = &Error{Kind: UnknownSensorID}
)

// KindOf returns the Kind of the first *Error in err's chain, or zero if there
// is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(k Kind, ref string) *Error {
	return &Error{Kind: k, Ref: ref}
}
