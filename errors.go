package circulate

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a transport response
// without string matching.
type Kind uint8

const (
	KindUnknown      Kind = iota
	KindUnauthorized      // no borrower identity
	KindForbidden         // authenticated but lacks the admin capability
	KindValidation        // missing or malformed required fields
	KindConflict          // isbn taken, duplicate active loan, delete-while-borrowed
	KindNotFound          // missing record
	KindUnavailable       // no copies left
	KindUpstream          // store or cache transport failure
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not found"
	case KindUnavailable:
		return "unavailable"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error carries the failure kind alongside the operation that produced it.
type Error struct {
	Kind Kind
	Op   string // e.g. "borrow", "catalog.add"
	Msg  string // human-readable reason; optional when Err is set
	Err  error  // wrapped cause; optional
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error with a fixed message.
func E(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an *Error around a cause, typically a transport failure.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }
