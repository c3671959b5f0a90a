package scheduling

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the presentation layer can decide how to
// report them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindPermission
	KindStaleReference
	KindCancelled
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindStaleReference:
		return "stale_reference"
	case KindCancelled:
		return "cancelled"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is the error type returned across the scheduling API.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrCancelled    = &Error{Kind: KindCancelled, Msg: "cancelled"}
	ErrNotFound     = &Error{Kind: KindValidation, Msg: "not found"}
	ErrTimesUnset   = &Error{Kind: KindValidation, Msg: "the event start and end times must be set first"}
	ErrNotQualified = &Error{Kind: KindValidation, Msg: "you are not qualified for this position"}
	ErrNoOpenShifts = &Error{Kind: KindValidation, Msg: "there are no open shifts for this position"}
	ErrBracketFull  = &Error{Kind: KindValidation, Msg: "that shift is already full"}
	ErrOverlap      = &Error{Kind: KindValidation, Msg: "shift brackets overlap"}
	ErrLockedOut    = &Error{Kind: KindValidation, Msg: "this event is locked for changes"}
)

// Validationf builds a validation error that reads as msg to users.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// invalid wraps a sentinel with a more specific message, keeping errors.Is working.
func invalid(base *Error, format string, args ...any) error {
	return &Error{Kind: base.Kind, Msg: fmt.Sprintf(format, args...), Err: base}
}

// PermissionDenied marks a platform call refused for lack of permission.
func PermissionDenied(msg string, err error) error {
	return &Error{Kind: KindPermission, Msg: msg, Err: err}
}

// StaleReference marks a message or channel that no longer exists.
func StaleReference(msg string, err error) error {
	return &Error{Kind: KindStaleReference, Msg: msg, Err: err}
}

func persistence(op string, err error) error {
	return &Error{Kind: KindPersistence, Msg: "could not save changes", Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf reports the kind of err, treating context cancellation as KindCancelled.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}

// UserMessage returns the outermost message meant for the initiating user.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "an unexpected error occurred"
}
