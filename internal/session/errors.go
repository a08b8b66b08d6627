package session

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure so the transport can map it to a
// wire status without string matching.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindValidation  Kind = "validation"
	KindIllegalMove Kind = "illegal_move"
	KindForbidden   Kind = "forbidden"
	KindConflict    Kind = "conflict"
	KindInternal    Kind = "internal"
)

// Error is the structured outcome every session operation returns on
// failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// KindOf extracts the error kind, defaulting to internal for unexpected
// failures.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func errNotFound(id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("session %s not found", id)}
}

func errValidation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func errIllegalMove(format string, args ...any) *Error {
	return &Error{Kind: KindIllegalMove, Message: fmt.Sprintf(format, args...)}
}

func errForbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func errConflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func errInternal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}
