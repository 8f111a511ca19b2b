// Package chesserr defines the caller-visible error taxonomy shared by the
// challenge registry, the game engine and the query layer.
package chesserr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and transports.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindRule          Kind = "illegal_move"
	KindNotFound      Kind = "not_found"
	KindClock         Kind = "clock"
	KindInternal      Kind = "internal"
)

// Error is a structured domain error. Code is a stable snake_case token,
// Message is free text for humans.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// Is matches on Kind, and on Code as well when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Kind sentinels for errors.Is.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrState         = &Error{Kind: KindState}
	ErrRule          = &Error{Kind: KindRule}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrClock         = &Error{Kind: KindClock}
)

func newf(kind Kind, code, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(code, format string, args ...any) *Error {
	return newf(KindValidation, code, format, args...)
}

func Authorization(code, format string, args ...any) *Error {
	return newf(KindAuthorization, code, format, args...)
}

func State(code, format string, args ...any) *Error {
	return newf(KindState, code, format, args...)
}

// IllegalMove wraps an oracle rejection; reason is surfaced verbatim.
func IllegalMove(reason string) *Error {
	return &Error{Kind: KindRule, Code: "illegal_move", Message: reason}
}

func Clock(code, format string, args ...any) *Error {
	return newf(KindClock, code, format, args...)
}

// NotFound reports an unknown id in the named table, e.g. "game_not_found".
func NotFound(entity string, id uint64) *Error {
	return &Error{Kind: KindNotFound, Code: entity + "_not_found", Message: fmt.Sprintf("%s %d does not exist", entity, id)}
}

// Conflict is returned when a watched key changed under a transaction.
func Conflict() *Error {
	return &Error{Kind: KindState, Code: "store_conflict", Message: "state changed during the call, resubmit", Retryable: true}
}

// As extracts the domain error from err, if any.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf classifies err; errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if de, ok := As(err); ok {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, "internal" for foreign errors.
func CodeOf(err error) string {
	if de, ok := As(err); ok {
		return de.Code
	}
	return "internal"
}
