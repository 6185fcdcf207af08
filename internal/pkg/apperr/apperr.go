// Package apperr defines the error taxonomy shared by the content store, the
// comment caches and the HTTP layer.
//
// Every error that leaves a store or cache boundary is an *Error with one of
// the kinds below. Handlers map kinds to HTTP status codes through Expose.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error by how callers should react to it.
type Kind string

const (
	KindInvalidRequest  Kind = "INVALID_REQUEST"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindTooManyRequests Kind = "TOO_MANY_REQUESTS"
	KindInternal        Kind = "INTERNAL"
)

// Sentinels usable with errors.Is.
var (
	ErrInvalidRequest  = &Error{Kind: KindInvalidRequest}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrTooManyRequests = &Error{Kind: KindTooManyRequests}
	ErrInternal        = &Error{Kind: KindInternal}
)

// ErrNotConfigured is wrapped by Internal errors raised when an optional
// backend (database, mailer) has not been configured.
var ErrNotConfigured = errors.New("not configured")

const internalMessage = "internal error"

// Error is a classified error.
type Error struct {
	Kind    Kind
	Message string
	// Tag is a free-form subsystem marker ("db", "github", "pool") used in logs.
	Tag        string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Tag != "" {
		msg = e.Tag + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Expected reports whether the kind is part of normal operation, in which case
// the message can be shown to the requester.
func (k Kind) Expected() bool {
	return k != KindInternal && k != ""
}

// Status maps the kind to an HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) *Error  { return newf(KindInvalidRequest, format, args...) }
func NotFound(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error { return newf(KindConflict, format, args...) }
func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}
func Unauthorized(format string, args ...any) *Error {
	return newf(KindUnauthorized, format, args...)
}

// TooMany builds a rate-limit error carrying a retry hint.
func TooMany(retryAfter time.Duration, message string) *Error {
	return &Error{Kind: KindTooManyRequests, Message: message, RetryAfter: retryAfter}
}

// Internal wraps err as an unclassified failure tagged with the subsystem.
func Internal(tag string, err error) *Error {
	return &Error{Kind: KindInternal, Tag: tag, Message: internalMessage, Err: err}
}

// NotConfigured reports a missing optional backend.
func NotConfigured(tag string) *Error {
	return &Error{Kind: KindInternal, Tag: tag, Message: "backend not configured", Err: ErrNotConfigured}
}

// FromStatus classifies a remote API failure by its HTTP status code. The
// remote message is kept for diagnostics; it becomes the public message only
// for expected kinds.
func FromStatus(tag string, status int, remoteMessage string, err error) *Error {
	var kind Kind
	switch status {
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusConflict:
		kind = KindConflict
	case http.StatusUnauthorized:
		kind = KindUnauthorized
	case http.StatusForbidden:
		kind = KindForbidden
	default:
		kind = KindInternal
	}
	msg := remoteMessage
	if msg == "" || kind == KindInternal {
		msg = fmt.Sprintf("remote status %d", status)
		if remoteMessage != "" {
			msg += " (" + remoteMessage + ")"
		}
	}
	return &Error{Kind: kind, Tag: tag, Message: msg, Err: err}
}

// From returns err as an *Error, wrapping unknown errors as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("", err)
}

// KindOf returns the classified kind of err, Internal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// Expose returns the status code and the message safe to show to clients.
func Expose(err error) (int, string) {
	e := From(err)
	if !e.Kind.Expected() {
		return http.StatusInternalServerError, internalMessage
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	return e.Kind.Status(), msg
}
