// Package apperr defines the error kinds shared by the chat gateway.
//
// Callers classify failures with Is or KindOf rather than comparing
// messages:
//
//	if apperr.Is(err, apperr.KindNotFound) { ... }
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindAuthentication: missing, malformed, expired or forged token.
	KindAuthentication Kind = "authentication"
	// KindAuthorization: valid identity that may not access the target.
	KindAuthorization Kind = "authorization"
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	// KindUpstream: a collaborator service call failed.
	KindUpstream Kind = "upstream"
	KindInternal Kind = "internal"
)

// Error is a classified failure. Err, when set, is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Authentication(message string, err error) *Error { return Wrap(KindAuthentication, message, err) }
func Authorization(message string) *Error             { return New(KindAuthorization, message) }
func Validation(message string) *Error                { return New(KindValidation, message) }
func NotFound(message string) *Error                  { return New(KindNotFound, message) }
func Upstream(message string, err error) *Error       { return Wrap(KindUpstream, message, err) }

// Is reports whether any *Error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when err is not classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns a message that is safe to show to a client. Internal
// errors are not described.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "internal error"
}
