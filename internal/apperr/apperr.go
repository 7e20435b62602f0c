// Package apperr defines the closed error taxonomy used across the
// deployment orchestrator. Every failure that crosses a package boundary is
// one of these kinds, so handlers can map errors to HTTP statuses without
// string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes errors for programmatic handling.
type Kind string

const (
	KindValidation   Kind = "VALIDATION"    // missing/malformed request fields
	KindNotFound     Kind = "NOT_FOUND"     // missing server/template/deployment/staged artifact
	KindConnection   Kind = "CONNECTION"    // SSH connect failure
	KindCommand      Kind = "COMMAND"       // mid-operation transport failure while running a command
	KindTransfer     Kind = "TRANSFER"      // file transfer failure
	KindResolution   Kind = "RESOLUTION"    // server cannot be matched from stale ip/name data
	KindNotConnected Kind = "NOT_CONNECTED" // operation on a session that is not ready
	KindInternal     Kind = "INTERNAL"      // unexpected failure
)

// Error is a structured error with a kind, an optional domain for context,
// and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Domain  string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Domain != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Domain, e.Message, e.Err)
	case e.Domain != "":
		return fmt.Sprintf("%s: %s", e.Domain, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so sentinel comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConnection   = &Error{Kind: KindConnection, Message: "connection failed"}
	ErrCommand      = &Error{Kind: KindCommand, Message: "command failed"}
	ErrTransfer     = &Error{Kind: KindTransfer, Message: "transfer failed"}
	ErrResolution   = &Error{Kind: KindResolution, Message: "server resolution failed"}
	ErrNotConnected = &Error{Kind: KindNotConnected, Message: "not connected"}
)

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Connection(msg string, err error) error {
	return &Error{Kind: KindConnection, Message: msg, Err: err}
}

func Command(msg string, err error) error {
	return &Error{Kind: KindCommand, Message: msg, Err: err}
}

func Transfer(msg string, err error) error {
	return &Error{Kind: KindTransfer, Message: msg, Err: err}
}

func Resolution(msg string) error {
	return &Error{Kind: KindResolution, Message: msg}
}

func NotConnected(op string) error {
	return &Error{Kind: KindNotConnected, Message: "ssh session not connected: " + op}
}

func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// Wrap creates an error with the given kind around err.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to the HTTP status the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindConnection, KindCommand, KindTransfer:
		return 502
	case KindNotConnected:
		return 409
	default:
		return 500
	}
}
