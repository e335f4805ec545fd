package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures surfaced by the client core.
type ErrorKind string

const (
	TransportError  ErrorKind = "TRANSPORT_ERROR"
	ServerRejected  ErrorKind = "SERVER_REJECTED"
	ValidationError ErrorKind = "VALIDATION_ERROR"
)

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrTransport      = errors.New("transport error")
	ErrServerRejected = errors.New("server rejected request")
	ErrValidation     = errors.New("validation failed")
)

// Error is the structured failure returned by reads and mutations.
type Error struct {
	Kind    ErrorKind
	Message string
	// Status is the HTTP status when one was received.
	Status int
	// Codes carries field-level validation codes in precedence order.
	Codes []string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && (e.Message == "" || !strings.Contains(e.Message, e.Err.Error())) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == TransportError
	case ErrServerRejected:
		return e.Kind == ServerRejected
	case ErrValidation:
		return e.Kind == ValidationError
	}
	return false
}

// NewTransportError wraps a network, status or decoding failure.
func NewTransportError(msg string, err error) *Error {
	return &Error{Kind: TransportError, Message: msg, Err: err}
}

// NewServerRejected carries the server's error message verbatim.
func NewServerRejected(status int, msg string) *Error {
	if msg == "" {
		msg = "request rejected"
	}
	return &Error{Kind: ServerRejected, Status: status, Message: msg}
}

// NewValidationError reports client-side failures that never hit the network.
func NewValidationError(msg string, codes ...string) *Error {
	return &Error{Kind: ValidationError, Message: msg, Codes: codes}
}

// KindOf returns the ErrorKind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
