// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error classification for hioload-httpd.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the server.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotSupported      = errors.New("operation not supported")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrNotFound          = errors.New("resource not found")
	ErrForbidden         = errors.New("permission denied")
	ErrIsDirectory       = errors.New("resource is a directory")
	ErrQueueFull         = errors.New("task queue is full")
	ErrPoolClosed        = errors.New("pool is closed")
	ErrServerBusy        = errors.New("internal server busy")
	ErrRequestTooLarge   = errors.New("request too large")
	ErrResponseTooLarge  = errors.New("response does not fit write buffer")
	ErrPeerClosed        = errors.New("peer closed connection")
	ErrWouldBlock        = errors.New("operation would block")
	ErrConnectionClosed  = errors.New("connection is closed")
	ErrReactorClosed     = errors.New("reactor is closed")
	ErrBadRequest        = errors.New("malformed request")
	ErrMethodUnsupported = errors.New("unsupported method")
	ErrVersionMismatch   = errors.New("unsupported protocol version")
)

// ErrorCode classifies failures by how the server reacts to them.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	// ErrCodeProtocol: malformed request; answered with 400.
	ErrCodeProtocol
	// ErrCodeNotFound: answered with 404.
	ErrCodeNotFound
	// ErrCodeForbidden: answered with 403.
	ErrCodeForbidden
	// ErrCodeIsDirectory: request error; answered with 400.
	ErrCodeIsDirectory
	// ErrCodeInternal: answered with 500.
	ErrCodeInternal
	// ErrCodeCapacity: connection ceiling or queue full.
	ErrCodeCapacity
	// ErrCodeTransient: would-block, re-arm and retry later.
	ErrCodeTransient
	// ErrCodeFatalIO: peer reset or unexpected socket error; local teardown.
	ErrCodeFatalIO
	// ErrCodeFacility: readiness facility failure; process-fatal.
	ErrCodeFacility
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeProtocol:
		return "protocol"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeForbidden:
		return "forbidden"
	case ErrCodeIsDirectory:
		return "is_directory"
	case ErrCodeInternal:
		return "internal"
	case ErrCodeCapacity:
		return "capacity"
	case ErrCodeTransient:
		return "transient"
	case ErrCodeFatalIO:
		return "fatal_io"
	case ErrCodeFacility:
		return "facility"
	default:
		return "unknown"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError attaches a code and message to an existing error.
func WrapError(code ErrorCode, message string, err error) *Error {
	e := NewError(code, message)
	e.Err = err
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf classifies err. Structured errors report their own code; known
// sentinels map to the matching class; anything else is internal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrMethodUnsupported),
		errors.Is(err, ErrVersionMismatch),
		errors.Is(err, ErrRequestTooLarge):
		return ErrCodeProtocol
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrForbidden):
		return ErrCodeForbidden
	case errors.Is(err, ErrIsDirectory):
		return ErrCodeIsDirectory
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrServerBusy):
		return ErrCodeCapacity
	case errors.Is(err, ErrWouldBlock):
		return ErrCodeTransient
	case errors.Is(err, ErrPeerClosed), errors.Is(err, ErrConnectionClosed):
		return ErrCodeFatalIO
	default:
		return ErrCodeInternal
	}
}
