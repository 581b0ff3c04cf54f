// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for busrelay.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the relay.
var (
	ErrTransportClosed  = errors.New("transport is closed")
	ErrNotConnected     = errors.New("transport is not connected")
	ErrFieldNotFound    = errors.New("payload field not found")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotSupported     = errors.New("operation not supported")
	ErrAlreadyStarted   = errors.New("already started")
	ErrOperationTimeout = errors.New("operation timeout")
)

// ErrorCode classifies relay failures by how they propagate.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	// ErrCodeTransport: socket or bus closed/failed; the owning relay tears down.
	ErrCodeTransport
	// ErrCodeDecode: a single message could not be decoded and is dropped.
	ErrCodeDecode
	// ErrCodePoller: the readiness primitive failed; the loop logs and continues.
	ErrCodePoller
	// ErrCodeStartup: initial connect failed; returned to the caller.
	ErrCodeStartup
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeTransport:
		return "transport"
	case ErrCodeDecode:
		return "decode"
	case ErrCodePoller:
		return "poller"
	case ErrCodeStartup:
		return "startup"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
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

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap creates a structured error around cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Err = cause
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

// CodeOf returns the ErrorCode carried by err, or ErrCodeInternal when
// err is not an *Error. A nil error reports ErrCodeOK.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
