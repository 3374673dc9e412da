// Package nnx structured error types for driver operations
package nnx

import (
	"errors"
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Invalid argument errors (input-contract violations)
	ErrTypeInvalidArg ErrorType = iota
	// Feature not available on the selected accelerator generation
	ErrTypeUnsupported
	// Builder steps called out of order
	ErrTypeState
	// Device access errors
	ErrTypeDevice
	// Not implemented errors
	ErrTypeNotImplemented
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Op      string      // Operation that failed
	Message string      // Human-readable message
	Err     error       // Underlying error if any
	Context interface{} // Additional context
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nnx %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("nnx %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeUnsupported:
		return "Unsupported"
	case ErrTypeState:
		return "State"
	case ErrTypeDevice:
		return "Device"
	case ErrTypeNotImplemented:
		return "NotImplemented"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &Error{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// NewInvalidArgErrorf is NewInvalidArgError with a format string.
func NewInvalidArgErrorf(op string, format string, args ...interface{}) error {
	return NewInvalidArgError(op, fmt.Sprintf(format, args...))
}

// NewUnsupportedError reports a feature the accelerator generation lacks
func NewUnsupportedError(op string, generation string) error {
	return &Error{
		Type:    ErrTypeUnsupported,
		Op:      op,
		Message: "not supported on " + generation,
		Context: generation,
	}
}

// NewStateError creates a call-order error
func NewStateError(op string, message string) error {
	return &Error{
		Type:    ErrTypeState,
		Op:      op,
		Message: message,
	}
}

// NewDeviceError creates a device access error
func NewDeviceError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeDevice,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewNotImplementedError creates a not implemented error
func NewNotImplementedError(op string, message string) error {
	return &Error{
		Type:    ErrTypeNotImplemented,
		Op:      op,
		Message: message,
	}
}

// Common pre-defined errors

var (
	// ErrNilDevice indicates a missing register interface
	ErrNilDevice = NewInvalidArgError("Device", "nil device")

	// ErrNilProfile indicates a missing accelerator profile
	ErrNilProfile = NewInvalidArgError("Profile", "nil profile")

	// ErrNoMMIO indicates memory-mapped register access is unavailable on this OS
	ErrNoMMIO = NewNotImplementedError("MMIO", "memory-mapped register access requires linux")
)

func isType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	return isType(err, ErrTypeInvalidArg)
}

// IsUnsupportedError checks if an error is an unsupported feature error
func IsUnsupportedError(err error) bool {
	return isType(err, ErrTypeUnsupported)
}

// IsStateError checks if an error is a call-order error
func IsStateError(err error) bool {
	return isType(err, ErrTypeState)
}

// IsDeviceError checks if an error is a device error
func IsDeviceError(err error) bool {
	return isType(err, ErrTypeDevice)
}

// IsNotImplementedError checks if an error is a not implemented error
func IsNotImplementedError(err error) bool {
	return isType(err, ErrTypeNotImplemented)
}
