// Unified error handling for the Geckodrive parallel-port driver
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Port lifecycle errors
	ErrDeviceOpen   ErrorCode = "DEVICE_OPEN"
	ErrDeviceClaim  ErrorCode = "DEVICE_CLAIM"
	ErrRegisterInit ErrorCode = "REGISTER_INIT"

	// Runtime register access
	ErrHardwareAccess ErrorCode = "HARDWARE_ACCESS"

	// Caller errors
	ErrUnknownAxis     ErrorCode = "UNKNOWN_AXIS"
	ErrInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// Jog program errors
	ErrProgram ErrorCode = "PROGRAM"
)

// DriveError is the unified error type for the driver
type DriveError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Device is the device path (if applicable)
	Device string

	// Axis is the logical axis name (if applicable)
	Axis string

	// Op is the axis or register operation that failed
	Op string

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *DriveError) Error() string {
	ctx := e.Device
	if e.Axis != "" {
		ctx = "axis " + e.Axis
	}
	if e.Op != "" {
		if ctx != "" {
			ctx += " "
		}
		ctx += e.Op
	}

	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if ctx == "" {
		return fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Code, ctx, msg)
}

// Unwrap returns the underlying error
func (e *DriveError) Unwrap() error {
	return e.Err
}

// SetDevice sets the device path
func (e *DriveError) SetDevice(device string) *DriveError {
	e.Device = device
	return e
}

// SetAxis sets the axis name
func (e *DriveError) SetAxis(axis string) *DriveError {
	e.Axis = axis
	return e
}

// SetOp sets the failing operation
func (e *DriveError) SetOp(op string) *DriveError {
	e.Op = op
	return e
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *DriveError {
	return &DriveError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// New creates a new DriveError
func New(code ErrorCode, message string) *DriveError {
	return &DriveError{
		Code:    code,
		Message: message,
	}
}

// Port lifecycle errors

// DeviceOpenError creates an error for a device node that could not be opened
func DeviceOpenError(device string, err error) *DriveError {
	return Wrap(err, ErrDeviceOpen, "open failed").SetDevice(device)
}

// DeviceClaimError creates an error for a failed exclusive claim
func DeviceClaimError(device string, err error) *DriveError {
	return Wrap(err, ErrDeviceClaim, "claim failed").SetDevice(device)
}

// RegisterInitError creates an error for a failed initial register write
func RegisterInitError(device string, err error) *DriveError {
	return Wrap(err, ErrRegisterInit, "initial register write failed").SetDevice(device)
}

// HardwareAccessError creates an error for a failed register read or write
func HardwareAccessError(axis, op string, err error) *DriveError {
	return Wrap(err, ErrHardwareAccess, "register access failed").SetAxis(axis).SetOp(op)
}

// Caller errors

// UnknownAxisError creates an error for an axis name outside the supported set
func UnknownAxisError(name string) *DriveError {
	return New(ErrUnknownAxis, fmt.Sprintf("unknown axis %q", name))
}

// InvalidArgumentError creates an error for a rejected argument
func InvalidArgumentError(name string, reason string) *DriveError {
	return New(ErrInvalidArgument, fmt.Sprintf("invalid %s: %s", name, reason))
}

// ProgramError creates an error for a malformed jog program
func ProgramError(source string, reason string) *DriveError {
	return New(ErrProgram, fmt.Sprintf("%s: %s", source, reason))
}

// Is checks if any error in err's chain carries the given code
func Is(err error, code ErrorCode) bool {
	var de *DriveError
	for err != nil {
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the code of the outermost DriveError in err's chain
func CodeOf(err error) (ErrorCode, bool) {
	var de *DriveError
	if stderrors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// IsPortSetup checks if error came from the open/claim/initialize sequence
func IsPortSetup(err error) bool {
	return Is(err, ErrDeviceOpen) ||
		Is(err, ErrDeviceClaim) ||
		Is(err, ErrRegisterInit)
}
