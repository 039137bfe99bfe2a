// Package parport provides byte-wide access to a parallel port DATA register.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package parport

import "errors"

// Common errors
var (
	ErrClosed      = errors.New("parport: device closed")
	ErrNotClaimed  = errors.New("parport: device not claimed")
	ErrUnsupported = errors.New("parport: not supported on this platform")
)

// Register is a single shared byte-wide output register.
//
// A Read followed by a Write is not atomic; callers sharing one Register
// must serialize their read-modify-write cycles.
type Register interface {
	Read() (byte, error)
	Write(b byte) error
}
