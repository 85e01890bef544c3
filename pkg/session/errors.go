// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"errors"
	"fmt"
)

// Session failures
var (
	ErrNotConnected     = errors.New("not connected")
	ErrNoResponse       = errors.New("no response")
	ErrUnexpectedBlock  = errors.New("response for unexpected register start")
	ErrEmptyBlock       = errors.New("response carried no register data")
	ErrNoCache          = errors.New("no cached config block")
	ErrStaleCache       = errors.New("cached config block is stale")
	ErrWriteUnconfirmed = errors.New("write not confirmed")
	ErrWriteMismatch    = errors.New("device returned a different value")
)

// TransportError wraps an I/O failure on the link. The session closes the
// transport before returning one.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying I/O error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err came from the link
func IsTransportError(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}

// WriteError describes a register write that reached the wire but failed.
// The cached block has already been reverted.
type WriteError struct {
	Register string
	Offset   int
	Want     uint16
	Got      uint16
	Err      error
}

// Error implements the error interface
func (e *WriteError) Error() string {
	if errors.Is(e.Err, ErrWriteMismatch) {
		return fmt.Sprintf("write %s (offset %d): %v: want 0x%04X, got 0x%04X", e.Register, e.Offset, e.Err, e.Want, e.Got)
	}
	return fmt.Sprintf("write %s (offset %d): %v", e.Register, e.Offset, e.Err)
}

// Unwrap returns the cause
func (e *WriteError) Unwrap() error {
	return e.Err
}
