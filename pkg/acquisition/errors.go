// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package acquisition

import (
	"errors"
	"fmt"
)

var (
	// ErrDisconnected indicates the byte source failed and the loop ended.
	ErrDisconnected = errors.New("byte source disconnected")
	// ErrSourceClosed is reported by sources read after they have closed.
	ErrSourceClosed = errors.New("byte source closed")
	// ErrAlreadyStarted is returned when a loop is started twice.
	ErrAlreadyStarted = errors.New("acquisition loop already started")
)

// DisconnectError wraps the transport failure that terminated the loop.
type DisconnectError struct {
	Cause error
}

// Error implements error.
func (e *DisconnectError) Error() string {
	if e.Cause == nil {
		return ErrDisconnected.Error()
	}
	return fmt.Sprintf("%v: %v", ErrDisconnected, e.Cause)
}

// Unwrap exposes the transport error.
func (e *DisconnectError) Unwrap() error {
	return e.Cause
}

// Is matches ErrDisconnected.
func (e *DisconnectError) Is(target error) bool {
	return target == ErrDisconnected
}
