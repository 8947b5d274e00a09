// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nowlink

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid static configuration. It is fatal at
	// startup and never produced at runtime.
	ErrConfiguration = errors.New("nowlink: invalid configuration")

	// ErrTransport marks a transient send/receive failure. The protocol
	// tolerates frame loss, so callers inside the core log and drop these.
	ErrTransport = errors.New("nowlink: transport failure")

	// ErrTimeout is returned when a connect or turn wait exceeds its bound.
	ErrTimeout = errors.New("nowlink: timeout")

	// ErrDivergence is returned when a peer's claimed outcome disagrees with
	// the local replica.
	ErrDivergence = errors.New("nowlink: protocol divergence")

	// ErrClosed is returned by operations on a closed transport or hub.
	ErrClosed = errors.New("nowlink: closed")
)

// ConfigError describes one invalid configuration field
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrConfiguration) match
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// NewConfigError creates a ConfigError for field
func NewConfigError(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransportError wraps a low level failure so that it matches ErrTransport
func TransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
