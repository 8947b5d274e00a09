// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a Session
type State int32

const (
	Idle State = iota
	Connecting
	Active
	Closing
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}

var (
	// ErrSessionExists is returned when a live session already owns the
	// (peer, app) pair.
	ErrSessionExists = errors.New("session: pair already has a live session")

	// ErrInvalidState is returned by Connect outside Idle
	ErrInvalidState = errors.New("session: invalid state for operation")

	// ErrNotActive is returned by Send outside Active
	ErrNotActive = errors.New("session: not active")

	// ErrNotEligible is returned when the partition filter refuses a peer
	ErrNotEligible = errors.New("session: peer not eligible")

	// ErrPeerTerminated ends a session the peer closed or declined
	ErrPeerTerminated = errors.New("session: terminated by peer")
)
