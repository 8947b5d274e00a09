// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package turn establishes who moves first between two peers and drives
// timeout-bounded turns over a session. Each peer keeps its own replica of
// the shared state and only moves are exchanged; the final claim of the
// peer that ends the round is checked against the local replica.
package turn

import (
	"context"
	"fmt"

	"github.com/destiny/nowlink/msg"
)

// Outcome is the state of a round as seen by one replica
type Outcome int

const (
	None Outcome = iota
	LocalWin
	PeerWin
	Draw
)

func (o Outcome) String() string {
	switch o {
	case None:
		return "none"
	case LocalWin:
		return "local-win"
	case PeerWin:
		return "peer-win"
	case Draw:
		return "draw"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Terminal reports whether the round is over
func (o Outcome) Terminal() bool {
	return o != None
}

// Replica is the application's copy of the shared state
type Replica interface {
	// Role names the local side, carried in the first move
	Role() string

	// Reset clears the state for a new round. peerRole is empty until the
	// peer's role is known.
	Reset(peerRole string)

	// ApplyLocal applies a local move; msg.NoMove is a forfeited turn and
	// must be accepted. An error rejects the move and keeps the turn.
	ApplyLocal(m msg.Move) error

	// ApplyRemote applies a move received from the peer
	ApplyRemote(m msg.Move)

	Outcome() Outcome
}

// Conn is the message stream the arbiter runs over. *session.Session
// implements it.
type Conn interface {
	Send(m msg.AppMessage) error
	Recv(ctx context.Context) (msg.AppMessage, error)
	Terminate(sendOut bool) error
	Abort(reason error)
}
