// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package turn

import (
	"errors"
	"fmt"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

// EventKind identifies an arbitration event
type EventKind int

const (
	EventTurnStarted EventKind = iota + 1
	EventPeerMoved
	EventInitiativeLost
	EventForfeit
)

func (k EventKind) String() string {
	switch k {
	case EventTurnStarted:
		return "turn-started"
	case EventPeerMoved:
		return "peer-moved"
	case EventInitiativeLost:
		return "initiative-lost"
	case EventForfeit:
		return "forfeit"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is reported to the observer as a round progresses
type Event struct {
	Kind  EventKind
	Move  msg.Move
	Round int
}

// Result is the settled outcome of a round
type Result struct {
	Outcome Outcome
	Round   int
}

// DivergenceError reports a final claim the local replica disagrees with
type DivergenceError struct {
	Round     int
	ClaimsWin bool    // the peer's claim
	Local     Outcome // what the local replica computed
}

func (e *DivergenceError) Error() string {
	claim := "draw"
	if e.ClaimsWin {
		claim = "win"
	}
	return fmt.Sprintf("%s: round %d: peer claims %s, local replica has %s",
		nowlink.ErrDivergence, e.Round, claim, e.Local)
}

// Unwrap lets errors.Is(err, nowlink.ErrDivergence) match
func (e *DivergenceError) Unwrap() error {
	return nowlink.ErrDivergence
}

// IsDivergence reports whether err is a divergence
func IsDivergence(err error) bool {
	var de *DivergenceError
	return errors.As(err, &de)
}
