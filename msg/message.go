// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msg

import (
	"fmt"
)

// Packet is a decoded frame. The set of implementations is closed:
// *Presence, *Connect, *Accept, *Terminate and *App.
type Packet interface {
	Kind() Kind
	isPacket()
}

// Presence announces a device and its nickname
type Presence struct {
	Nick string
}

// Connect asks the receiver to open a session for App
type Connect struct {
	App AppID
}

// Accept acknowledges a Connect for App
type Accept struct {
	App AppID
}

// Terminate tells the receiver the session for App is over
type Terminate struct {
	App AppID
}

// App carries one application message for the session identified by App
type App struct {
	App AppID
	Msg AppMessage
}

func (*Presence) Kind() Kind  { return KindPresence }
func (*Connect) Kind() Kind   { return KindConnect }
func (*Accept) Kind() Kind    { return KindAccept }
func (*Terminate) Kind() Kind { return KindTerminate }
func (*App) Kind() Kind       { return KindApp }

func (*Presence) isPacket()  {}
func (*Connect) isPacket()   {}
func (*Accept) isPacket()    {}
func (*Terminate) isPacket() {}
func (*App) isPacket()       {}

// AppIDOf returns the application id of a session-scoped packet and false
// for presence frames.
func AppIDOf(p Packet) (AppID, bool) {
	switch m := p.(type) {
	case *Connect:
		return m.App, true
	case *Accept:
		return m.App, true
	case *Terminate:
		return m.App, true
	case *App:
		return m.App, true
	default:
		return 0, false
	}
}

// Move is one cell/choice played in a turn. NoMove marks an explicit
// "did not act in time".
type Move int16

// NoMove is the explicit empty move
const NoMove Move = -1

// IsNone reports whether m is NoMove
func (m Move) IsNone() bool {
	return m == NoMove
}

func (m Move) String() string {
	if m.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%d", int16(m))
}

// AppMessage is an application message. The set of implementations is
// closed: *StartMsg, *MoveMsg, *EndMsg and *DataMsg.
type AppMessage interface {
	Type() AppType
	isAppMessage()
}

// StartMsg opens a round: the sender's role, its first move (or NoMove),
// its random tie-break value and the round number.
type StartMsg struct {
	Role     string  `cbor:"1,keyasint"`
	Move     Move    `cbor:"2,keyasint"`
	TieBreak float64 `cbor:"3,keyasint"`
	Round    int     `cbor:"4,keyasint"`
}

// MoveMsg carries one turn's move (or NoMove)
type MoveMsg struct {
	Move Move `cbor:"1,keyasint"`
}

// EndMsg claims the round is over. ClaimsWin false means a draw claim.
type EndMsg struct {
	ClaimsWin bool `cbor:"1,keyasint"`
	Move      Move `cbor:"2,keyasint"`
}

// DataMsg is an opaque application payload
type DataMsg struct {
	Payload []byte `cbor:"1,keyasint"`
}

func (*StartMsg) Type() AppType { return TypeStart }
func (*MoveMsg) Type() AppType  { return TypeMove }
func (*EndMsg) Type() AppType   { return TypeEnd }
func (*DataMsg) Type() AppType  { return TypeData }

func (*StartMsg) isAppMessage() {}
func (*MoveMsg) isAppMessage()  {}
func (*EndMsg) isAppMessage()   {}
func (*DataMsg) isAppMessage()  {}

func (m *StartMsg) String() string {
	return fmt.Sprintf("Start{role=%s move=%s tie=%.6f round=%d}", m.Role, m.Move, m.TieBreak, m.Round)
}

func (m *MoveMsg) String() string {
	return fmt.Sprintf("Move{%s}", m.Move)
}

func (m *EndMsg) String() string {
	return fmt.Sprintf("End{win=%t move=%s}", m.ClaimsWin, m.Move)
}

func (m *DataMsg) String() string {
	return fmt.Sprintf("Data{%d bytes}", len(m.Payload))
}
