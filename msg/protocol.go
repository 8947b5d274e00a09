// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package msg defines the on-air frame format shared by presence beacons,
// session control and application traffic.
//
// Every frame starts with a one byte kind tag. Session and application
// frames follow it with the application id, so several session types can
// share the medium without interfering. Application frames carry a second
// tag naming the application message type and a CBOR body.
//
//	presence:  [kind][nick len][nick]
//	connect:   [kind][app id]
//	accept:    [kind][app id]
//	terminate: [kind][app id]
//	app:       [kind][app id][app type][cbor body]
//
// When a network key is configured, a keyed blake2s tag of TagSize bytes
// is appended to every frame and checked on receipt.
package msg

import (
	"errors"
)

// Kind is the frame kind tag
type Kind byte

// Frame kinds
const (
	KindPresence  Kind = 0x01 // Presence beacon with nickname
	KindConnect   Kind = 0x02 // Session handshake request
	KindAccept    Kind = 0x03 // Session handshake acknowledgment
	KindTerminate Kind = 0x04 // Session termination notice
	KindApp       Kind = 0x05 // Application message for a session
)

func (k Kind) String() string {
	switch k {
	case KindPresence:
		return "PRESENCE"
	case KindConnect:
		return "CONNECT"
	case KindAccept:
		return "ACCEPT"
	case KindTerminate:
		return "TERMINATE"
	case KindApp:
		return "APP"
	default:
		return "UNKNOWN"
	}
}

// AppID identifies the application (game) a session belongs to
type AppID uint8

// AppType tags the application message carried by an app frame
type AppType byte

// Application message types
const (
	TypeData  AppType = 0x00 // Opaque application payload
	TypeStart AppType = 0x01 // Turn arbitration start
	TypeMove  AppType = 0x02 // One turn's move
	TypeEnd   AppType = 0x03 // Terminal claim
)

// Size limits
const (
	MaxNickLen   = 15  // Longest nickname carried by a presence frame
	MaxFrameSize = 250 // Largest payload the radio accepts
	TagSize      = 4   // Authentication tag length when a key is set
	MaxKeySize   = 32  // Longest network key
)

var (
	ErrShortFrame     = errors.New("msg: frame too short")
	ErrUnknownKind    = errors.New("msg: unknown frame kind")
	ErrUnknownAppType = errors.New("msg: unknown application message type")
	ErrBadTag         = errors.New("msg: authentication tag mismatch")
	ErrNickTooLong    = errors.New("msg: nickname too long")
	ErrFrameTooLarge  = errors.New("msg: frame too large")
)
