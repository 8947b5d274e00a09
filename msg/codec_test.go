// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msg

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceWireLayout(t *testing.T) {
	var c Codec
	data, err := c.Encode(&Presence{Nick: "NeonBlade42"})
	require.NoError(t, err)

	want := append([]byte{byte(KindPresence), 11}, []byte("NeonBlade42")...)
	assert.Equal(t, want, data)

	p, err := c.Decode(data)
	require.NoError(t, err)
	presence, ok := p.(*Presence)
	require.True(t, ok, "expected *Presence, got %T", p)
	assert.Equal(t, "NeonBlade42", presence.Nick)
}

func TestPresenceNickBound(t *testing.T) {
	var c Codec
	_, err := c.Encode(&Presence{Nick: "ThisNickIsWayTooLong"})
	assert.True(t, errors.Is(err, ErrNickTooLong))

	// declared length beyond the payload
	_, err = c.Decode([]byte{byte(KindPresence), 9, 'a', 'b'})
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestSessionControlFrames(t *testing.T) {
	var c Codec
	for _, p := range []Packet{&Connect{App: 1}, &Accept{App: 2}, &Terminate{App: 3}} {
		data, err := c.Encode(p)
		require.NoError(t, err)
		require.Len(t, data, 2)
		assert.Equal(t, byte(p.Kind()), data[0])

		got, err := c.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, p, got)

		app, ok := AppIDOf(got)
		assert.True(t, ok)
		assert.Equal(t, AppID(data[1]), app)
	}
}

func TestAppMessages(t *testing.T) {
	var c Codec
	cases := []AppMessage{
		&StartMsg{Role: "x", Move: 4, TieBreak: 0.125, Round: 2},
		&StartMsg{Role: "o", Move: NoMove, TieBreak: 0.9, Round: 1},
		&MoveMsg{Move: NoMove},
		&MoveMsg{Move: 8},
		&EndMsg{ClaimsWin: true, Move: 6},
		&DataMsg{Payload: []byte("rock")},
	}
	for _, m := range cases {
		data, err := c.Encode(&App{App: 7, Msg: m})
		require.NoError(t, err)
		assert.Equal(t, byte(KindApp), data[0])
		assert.Equal(t, byte(7), data[1])
		assert.Equal(t, byte(m.Type()), data[2])

		p, err := c.Decode(data)
		require.NoError(t, err)
		app, ok := p.(*App)
		require.True(t, ok)
		assert.Equal(t, AppID(7), app.App)
		assert.Equal(t, m, app.Msg)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var c Codec
	_, err := c.Decode(nil)
	assert.ErrorIs(t, err, ErrShortFrame)

	_, err = c.Decode([]byte{0x7f, 1, 2})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = c.Decode([]byte{byte(KindApp), 1, 0x42, 0xa0})
	assert.ErrorIs(t, err, ErrUnknownAppType)

	_, err = c.Decode([]byte{byte(KindConnect)})
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestAuthenticatedCodec(t *testing.T) {
	key := []byte("badge-net-2025")
	c, err := NewCodec(key)
	require.NoError(t, err)
	require.True(t, c.Authenticated())

	data, err := c.Encode(&Presence{Nick: "GhostNet73"})
	require.NoError(t, err)
	assert.Len(t, data, 2+len("GhostNet73")+TagSize)

	_, err = c.Decode(data)
	require.NoError(t, err)

	// flip a payload bit
	tampered := bytes.Clone(data)
	tampered[3] ^= 0x01
	_, err = c.Decode(tampered)
	assert.ErrorIs(t, err, ErrBadTag)

	// a device with another key cannot read the frame
	other, err := NewCodec([]byte("another-network"))
	require.NoError(t, err)
	_, err = other.Decode(data)
	assert.ErrorIs(t, err, ErrBadTag)

	// truncated below the tag size
	_, err = c.Decode(data[:TagSize])
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestNewCodecKeyLength(t *testing.T) {
	_, err := NewCodec(make([]byte, MaxKeySize+1))
	assert.Error(t, err)

	c, err := NewCodec(nil)
	require.NoError(t, err)
	assert.False(t, c.Authenticated())

	var nilCodec *Codec
	assert.False(t, nilCodec.Authenticated())
}

func TestMoveString(t *testing.T) {
	assert.Equal(t, "none", NoMove.String())
	assert.Equal(t, "5", Move(5).String())
	assert.True(t, NoMove.IsNone())
}
