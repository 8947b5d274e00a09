// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msg

import (
	"bytes"
	"crypto/subtle"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2s"
)

// Codec encodes and decodes frames. The zero value (or a nil *Codec)
// uses no authentication tag.
type Codec struct {
	key []byte
}

// NewCodec creates a codec. A non-empty key enables frame authentication
// with a truncated keyed blake2s tag.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) > MaxKeySize {
		return nil, fmt.Errorf("msg: network key is %d bytes, max %d", len(key), MaxKeySize)
	}
	c := &Codec{}
	if len(key) > 0 {
		c.key = append([]byte(nil), key...)
	}
	return c, nil
}

// Authenticated reports whether frames carry a tag
func (c *Codec) Authenticated() bool {
	return c != nil && len(c.key) > 0
}

// Encode serializes p to wire format
func (c *Codec) Encode(p Packet) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 32))
	buf.WriteByte(byte(p.Kind()))

	switch m := p.(type) {
	case *Presence:
		if len(m.Nick) > MaxNickLen {
			return nil, fmt.Errorf("%w: %d bytes", ErrNickTooLong, len(m.Nick))
		}
		buf.WriteByte(byte(len(m.Nick)))
		buf.WriteString(m.Nick)
	case *Connect:
		buf.WriteByte(byte(m.App))
	case *Accept:
		buf.WriteByte(byte(m.App))
	case *Terminate:
		buf.WriteByte(byte(m.App))
	case *App:
		if m.Msg == nil {
			return nil, fmt.Errorf("msg: app frame without message")
		}
		buf.WriteByte(byte(m.App))
		buf.WriteByte(byte(m.Msg.Type()))
		body, err := cbor.Marshal(m.Msg)
		if err != nil {
			return nil, fmt.Errorf("msg: failed to encode %T: %w", m.Msg, err)
		}
		buf.Write(body)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, p)
	}

	data := buf.Bytes()
	if c.Authenticated() {
		data = append(data, c.tag(data)...)
	}
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	return data, nil
}

// Decode parses a frame received from the medium
func (c *Codec) Decode(data []byte) (Packet, error) {
	if c.Authenticated() {
		if len(data) < TagSize+1 {
			return nil, ErrShortFrame
		}
		body, tag := data[:len(data)-TagSize], data[len(data)-TagSize:]
		if subtle.ConstantTimeCompare(tag, c.tag(body)) != 1 {
			return nil, ErrBadTag
		}
		data = body
	}
	if len(data) < 1 {
		return nil, ErrShortFrame
	}

	kind := Kind(data[0])
	body := data[1:]
	switch kind {
	case KindPresence:
		if len(body) < 1 || len(body) < 1+int(body[0]) {
			return nil, ErrShortFrame
		}
		n := int(body[0])
		if n > MaxNickLen {
			return nil, ErrNickTooLong
		}
		return &Presence{Nick: string(body[1 : 1+n])}, nil
	case KindConnect, KindAccept, KindTerminate:
		if len(body) < 1 {
			return nil, ErrShortFrame
		}
		app := AppID(body[0])
		switch kind {
		case KindConnect:
			return &Connect{App: app}, nil
		case KindAccept:
			return &Accept{App: app}, nil
		default:
			return &Terminate{App: app}, nil
		}
	case KindApp:
		if len(body) < 2 {
			return nil, ErrShortFrame
		}
		m, err := decodeAppMessage(AppType(body[1]), body[2:])
		if err != nil {
			return nil, err
		}
		return &App{App: AppID(body[0]), Msg: m}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownKind, byte(kind))
	}
}

func decodeAppMessage(t AppType, body []byte) (AppMessage, error) {
	var m AppMessage
	switch t {
	case TypeStart:
		m = &StartMsg{}
	case TypeMove:
		m = &MoveMsg{}
	case TypeEnd:
		m = &EndMsg{}
	case TypeData:
		m = &DataMsg{}
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownAppType, byte(t))
	}
	if err := cbor.Unmarshal(body, m); err != nil {
		return nil, fmt.Errorf("msg: failed to decode app type %d: %w", t, err)
	}
	return m, nil
}

// tag computes the truncated keyed blake2s MAC of data
func (c *Codec) tag(data []byte) []byte {
	h, err := blake2s.New256(c.key)
	if err != nil {
		// key length is checked in NewCodec
		panic(err)
	}
	h.Write(data)
	return h.Sum(nil)[:TagSize]
}
