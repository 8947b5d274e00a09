// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nowlink

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddrSize is the width of a device hardware address in bytes
const AddrSize = 6

// Addr is a fixed-width device hardware address
type Addr [AddrSize]byte

// Broadcast is the all-ones address every device receives
var Broadcast = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// NullAddr is the zero address, used where no peer is known
var NullAddr Addr

// ParseAddr parses "aa:bb:cc:dd:ee:ff", "aa-bb-cc-dd-ee-ff" or a bare
// 12 digit hex string.
func ParseAddr(s string) (Addr, error) {
	var a Addr
	clean := strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(s))
	if len(clean) != 2*AddrSize {
		return a, fmt.Errorf("invalid address %q: want %d hex digits", s, 2*AddrSize)
	}
	if _, err := hex.Decode(a[:], []byte(clean)); err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return a, nil
}

// MustParseAddr is like ParseAddr but panics on error
func MustParseAddr(s string) Addr {
	a, err := ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddrFromUint64 builds an address from the low 48 bits of v
func AddrFromUint64(v uint64) Addr {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	var a Addr
	copy(a[:], buf[2:])
	return a
}

// Uint64 returns the address as a big-endian 48-bit integer
func (a Addr) Uint64() uint64 {
	var buf [8]byte
	copy(buf[2:], a[:])
	return binary.BigEndian.Uint64(buf[:])
}

// Prefix returns the manufacturer prefix (top three bytes)
func (a Addr) Prefix() [3]byte {
	return [3]byte{a[0], a[1], a[2]}
}

// IsBroadcast reports whether a is the broadcast address
func (a Addr) IsBroadcast() bool {
	return a == Broadcast
}

// IsZero reports whether a is the null address
func (a Addr) IsZero() bool {
	return a == NullAddr
}

func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// MarshalText implements encoding.TextMarshaler
func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Addr) UnmarshalText(text []byte) error {
	parsed, err := ParseAddr(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
