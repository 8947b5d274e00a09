// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package partition decides whether two devices may interact at all.
//
// A large population of broadcasting devices is split into Spread groups;
// only devices in the same group see each other as eligible. Group
// membership depends only on each device's own address, so both sides
// reach the same verdict independently, with no handshake.
package partition

import (
	"fmt"

	"github.com/destiny/nowlink"
)

// DefaultPrefix is the manufacturer prefix of the expected hardware family
var DefaultPrefix = [3]byte{0x18, 0xfe, 0x34}

// DefaultSpread is the spread factor used when none is configured
const DefaultSpread = 180

const (
	scramblePrime = 31
	mask48        = 1<<48 - 1
)

// Scramble spreads sequential addresses over the 48-bit space so group
// membership does not follow manufacturing order.
func Scramble(x uint64) uint64 {
	return (x * scramblePrime) & mask48
}

// Group returns the partition group of address x for spread factor s.
// It panics if s is zero.
func Group(x, s uint64) uint64 {
	if s == 0 {
		panic("partition: spread factor must be >= 1")
	}
	x &= mask48
	return (Scramble(x)%s + x%s) % s
}

// Eligible reports whether a and b may interact: both carry prefix and
// both fall in the same group for spread s. It panics if s is zero.
func Eligible(a, b nowlink.Addr, s uint64, prefix [3]byte) bool {
	if s == 0 {
		panic("partition: spread factor must be >= 1")
	}
	if a.Prefix() != prefix || b.Prefix() != prefix {
		return false
	}
	return Group(a.Uint64(), s) == Group(b.Uint64(), s)
}

// Filter is a validated partition configuration
type Filter struct {
	Prefix [3]byte
	Spread uint64
}

// NewFilter validates s and returns a Filter. A zero spread factor is a
// configuration error.
func NewFilter(prefix [3]byte, s uint64) (*Filter, error) {
	if s == 0 {
		return nil, nowlink.NewConfigError("partition.spread_factor", "must be >= 1, got %d", s)
	}
	return &Filter{Prefix: prefix, Spread: s}, nil
}

// Eligible applies the filter. A nil filter admits every pair.
func (f *Filter) Eligible(a, b nowlink.Addr) bool {
	if f == nil {
		return true
	}
	return Eligible(a, b, f.Spread, f.Prefix)
}

// Group returns the group of a under the filter
func (f *Filter) Group(a nowlink.Addr) uint64 {
	return Group(a.Uint64(), f.Spread)
}

func (f *Filter) String() string {
	if f == nil {
		return "partition{off}"
	}
	return fmt.Sprintf("partition{prefix=%02x:%02x:%02x spread=%d}", f.Prefix[0], f.Prefix[1], f.Prefix[2], f.Spread)
}
