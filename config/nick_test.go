// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

func TestSanitizeNick(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"GhostNet73", "GhostNet73"},
		{"Zoë Danger", "Zoe_Danger"},
		{"Crème brûlée", "Creme_brulee"},
		{"<[x]>-!*#", "<[x]>-!*#"},
		{"semi;colon/slash", "semicolonslash"},
		{"日本語abc", "abc"},
		{"abcdefghijklmnopqrstuvwxyz", "abcdefghijklmno"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeNick(tc.in), tc.in)
	}
}

func TestGenNickDeterministic(t *testing.T) {
	a := nowlink.MustParseAddr("18:fe:34:00:00:01")
	b := nowlink.MustParseAddr("18:fe:34:00:00:02")

	assert.Equal(t, GenNick(a), GenNick(a))
	assert.NotEmpty(t, GenNick(b))

	for i := uint64(0); i < 500; i++ {
		nick := GenNick(nowlink.AddrFromUint64(0x18fe34000000 + i))
		assert.LessOrEqual(t, len(nick), msg.MaxNickLen)
		assert.Equal(t, nick, SanitizeNick(nick))
	}
}

func TestResolveNick(t *testing.T) {
	a := nowlink.MustParseAddr("18:fe:34:00:00:01")

	assert.Equal(t, "RetroWolf", ResolveNick("RetroWolf", a))
	assert.Equal(t, GenNick(a), ResolveNick("", a))
	assert.Equal(t, GenNick(a), ResolveNick("abc", a))
	// too short once the unsupported characters are gone
	assert.Equal(t, GenNick(a), ResolveNick("a;b;c;d", a))
}
