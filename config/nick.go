// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"math/rand"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

// MinNickLen is the shortest nickname kept as configured; shorter ones
// are replaced by a generated one.
const MinNickLen = 5

var (
	nickPrefixes = []string{
		"Neuro", "Silent", "Neon", "Cyber", "Zero", "Alpha", "Evo", "Cryo",
		"Neo", "Ghost", "Syn", "Mecha", "Hyper", "Rogue", "Meta", "Pulse",
		"Nano", "Dark", "Shadow", "Quantum", "Techno", "Void",
	}
	nickMiddles = []string{
		"Blade", "Net", "Cipher", "Phantom", "Hack", "Code", "R01", "Ghost", "Stream",
		"Runner", "Hunter", "Rogue", "Echo", "Core", "Pulse", "Byte", "Ctrl", "_X",
		"Grid", "xXx", "Ninja", "Bot", "Void", "Wave",
	}
	nickSuffixes = []string{
		"404", "001", "73", "42", "69", "SYS", "99", "808", "1337", "101", "XX",
		"D4RK", "665", "007", "XOR", "1999", "Z3R0", "010", "X", "77", "X1", "88",
	}
)

// GenNick derives a stable nickname from a device address
func GenNick(addr nowlink.Addr) string {
	rng := rand.New(rand.NewSource(int64(addr.Uint64())))
	nick := nickPrefixes[rng.Intn(len(nickPrefixes))] +
		nickMiddles[rng.Intn(len(nickMiddles))] +
		nickSuffixes[rng.Intn(len(nickSuffixes))]
	return truncate(nick)
}

// stripMarks folds accented letters to their base letter
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func allowedNickRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	}
	return strings.ContainsRune("<>[]-!*#_", r)
}

// SanitizeNick folds accents, turns spaces into underscores, drops every
// other character outside [0-9a-zA-Z<>[]-!*#_] and truncates the result
// to fit a presence frame.
func SanitizeNick(nick string) string {
	if folded, _, err := transform.String(stripMarks, nick); err == nil {
		nick = folded
	}
	nick = strings.ReplaceAll(nick, " ", "_")
	nick = strings.Map(func(r rune) rune {
		if allowedNickRune(r) {
			return r
		}
		return -1
	}, nick)
	return truncate(nick)
}

// ResolveNick returns the sanitized nickname, or a generated one when
// the configured nickname is too short.
func ResolveNick(nick string, addr nowlink.Addr) string {
	clean := SanitizeNick(nick)
	if len(clean) < MinNickLen {
		return GenNick(addr)
	}
	return clean
}

func truncate(nick string) string {
	if len(nick) > msg.MaxNickLen {
		return nick[:msg.MaxNickLen]
	}
	return nick
}
