// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lobby

import (
	"time"

	"github.com/destiny/nowlink"
)

// Option configures a Lobby
type Option func(o *options)

type options struct {
	log          *nowlink.Logger
	hold         time.Duration
	cooldown     time.Duration
	peerCooldown time.Duration
	staleAfter   time.Duration
	needed       int
	seed         int64
	now          func() time.Time
}

func defaultOptions() options {
	return options{
		log:          nowlink.DevNullLogger,
		hold:         DefaultHold,
		cooldown:     DefaultCooldown,
		peerCooldown: DefaultPeerCooldown,
		staleAfter:   DefaultStaleAfter,
		needed:       DefaultNeeded,
		seed:         time.Now().UnixNano(),
		now:          time.Now,
	}
}

func (o *options) apply(opts []Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithLogger sets the logger
func WithLogger(l *nowlink.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithHold sets how long an acquired opponent is held
func WithHold(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.hold = d
		}
	}
}

// WithCooldown sets the pause after an opponent is released
func WithCooldown(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.cooldown = d
		}
	}
}

// WithPeerCooldown sets how long a released opponent stays out of the
// candidate set. Zero disables the per-peer cooldown.
func WithPeerCooldown(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.peerCooldown = d
		}
	}
}

// WithStaleAfter sets the age after which a cached peer is no longer a
// candidate
func WithStaleAfter(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.staleAfter = d
		}
	}
}

// WithNeeded sets the number of peers required for Status().Ready()
func WithNeeded(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.needed = n
		}
	}
}

// WithSeed makes opponent selection reproducible
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithClock replaces time.Now for hold and cooldown bookkeeping
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
