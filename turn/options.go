// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package turn

import (
	"math/rand"
	"time"

	"github.com/destiny/nowlink"
)

const (
	DefaultTurnTimeout = 5 * time.Second
	DefaultWaitTimeout = 9 * time.Second
	DefaultDecay       = 500 * time.Millisecond
	DefaultMinTimeout  = time.Second
)

// Option configures an Arbiter
type Option func(o *options)

type options struct {
	log         *nowlink.Logger
	observer    func(Event)
	tieBreak    func() float64
	turnTimeout time.Duration
	waitTimeout time.Duration
	decay       time.Duration
	minTimeout  time.Duration
}

func defaultOptions() options {
	return options{
		log:         nowlink.DevNullLogger,
		tieBreak:    rand.Float64,
		turnTimeout: DefaultTurnTimeout,
		waitTimeout: DefaultWaitTimeout,
		decay:       DefaultDecay,
		minTimeout:  DefaultMinTimeout,
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

// WithObserver receives events synchronously from PlayRound
func WithObserver(fn func(Event)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithTieBreaker replaces the random tie-break source
func WithTieBreaker(fn func() float64) Option {
	return func(o *options) {
		if fn != nil {
			o.tieBreak = fn
		}
	}
}

// WithTurnTimeout sets the first-round limit for a local turn
func WithTurnTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.turnTimeout = d
		}
	}
}

// WithWaitTimeout sets the first-round limit for the peer's turn
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// WithDecay sets how much each later round shortens both limits
func WithDecay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.decay = d
		}
	}
}

// WithMinTimeout sets the floor the decay stops at
func WithMinTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.minTimeout = d
		}
	}
}
