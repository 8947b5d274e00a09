// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"time"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
	"github.com/destiny/nowlink/partition"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultRetryInterval  = 500 * time.Millisecond
	DefaultInboxSize      = 32
	DefaultRequestQueue   = 4
)

// Option configures a Mux and the sessions it creates
type Option func(o *options)

type options struct {
	log            *nowlink.Logger
	metrics        *nowlink.Metrics
	codec          *msg.Codec
	filter         *partition.Filter
	connectTimeout time.Duration
	retryInterval  time.Duration
	inbox          int
	requests       int
	buffer         int
}

// WithLogger sets the logger
func WithLogger(l *nowlink.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *nowlink.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithCodec sets the frame codec
func WithCodec(c *msg.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithFilter refuses sessions with peers outside the local partition group
func WithFilter(f *partition.Filter) Option {
	return func(o *options) {
		o.filter = f
	}
}

// WithConnectTimeout bounds Connect
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithRetryInterval sets how often an unanswered connect frame is resent
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryInterval = d
		}
	}
}

// WithInboxSize sets the per-session inbound message buffer
func WithInboxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.inbox = n
		}
	}
}

// WithRequestQueue sets how many unanswered inbound requests are kept
func WithRequestQueue(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.requests = n
		}
	}
}

// WithBuffer sets the mux's inbound frame buffer
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}
