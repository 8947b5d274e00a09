// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"time"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
	"github.com/destiny/nowlink/partition"
)

// Option configures a Beacon or a Listener
type Option func(o *options)

type options struct {
	log      *nowlink.Logger
	metrics  *nowlink.Metrics
	codec    *msg.Codec
	filter   *partition.Filter
	interval time.Duration
	buffer   int
}

func defaultOptions() options {
	return options{
		log:      nowlink.DevNullLogger,
		interval: DefaultInterval,
		buffer:   nowlink.DefaultSubscriberBuffer,
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

// WithMetrics sets the metrics sink
func WithMetrics(m *nowlink.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithCodec sets the frame codec, typically one carrying a network key
func WithCodec(c *msg.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithFilter sets the partition pre-filter applied to presence frames.
// Without a filter every sender is cached.
func WithFilter(f *partition.Filter) Option {
	return func(o *options) {
		o.filter = f
	}
}

// WithInterval sets the presence broadcast period
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithBuffer sets the listener's inbound frame buffer
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}
