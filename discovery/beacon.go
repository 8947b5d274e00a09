// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

// DefaultInterval is the presence broadcast period
const DefaultInterval = 2 * time.Second

// Beacon periodically broadcasts a presence frame carrying the nickname.
// While suspended it stays silent; the transport is left untouched.
type Beacon struct {
	sender    nowlink.Sender
	opts      options
	suspended atomic.Bool

	mutex sync.RWMutex
	nick  string
}

// NewBeacon creates a beacon sending through sender
func NewBeacon(sender nowlink.Sender, nick string, opts ...Option) (*Beacon, error) {
	if len(nick) > msg.MaxNickLen {
		return nil, nowlink.NewConfigError("node.nick", "%q exceeds %d bytes", nick, msg.MaxNickLen)
	}
	o := defaultOptions()
	o.apply(opts)
	return &Beacon{
		sender: sender,
		opts:   o,
		nick:   nick,
	}, nil
}

// Suspend silences (true) or resumes (false) the beacon
func (b *Beacon) Suspend(suspended bool) {
	if b.suspended.Swap(suspended) != suspended {
		b.opts.log.Debug("beacon: suspended=%t", suspended)
	}
}

// Suspended reports whether the beacon is silent
func (b *Beacon) Suspended() bool {
	return b.suspended.Load()
}

// SetNick replaces the advertised nickname
func (b *Beacon) SetNick(nick string) error {
	if len(nick) > msg.MaxNickLen {
		return nowlink.NewConfigError("node.nick", "%q exceeds %d bytes", nick, msg.MaxNickLen)
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.nick = nick
	return nil
}

// Nick returns the advertised nickname
func (b *Beacon) Nick() string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.nick
}

// Announce sends one presence frame now, regardless of suspension
func (b *Beacon) Announce(ctx context.Context) error {
	data, err := b.opts.codec.Encode(&msg.Presence{Nick: b.Nick()})
	if err != nil {
		return err
	}
	return b.sender.Send(ctx, nowlink.Broadcast, data)
}

// Run broadcasts presence every interval until ctx is done. Send errors
// are logged and dropped.
func (b *Beacon) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.opts.interval)
	defer ticker.Stop()

	for {
		if !b.suspended.Load() {
			if err := b.Announce(ctx); err != nil && ctx.Err() == nil {
				b.opts.log.Debug("beacon: presence not sent: %v", err)
			}
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}
