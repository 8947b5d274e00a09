// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"context"
	"iter"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

// Listener consumes inbound frames and keeps the PeerCache current.
// Presence frames from eligible senders refresh the cache and wake
// subscribers; any other decodable frame from a cached peer only updates
// its liveness.
type Listener struct {
	self  nowlink.Addr
	sub   *nowlink.Subscription
	cache *PeerCache
	opts  options

	updates *notifier
}

// NewListener subscribes to hub and returns a listener feeding cache.
// Frames arriving before Run is called are buffered.
func NewListener(hub *nowlink.Hub, cache *PeerCache, opts ...Option) *Listener {
	o := defaultOptions()
	o.apply(opts)
	return &Listener{
		self:    hub.LocalAddr(),
		sub:     hub.Subscribe(o.buffer),
		cache:   cache,
		opts:    o,
		updates: newNotifier(),
	}
}

// Cache returns the cache fed by the listener
func (l *Listener) Cache() *PeerCache {
	return l.cache
}

// Updates returns a subscription to future cache refreshes
func (l *Listener) Updates() *Subscription {
	l.updates.mutex.Lock()
	defer l.updates.mutex.Unlock()
	return &Subscription{n: l.updates, seen: l.updates.seq}
}

// Watch yields every refresh of addr until ctx is done or the listener
// stops.
func (l *Listener) Watch(ctx context.Context, addr nowlink.Addr) iter.Seq[Peer] {
	sub := l.Updates()
	return func(yield func(Peer) bool) {
		for {
			p, err := sub.Next(ctx)
			if err != nil {
				return
			}
			if p.Addr != addr {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Run processes frames until ctx is done or the hub stops
func (l *Listener) Run(ctx context.Context) error {
	defer l.updates.close()
	defer l.sub.Close()

	l.opts.log.Debug("discovery: listening as %s, %s", l.self, l.opts.filter)
	for {
		select {
		case frame, ok := <-l.sub.C:
			if !ok {
				return nil
			}
			l.handle(frame)
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *Listener) handle(frame *nowlink.Frame) {
	if frame.Src == l.self {
		return
	}

	packet, err := l.opts.codec.Decode(frame.Data)
	if err != nil {
		l.opts.metrics.FrameDropped("undecodable")
		l.opts.log.Trace("discovery: ignoring frame from %s: %v", frame.Src, err)
		return
	}

	presence, ok := packet.(*msg.Presence)
	if !ok {
		l.cache.Touch(frame.Src, frame.RSSI, frame.Time)
		return
	}

	if !l.opts.filter.Eligible(l.self, frame.Src) {
		l.opts.metrics.FrameDropped("ineligible")
		return
	}

	peer := Peer{
		Addr:     frame.Src,
		Nick:     presence.Nick,
		RSSI:     frame.RSSI,
		LastSeen: frame.Time,
	}
	if l.cache.Refresh(peer) {
		l.opts.log.Debug("discovery: cache full, evicted oldest peer for %s", peer)
	}
	l.opts.log.Trace("discovery: presence %s", peer)
	l.updates.broadcast(peer)
}
