// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nowlink provides the shared plumbing for proximity play between
// small devices on a broadcast-only radio: device addresses, the raw
// transport contract, the inbound frame fan-out hub, error taxonomy,
// logging and metrics.
//
// Higher layers live in sub-packages: msg (wire format), partition
// (eligibility), discovery (beacon and peer cache), session (point to point
// exchanges), turn (turn arbitration) and node (service wiring).
package nowlink

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Frame is one datagram observed on the medium
type Frame struct {
	Src  Addr      // Sender address (implicit, from the transport)
	Dst  Addr      // Destination (Broadcast for presence)
	RSSI int       // Received signal strength in dBm, 0 if unknown
	Data []byte    // Payload
	Time time.Time // When the frame was received
}

// Sender is the fan-in side of the radio. Frames from independent senders
// are queued onto the medium; the driver serializes them.
type Sender interface {
	Send(ctx context.Context, dst Addr, data []byte) error
	LocalAddr() Addr
}

// Transport is a raw, unreliable, broadcast-capable radio
type Transport interface {
	Sender

	// Recv blocks until the next inbound frame, ctx is done or the
	// transport is closed (ErrClosed).
	Recv(ctx context.Context) (*Frame, error)

	Close() error
}

// DefaultSubscriberBuffer is the per-subscriber frame buffer
const DefaultSubscriberBuffer = 64

// Hub is the single reader of a Transport. Every inbound frame is copied
// to all subscribers; each filters locally. A subscriber whose buffer is
// full misses the frame, the same way the radio would lose it.
type Hub struct {
	tr      Transport
	log     *Logger
	metrics *Metrics

	mutex     sync.Mutex
	listeners map[*Subscription]struct{}
	closed    bool
}

// Subscription receives frames from a Hub
type Subscription struct {
	C <-chan *Frame

	ch  chan *Frame
	hub *Hub
}

// HubOption configures a Hub
type HubOption func(h *Hub)

// WithHubLogger sets the hub logger
func WithHubLogger(l *Logger) HubOption {
	return func(h *Hub) {
		h.log = l
	}
}

// WithHubMetrics sets the hub metrics
func WithHubMetrics(m *Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates a hub reading from tr
func NewHub(tr Transport, opts ...HubOption) *Hub {
	h := &Hub{
		tr:        tr,
		log:       DevNullLogger,
		listeners: make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// LocalAddr returns the transport's own address
func (h *Hub) LocalAddr() Addr {
	return h.tr.LocalAddr()
}

// Send transmits data to dst. Errors are wrapped as ErrTransport and
// counted; callers in the core log and drop them.
func (h *Hub) Send(ctx context.Context, dst Addr, data []byte) error {
	if err := h.tr.Send(ctx, dst, data); err != nil {
		h.metrics.SendFailed()
		return TransportError("send", err)
	}
	h.metrics.FrameSent()
	return nil
}

// Subscribe returns a subscription with the given buffer size. After the
// hub stops, new subscriptions come back already closed.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan *Frame, buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.listeners[sub] = struct{}{}
	return sub
}

// Close detaches the subscription and closes its channel
func (s *Subscription) Close() {
	h := s.hub
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.listeners[s]; ok {
		delete(h.listeners, s)
		close(s.ch)
	}
}

// Run reads frames until ctx is done or the transport is closed. All
// subscription channels are closed when Run returns.
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		frame, err := h.tr.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrClosed) {
				return nil
			}
			h.log.Debug("hub: receive failed: %v", err)
			select {
			case <-time.After(10 * time.Millisecond):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		h.metrics.FrameReceived()
		h.publish(frame)
	}
}

// publish distributes a frame to all listeners without blocking
func (h *Hub) publish(frame *Frame) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for sub := range h.listeners {
		select {
		case sub.ch <- frame:
		default:
			h.metrics.FrameDropped("subscriber_full")
		}
	}
}

func (h *Hub) shutdown() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.closed = true
	for sub := range h.listeners {
		close(sub.ch)
		delete(h.listeners, sub)
	}
}
