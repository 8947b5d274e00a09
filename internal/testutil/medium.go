// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testutil

import (
	"bytes"
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/destiny/nowlink"
)

// DefaultRSSI is the signal strength reported for frames on a Medium
const DefaultRSSI = -50

// Medium is an in-memory broadcast radio. Frames addressed to Broadcast
// reach every other attached radio; unicast frames reach only their
// destination. Delivery is best-effort: a full inbox or the configured loss
// rate drops the frame.
type Medium struct {
	mu     sync.Mutex
	radios map[nowlink.Addr]*Radio
	taps   []chan *nowlink.Frame
	loss   float64
	rng    *rand.Rand
	rssi   int
}

// NewMedium creates a lossless medium
func NewMedium() *Medium {
	return &Medium{
		radios: make(map[nowlink.Addr]*Radio),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		rssi:   DefaultRSSI,
	}
}

// SetLoss sets the probability in [0,1] that a delivery is dropped
func (m *Medium) SetLoss(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loss = p
}

// SetRSSI sets the signal strength stamped on delivered frames
func (m *Medium) SetRSSI(rssi int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rssi = rssi
}

// Attach creates a radio with the given address
func (m *Medium) Attach(addr nowlink.Addr) *Radio {
	r := &Radio{
		medium: m,
		addr:   addr,
		inbox:  make(chan *nowlink.Frame, 256),
		closed: make(chan struct{}),
	}
	m.mu.Lock()
	m.radios[addr] = r
	m.mu.Unlock()
	return r
}

// Tap returns a channel that sees every transmitted frame
func (m *Medium) Tap(buffer int) <-chan *nowlink.Frame {
	ch := make(chan *nowlink.Frame, buffer)
	m.mu.Lock()
	m.taps = append(m.taps, ch)
	m.mu.Unlock()
	return ch
}

func (m *Medium) detach(addr nowlink.Addr) {
	m.mu.Lock()
	delete(m.radios, addr)
	m.mu.Unlock()
}

func (m *Medium) transmit(src, dst nowlink.Addr, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, tap := range m.taps {
		select {
		case tap <- &nowlink.Frame{Src: src, Dst: dst, RSSI: m.rssi, Data: bytes.Clone(data), Time: now}:
		default:
		}
	}

	for addr, r := range m.radios {
		if addr == src {
			continue
		}
		if !dst.IsBroadcast() && dst != addr {
			continue
		}
		if m.loss > 0 && m.rng.Float64() < m.loss {
			continue
		}
		r.deliver(&nowlink.Frame{Src: src, Dst: dst, RSSI: m.rssi, Data: bytes.Clone(data), Time: now})
	}
}

// Radio is one device's transport on a Medium. It implements
// nowlink.Transport.
type Radio struct {
	medium *Medium
	addr   nowlink.Addr
	inbox  chan *nowlink.Frame
	closed chan struct{}
	once   sync.Once
}

// LocalAddr returns the radio address
func (r *Radio) LocalAddr() nowlink.Addr {
	return r.addr
}

// Send transmits data to dst
func (r *Radio) Send(ctx context.Context, dst nowlink.Addr, data []byte) error {
	select {
	case <-r.closed:
		return nowlink.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	r.medium.transmit(r.addr, dst, data)
	return nil
}

// Recv waits for the next delivered frame
func (r *Radio) Recv(ctx context.Context) (*nowlink.Frame, error) {
	select {
	case f := <-r.inbox:
		return f, nil
	case <-r.closed:
		return nil, nowlink.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Inject delivers data to this radio as if src had sent it
func (r *Radio) Inject(src nowlink.Addr, data []byte) {
	r.deliver(&nowlink.Frame{Src: src, Dst: r.addr, RSSI: r.medium.rssi, Data: bytes.Clone(data), Time: time.Now()})
}

// Close detaches the radio from the medium
func (r *Radio) Close() error {
	r.once.Do(func() {
		r.medium.detach(r.addr)
		close(r.closed)
	})
	return nil
}

func (r *Radio) deliver(f *nowlink.Frame) {
	select {
	case r.inbox <- f:
	default:
	}
}
