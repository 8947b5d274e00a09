// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session layers point to point exchanges over the broadcast
// medium. A Mux owns every session of a node and routes connect, accept,
// terminate and application frames by (peer, app id).
package session

import (
	"context"
	"sync"
	"time"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

type key struct {
	peer nowlink.Addr
	app  msg.AppID
}

// Mux demultiplexes session traffic. At most one live session owns a
// (peer, app) pair at a time.
type Mux struct {
	hub  *nowlink.Hub
	sub  *nowlink.Subscription
	self nowlink.Addr
	opts options

	mutex    sync.Mutex
	sessions map[key]*Session
	pending  map[key]*Request
	requests chan *Request
	stopped  bool
}

// NewMux creates a mux over hub. It subscribes immediately; frames are
// processed once Run is called.
func NewMux(hub *nowlink.Hub, opts ...Option) *Mux {
	o := options{
		log:            nowlink.DevNullLogger,
		connectTimeout: DefaultConnectTimeout,
		retryInterval:  DefaultRetryInterval,
		inbox:          DefaultInboxSize,
		requests:       DefaultRequestQueue,
		buffer:         nowlink.DefaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Mux{
		hub:      hub,
		sub:      hub.Subscribe(o.buffer),
		self:     hub.LocalAddr(),
		opts:     o,
		sessions: make(map[key]*Session),
		pending:  make(map[key]*Request),
		requests: make(chan *Request, o.requests),
	}
}

// Requests delivers inbound connect requests from peers without a session
// for that app. The channel is closed when Run returns.
func (m *Mux) Requests() <-chan *Request {
	return m.requests
}

// Open creates an Idle session with peer for app
func (m *Mux) Open(peer nowlink.Addr, app msg.AppID) (*Session, error) {
	if !m.opts.filter.Eligible(m.self, peer) {
		return nil, ErrNotEligible
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.stopped {
		return nil, nowlink.ErrClosed
	}
	k := key{peer, app}
	if s, ok := m.sessions[k]; ok && !s.State().Terminal() {
		return nil, ErrSessionExists
	}
	s := newSession(m, k, Idle)
	m.sessions[k] = s
	return s, nil
}

// Lookup returns the live session for (peer, app), if any
func (m *Mux) Lookup(peer nowlink.Addr, app msg.AppID) (*Session, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s, ok := m.sessions[key{peer, app}]
	return s, ok
}

// Run routes frames until ctx is done or the hub stops. Sessions still
// live when Run returns end with nowlink.ErrClosed.
func (m *Mux) Run(ctx context.Context) error {
	defer m.shutdown()
	defer m.sub.Close()

	for {
		select {
		case frame, ok := <-m.sub.C:
			if !ok {
				return nil
			}
			m.handle(frame)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Mux) handle(frame *nowlink.Frame) {
	if frame.Src == m.self || (!frame.Dst.IsBroadcast() && frame.Dst != m.self) {
		return
	}
	packet, err := m.opts.codec.Decode(frame.Data)
	if err != nil {
		return
	}
	app, ok := msg.AppIDOf(packet)
	if !ok {
		return
	}
	k := key{frame.Src, app}

	switch p := packet.(type) {
	case *msg.Connect:
		m.handleConnect(k, frame.Time)
	case *msg.Accept:
		if s := m.lookup(k); s != nil {
			s.promote()
		}
	case *msg.Terminate:
		m.mutex.Lock()
		delete(m.pending, k)
		m.mutex.Unlock()
		if s := m.lookup(k); s != nil {
			s.remoteTerminate()
		}
	case *msg.App:
		s := m.lookup(k)
		if s == nil {
			m.opts.metrics.FrameDropped("no_session")
			return
		}
		s.deliver(p.Msg)
	}
}

func (m *Mux) handleConnect(k key, at time.Time) {
	m.mutex.Lock()
	s := m.sessions[k]
	if s != nil && !s.State().Terminal() {
		m.mutex.Unlock()
		switch s.State() {
		case Active:
			// our accept was lost
			m.send(k.peer, &msg.Accept{App: k.app})
		case Connecting:
			// both sides connected at once
			if s.promote() {
				m.send(k.peer, &msg.Accept{App: k.app})
			}
		}
		return
	}
	if _, ok := m.pending[k]; ok {
		m.mutex.Unlock()
		return
	}
	if !m.opts.filter.Eligible(m.self, k.peer) {
		m.mutex.Unlock()
		m.opts.log.Debug("session: ignoring connect from ineligible %s", k.peer)
		return
	}
	req := &Request{Peer: k.peer, App: k.app, Time: at, mux: m}
	select {
	case m.requests <- req:
		m.pending[k] = req
	default:
		m.opts.log.Debug("session: request queue full, dropping connect from %s", k.peer)
	}
	m.mutex.Unlock()
}

func (m *Mux) lookup(k key) *Session {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.sessions[k]
}

// accept turns a pending request into an Active session
func (m *Mux) accept(r *Request) (*Session, error) {
	k := key{r.Peer, r.App}

	m.mutex.Lock()
	if m.stopped {
		m.mutex.Unlock()
		return nil, nowlink.ErrClosed
	}
	// the peer gave up or reconnected after r was queued
	if m.pending[k] != r {
		m.mutex.Unlock()
		return nil, ErrPeerTerminated
	}
	delete(m.pending, k)
	if s, ok := m.sessions[k]; ok && !s.State().Terminal() {
		m.mutex.Unlock()
		return nil, ErrSessionExists
	}
	s := newSession(m, k, Active)
	m.sessions[k] = s
	m.mutex.Unlock()

	m.send(k.peer, &msg.Accept{App: k.app})
	m.opts.log.Debug("session: accepted %s app %d", k.peer, k.app)
	return s, nil
}

func (m *Mux) decline(r *Request) {
	k := key{r.Peer, r.App}
	m.mutex.Lock()
	if m.pending[k] == r {
		delete(m.pending, k)
	}
	m.mutex.Unlock()
	m.send(k.peer, &msg.Terminate{App: k.app})
}

// release drops s from the routing table once it is terminal
func (m *Mux) release(s *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.sessions[s.key] == s {
		delete(m.sessions, s.key)
	}
}

// send encodes and transmits p. Transport failures are logged and dropped.
func (m *Mux) send(dst nowlink.Addr, p msg.Packet) error {
	data, err := m.opts.codec.Encode(p)
	if err != nil {
		return err
	}
	if err := m.hub.Send(context.Background(), dst, data); err != nil {
		m.opts.log.Debug("session: %s to %s dropped: %v", p.Kind(), dst, err)
	}
	return nil
}

func (m *Mux) shutdown() {
	m.mutex.Lock()
	m.stopped = true
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.pending = make(map[key]*Request)
	m.mutex.Unlock()

	for _, s := range live {
		s.end(Closed, nowlink.ErrClosed, false)
	}
	close(m.requests)
}
