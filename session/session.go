// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

// Session is one point to point exchange with a peer for one app id.
// Sends are fire-and-forget; receives end when the session leaves Active.
type Session struct {
	mux *Mux
	key key

	mutex  sync.Mutex
	state  State
	err    error
	acked  chan struct{}
	done   chan struct{}
	inbox  chan msg.AppMessage
	ackOne sync.Once
}

func newSession(m *Mux, k key, state State) *Session {
	s := &Session{
		mux:   m,
		key:   k,
		state: state,
		acked: make(chan struct{}),
		done:  make(chan struct{}),
		inbox: make(chan msg.AppMessage, m.opts.inbox),
	}
	if state == Active {
		s.ackOne.Do(func() { close(s.acked) })
	}
	return s
}

// Peer returns the remote address
func (s *Session) Peer() nowlink.Addr {
	return s.key.peer
}

// App returns the application id
func (s *Session) App() msg.AppID {
	return s.key.app
}

// State returns the current state
func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Err returns why the session ended, or nil while it is live
func (s *Session) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.err
}

// Done is closed when the session stops being usable
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) String() string {
	return fmt.Sprintf("session{%s app=%d %s}", s.key.peer, s.key.app, s.State())
}

// Connect performs the handshake: a connect frame is sent and resent
// until the peer acknowledges or the connect timeout passes. On timeout
// the session is Failed and the error matches nowlink.ErrTimeout; on
// cancellation it is Failed with the context error.
func (s *Session) Connect(ctx context.Context) error {
	s.mutex.Lock()
	if s.state != Idle {
		state := s.state
		s.mutex.Unlock()
		return fmt.Errorf("%w: connect in %s", ErrInvalidState, state)
	}
	s.state = Connecting
	s.mutex.Unlock()

	opts := s.mux.opts
	wait, cancel := context.WithTimeout(ctx, opts.connectTimeout)
	defer cancel()

	retry := time.NewTicker(opts.retryInterval)
	defer retry.Stop()

	for {
		if err := s.mux.send(s.key.peer, &msg.Connect{App: s.key.app}); err != nil {
			s.finish(Failed, err, false, connecting)
			return err
		}
		select {
		case <-s.acked:
			return nil
		case <-s.done:
			return s.Err()
		case <-retry.C:
		case <-wait.Done():
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("%w: no answer from %s within %v", nowlink.ErrTimeout, s.key.peer, opts.connectTimeout)
			}
			if s.finish(Failed, err, true, connecting) {
				return err
			}
			// lost the race against an ack or a terminate
			select {
			case <-s.acked:
				return nil
			default:
				return s.Err()
			}
		}
	}
}

// Send transmits m to the peer. Delivery is not confirmed and transport
// failures are absorbed.
func (s *Session) Send(m msg.AppMessage) error {
	if s.State() != Active {
		return ErrNotActive
	}
	return s.mux.send(s.key.peer, &msg.App{App: s.key.app, Msg: m})
}

// Recv waits for the next inbound message. Once the session has left
// Active it returns the reason the session ended and no further
// messages, including any still buffered.
func (s *Session) Recv(ctx context.Context) (msg.AppMessage, error) {
	if s.State() == Idle {
		return nil, ErrNotActive
	}
	select {
	case <-s.done:
		return nil, s.Err()
	default:
	}

	select {
	case m := <-s.inbox:
		select {
		case <-s.done:
			return nil, s.Err()
		default:
			return m, nil
		}
	case <-s.done:
		return nil, s.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Messages returns the inbound message sequence. It ends when the session
// leaves Active or ctx is done, and is not restartable.
func (s *Session) Messages(ctx context.Context) iter.Seq[msg.AppMessage] {
	return func(yield func(msg.AppMessage) bool) {
		for {
			m, err := s.Recv(ctx)
			if err != nil {
				return
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Terminate ends the session locally, optionally notifying the peer. It
// always succeeds; terminating an ended session is a no-op.
func (s *Session) Terminate(sendOut bool) error {
	s.end(Closed, nowlink.ErrClosed, sendOut)
	return nil
}

// Abort ends the session as Failed with reason and notifies the peer
func (s *Session) Abort(reason error) {
	if reason == nil {
		reason = nowlink.ErrClosed
	}
	s.end(Failed, reason, true)
}

func live(st State) bool       { return !st.Terminal() && st != Closing }
func connecting(st State) bool { return st == Connecting }

// end moves a live session to a terminal state via Closing. It reports
// whether this call performed the transition.
func (s *Session) end(final State, reason error, sendOut bool) bool {
	return s.finish(final, reason, sendOut, live)
}

func (s *Session) finish(final State, reason error, sendOut bool, from func(State) bool) bool {
	s.mutex.Lock()
	if !from(s.state) {
		s.mutex.Unlock()
		return false
	}
	prev := s.state
	s.state = Closing
	s.err = reason
	close(s.done)
	s.mutex.Unlock()

	if sendOut && prev != Idle {
		s.mux.send(s.key.peer, &msg.Terminate{App: s.key.app})
	}

	s.mutex.Lock()
	s.state = final
	s.mutex.Unlock()

	s.mux.release(s)
	s.mux.opts.metrics.SessionEnded(outcome(final, reason))
	s.mux.opts.log.Debug("session: %s app %d %s: %v", s.key.peer, s.key.app, final, reason)
	return true
}

// promote moves a Connecting session to Active. It reports whether the
// session is Active afterwards.
func (s *Session) promote() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	switch s.state {
	case Connecting:
		s.state = Active
		s.ackOne.Do(func() { close(s.acked) })
		return true
	case Active:
		return true
	}
	return false
}

func (s *Session) remoteTerminate() {
	switch s.State() {
	case Connecting:
		s.end(Failed, ErrPeerTerminated, false)
	case Active:
		s.end(Closed, ErrPeerTerminated, false)
	}
}

// deliver queues an inbound message. Any app frame from the peer proves
// it accepted, so it also completes a pending connect.
func (s *Session) deliver(m msg.AppMessage) {
	if !s.promote() {
		return
	}
	select {
	case s.inbox <- m:
	default:
		s.mux.opts.metrics.FrameDropped("inbox_full")
	}
}

func outcome(final State, reason error) string {
	switch {
	case errors.Is(reason, nowlink.ErrTimeout):
		return nowlink.OutcomeTimeout
	case errors.Is(reason, nowlink.ErrDivergence):
		return nowlink.OutcomeDiverged
	case final == Failed:
		return nowlink.OutcomeFailed
	}
	return nowlink.OutcomeClosed
}
