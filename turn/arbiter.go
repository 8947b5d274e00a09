// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package turn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

type phase int

const (
	localTurn phase = iota
	waiting
)

// Arbiter runs rounds over a Conn. The side whose first move carries the
// lower tie-break holds the initiative; the other side discards its own
// first move and continues from the peer's.
type Arbiter struct {
	conn    Conn
	replica Replica
	opts    options

	mutex sync.Mutex
	round int

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	inbound   chan msg.AppMessage
	recvErr   error
}

// NewArbiter creates an arbiter over conn driving replica
func NewArbiter(conn Conn, replica Replica, opts ...Option) *Arbiter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Arbiter{
		conn:    conn,
		replica: replica,
		opts:    o,
		inbound: make(chan msg.AppMessage),
	}
}

// Round returns the current round number, 0 before the first round
func (a *Arbiter) Round() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.round
}

// TurnTimeout returns the local turn limit for round
func (a *Arbiter) TurnTimeout(round int) time.Duration {
	return a.decayed(a.opts.turnTimeout, round)
}

// WaitTimeout returns how long the peer may take in round
func (a *Arbiter) WaitTimeout(round int) time.Duration {
	return a.decayed(a.opts.waitTimeout, round)
}

func (a *Arbiter) decayed(base time.Duration, round int) time.Duration {
	if round < 1 {
		round = 1
	}
	d := base - time.Duration(round-1)*a.opts.decay
	if d < a.opts.minTimeout {
		d = a.opts.minTimeout
	}
	return d
}

// Close stops reading from the connection without terminating it.
// Rounds played after Close fail with nowlink.ErrClosed.
func (a *Arbiter) Close() {
	a.startOnce.Do(func() {
		a.recvErr = nowlink.ErrClosed
		close(a.inbound)
	})
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

// pump moves inbound messages from the connection into a.inbound. It
// outlives single rounds so that nothing read between rounds is lost.
func (a *Arbiter) startPump() {
	a.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer close(a.inbound)
			for {
				m, err := a.conn.Recv(ctx)
				if ctx.Err() != nil {
					a.recvErr = nowlink.ErrClosed
					return
				}
				if err != nil {
					a.recvErr = err
					return
				}
				select {
				case a.inbound <- m:
				case <-ctx.Done():
					a.recvErr = nowlink.ErrClosed
					return
				}
			}
		}()
	})
}

func (a *Arbiter) emit(kind EventKind, m msg.Move) {
	if a.opts.observer != nil {
		a.opts.observer(Event{Kind: kind, Move: m, Round: a.round})
	}
}

// roundState is the per-round arbitration state
type roundState struct {
	phase     phase
	tieBreak  float64
	sentStart bool // a first move went out or the peer's was adopted
	settled   bool // initiative can no longer change this round
	timer     *time.Timer
}

// PlayRound plays one round. Local moves are read from local; when the
// local turn expires an explicit msg.NoMove is sent instead. The round
// ends with a Result once either side reaches a terminal outcome.
//
// A peer that stays silent past the wait limit fails the round with
// nowlink.ErrTimeout; a final claim the local replica disagrees with
// fails it with a *DivergenceError. Both abort the connection. If ctx
// is cancelled the connection is terminated with a notice to the peer.
func (a *Arbiter) PlayRound(ctx context.Context, local <-chan msg.Move) (Result, error) {
	a.startPump()

	a.mutex.Lock()
	a.round++
	a.mutex.Unlock()
	a.replica.Reset("")
	rs := &roundState{
		phase:    localTurn,
		tieBreak: a.opts.tieBreak(),
		timer:    time.NewTimer(a.TurnTimeout(a.round)),
	}
	defer rs.timer.Stop()

	a.opts.log.Debug("turn: round %d, tie-break %.4f", a.round, rs.tieBreak)
	a.emit(EventTurnStarted, msg.NoMove)

	for {
		select {
		case <-ctx.Done():
			a.conn.Terminate(true)
			return Result{Round: a.round}, ctx.Err()

		case m, ok := <-local:
			if !ok {
				local = nil
				continue
			}
			if rs.phase != localTurn {
				a.opts.log.Debug("turn: local move %s out of turn ignored", m)
				continue
			}
			if res, done, err := a.playLocal(rs, m); done || err != nil {
				return res, err
			}

		case <-rs.timer.C:
			if rs.phase == waiting {
				err := fmt.Errorf("%w: no move from peer within %v in round %d",
					nowlink.ErrTimeout, a.WaitTimeout(a.round), a.round)
				a.conn.Abort(err)
				return Result{Round: a.round}, err
			}
			a.emit(EventForfeit, msg.NoMove)
			if res, done, err := a.playLocal(rs, msg.NoMove); done || err != nil {
				return res, err
			}

		case in, ok := <-a.inbound:
			if !ok {
				return Result{Round: a.round}, a.recvErr
			}
			if res, done, err := a.handle(rs, in); done || err != nil {
				return res, err
			}
		}
	}
}

// PlayMatch plays rounds until one is decided or maxRounds have been
// played, and returns the last result.
func (a *Arbiter) PlayMatch(ctx context.Context, local <-chan msg.Move, maxRounds int) (Result, error) {
	var res Result
	for i := 0; i < maxRounds; i++ {
		var err error
		res, err = a.PlayRound(ctx, local)
		if err != nil {
			return res, err
		}
		if res.Outcome != Draw {
			return res, nil
		}
	}
	return res, nil
}

func (a *Arbiter) playLocal(rs *roundState, m msg.Move) (Result, bool, error) {
	if err := a.replica.ApplyLocal(m); err != nil {
		a.opts.log.Debug("turn: local move %s rejected: %v", m, err)
		return Result{}, false, nil
	}

	outcome := a.replica.Outcome()
	var out msg.AppMessage
	switch {
	case outcome.Terminal():
		out = &msg.EndMsg{ClaimsWin: outcome == LocalWin, Move: m}
		rs.settled = true
	case !rs.sentStart:
		out = &msg.StartMsg{Role: a.replica.Role(), Move: m, TieBreak: rs.tieBreak, Round: a.round}
		rs.sentStart = true
	default:
		out = &msg.MoveMsg{Move: m}
		rs.settled = true
	}
	if err := a.conn.Send(out); err != nil {
		a.opts.log.Debug("turn: %s not sent: %v", out, err)
	}

	if outcome.Terminal() {
		return Result{Outcome: outcome, Round: a.round}, true, nil
	}
	rs.phase = waiting
	rs.timer.Reset(a.WaitTimeout(a.round))
	return Result{}, false, nil
}

func (a *Arbiter) handle(rs *roundState, in msg.AppMessage) (Result, bool, error) {
	switch m := in.(type) {
	case *msg.StartMsg:
		if m.Round < a.round {
			a.opts.log.Trace("turn: stale start for round %d", m.Round)
			return Result{}, false, nil
		}
		if rs.settled || (rs.sentStart && m.TieBreak >= rs.tieBreak) {
			a.opts.log.Debug("turn: holding initiative (%.4f <= %.4f)", rs.tieBreak, m.TieBreak)
			return Result{}, false, nil
		}
		if rs.sentStart {
			a.emit(EventInitiativeLost, msg.NoMove)
		}
		a.round = m.Round
		a.replica.Reset(m.Role)
		a.replica.ApplyRemote(m.Move)
		rs.sentStart = true
		rs.settled = true
		a.emit(EventPeerMoved, m.Move)
		a.startLocalTurn(rs)

	case *msg.MoveMsg:
		if rs.phase != waiting {
			a.opts.log.Debug("turn: peer move %s during local turn ignored", m.Move)
			return Result{}, false, nil
		}
		rs.settled = true
		a.replica.ApplyRemote(m.Move)
		a.emit(EventPeerMoved, m.Move)
		a.startLocalTurn(rs)

	case *msg.EndMsg:
		a.replica.ApplyRemote(m.Move)
		a.emit(EventPeerMoved, m.Move)
		outcome := a.replica.Outcome()
		if (m.ClaimsWin && outcome == PeerWin) || (!m.ClaimsWin && outcome == Draw) {
			return Result{Outcome: outcome, Round: a.round}, true, nil
		}
		err := &DivergenceError{Round: a.round, ClaimsWin: m.ClaimsWin, Local: outcome}
		a.opts.log.Warn("turn: %v", err)
		a.conn.Abort(err)
		return Result{Outcome: outcome, Round: a.round}, true, err

	default:
		a.opts.log.Trace("turn: ignoring %T", in)
	}
	return Result{}, false, nil
}

func (a *Arbiter) startLocalTurn(rs *roundState) {
	rs.phase = localTurn
	rs.timer.Reset(a.TurnTimeout(a.round))
	a.emit(EventTurnStarted, msg.NoMove)
}
