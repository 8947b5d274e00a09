// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package turn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeConn is an in-memory Conn driven directly by the test
type fakeConn struct {
	in   chan msg.AppMessage
	out  chan msg.AppMessage
	done chan struct{}
	once sync.Once

	mutex      sync.Mutex
	terminated bool
	notified   bool
	aborted    error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan msg.AppMessage, 16),
		out:  make(chan msg.AppMessage, 16),
		done: make(chan struct{}),
	}
}

func (c *fakeConn) Send(m msg.AppMessage) error {
	select {
	case c.out <- m:
	default:
	}
	return nil
}

func (c *fakeConn) Recv(ctx context.Context) (msg.AppMessage, error) {
	select {
	case m := <-c.in:
		return m, nil
	case <-c.done:
		return nil, nowlink.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Terminate(sendOut bool) error {
	c.mutex.Lock()
	c.terminated = true
	c.notified = sendOut
	c.mutex.Unlock()
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) Abort(reason error) {
	c.mutex.Lock()
	c.aborted = reason
	c.mutex.Unlock()
	c.once.Do(func() { close(c.done) })
}

func (c *fakeConn) abortErr() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.aborted
}

// sumGame adds moves 1..3 to a running total; whoever reaches the
// target wins. Move 0 settles the round as a draw.
type sumGame struct {
	role     string
	peerRole string
	target   int
	total    int
	outcome  Outcome
	resets   int
}

func newSumGame(role string, target int) *sumGame {
	return &sumGame{role: role, target: target}
}

func (g *sumGame) Role() string { return g.role }

func (g *sumGame) Reset(peerRole string) {
	g.peerRole = peerRole
	g.total = 0
	g.outcome = None
	g.resets++
}

func (g *sumGame) ApplyLocal(m msg.Move) error {
	if g.outcome.Terminal() {
		return errors.New("round is over")
	}
	switch {
	case m.IsNone():
		return nil
	case m == 0:
		g.outcome = Draw
		return nil
	case m < 1 || m > 3:
		return fmt.Errorf("move %d out of range", m)
	}
	g.total += int(m)
	if g.total >= g.target {
		g.outcome = LocalWin
	}
	return nil
}

func (g *sumGame) ApplyRemote(m msg.Move) {
	switch {
	case m.IsNone():
		return
	case m == 0:
		g.outcome = Draw
		return
	}
	g.total += int(m)
	if g.total >= g.target {
		g.outcome = PeerWin
	}
}

func (g *sumGame) Outcome() Outcome { return g.outcome }

// eventLog records observer events and signals each local turn
type eventLog struct {
	mutex  sync.Mutex
	events []Event
	turns  chan struct{}
}

func newEventLog() *eventLog {
	return &eventLog{turns: make(chan struct{}, 16)}
}

func (l *eventLog) observe(ev Event) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.events = append(l.events, ev)
	if ev.Kind == EventTurnStarted {
		select {
		case l.turns <- struct{}{}:
		default:
		}
	}
}

// awaitTurn blocks until the next local turn starts
func (l *eventLog) awaitTurn(t *testing.T) {
	t.Helper()
	select {
	case <-l.turns:
	case <-time.After(time.Second):
		t.Fatal("local turn did not start")
	}
}

func (l *eventLog) count(kind EventKind) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type played struct {
	res Result
	err error
}

func playAsync(ctx context.Context, a *Arbiter, local <-chan msg.Move) <-chan played {
	ch := make(chan played, 1)
	go func() {
		res, err := a.PlayRound(ctx, local)
		ch <- played{res, err}
	}()
	return ch
}

func waitPlayed(t *testing.T, ch <-chan played) played {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("round did not finish")
		return played{}
	}
}

func sent(t *testing.T, c *fakeConn) msg.AppMessage {
	t.Helper()
	select {
	case m := <-c.out:
		return m
	case <-time.After(time.Second):
		t.Fatal("nothing sent")
		return nil
	}
}

func fixedTie(v float64) Option {
	return WithTieBreaker(func() float64 { return v })
}
