// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/internal/testutil"
	"github.com/destiny/nowlink/msg"
	"github.com/destiny/nowlink/partition"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testApp msg.AppID = 1

type device struct {
	addr  nowlink.Addr
	radio *testutil.Radio
	mux   *Mux
	stop  func()
}

func startDevice(t *testing.T, medium *testutil.Medium, addr nowlink.Addr, opts ...Option) *device {
	t.Helper()
	radio := medium.Attach(addr)
	hub := nowlink.NewHub(radio)
	opts = append([]Option{
		WithConnectTimeout(time.Second),
		WithRetryInterval(20 * time.Millisecond),
	}, opts...)
	mux := NewMux(hub, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		mux.Run(ctx)
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			wg.Wait()
			radio.Close()
		})
	}
	t.Cleanup(stop)
	return &device{addr: addr, radio: radio, mux: mux, stop: stop}
}

// establish connects a to b and returns both ends
func establish(t *testing.T, a, b *device) (*Session, *Session) {
	t.Helper()
	sa, err := a.mux.Open(b.addr, testApp)
	require.NoError(t, err)

	connected := make(chan error, 1)
	go func() {
		connected <- sa.Connect(context.Background())
	}()

	var req *Request
	select {
	case req = <-b.mux.Requests():
	case <-time.After(time.Second):
		t.Fatal("no connect request")
	}
	assert.Equal(t, a.addr, req.Peer)
	assert.Equal(t, testApp, req.App)

	sb, err := req.Accept()
	require.NoError(t, err)
	require.NoError(t, <-connected)

	assert.Equal(t, Active, sa.State())
	assert.Equal(t, Active, sb.State())
	return sa, sb
}

func recvWithin(t *testing.T, s *Session, d time.Duration) (msg.AppMessage, error) {
	t.Helper()
	ctx, cancel := testutil.TestTimeoutContext(d)
	defer cancel()
	return s.Recv(ctx)
}

func TestConnectAcceptExchange(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))

	sa, sb := establish(t, a, b)

	require.NoError(t, sa.Send(&msg.DataMsg{Payload: []byte("rock")}))
	m, err := recvWithin(t, sb, time.Second)
	require.NoError(t, err)
	assert.Equal(t, &msg.DataMsg{Payload: []byte("rock")}, m)

	require.NoError(t, sb.Send(&msg.MoveMsg{Move: 4}))
	m, err = recvWithin(t, sa, time.Second)
	require.NoError(t, err)
	assert.Equal(t, &msg.MoveMsg{Move: 4}, m)
}

func TestSendOrderPreserved(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))
	sa, sb := establish(t, a, b)

	tracker := testutil.NewMessageTracker()
	const n = 20
	var want []string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("m%02d", i)
		want = append(want, id)
		tracker.MarkSent(id)
		require.NoError(t, sa.Send(&msg.DataMsg{Payload: []byte(id)}))
	}

	ctx, cancel := testutil.TestTimeoutContext(2 * time.Second)
	defer cancel()
	for m := range sb.Messages(ctx) {
		tracker.MarkReceived(string(m.(*msg.DataMsg).Payload))
		if len(tracker.Order()) == n {
			break
		}
	}
	tracker.VerifyDelivery(t)
	assert.Equal(t, want, tracker.Order())
}

func TestConnectTimeoutFails(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1), WithConnectTimeout(100*time.Millisecond))

	s, err := a.mux.Open(testutil.DeviceAddr(9), testApp)
	require.NoError(t, err)

	start := time.Now()
	err = s.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, nowlink.ErrTimeout))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, Failed, s.State())
	assert.ErrorIs(t, s.Send(&msg.MoveMsg{Move: 1}), ErrNotActive)

	// a failed session frees the pair
	_, err = a.mux.Open(testutil.DeviceAddr(9), testApp)
	assert.NoError(t, err)
}

func TestConnectRetransmits(t *testing.T) {
	medium := testutil.NewMedium()
	tap := medium.Tap(64)
	a := startDevice(t, medium, testutil.DeviceAddr(1),
		WithConnectTimeout(150*time.Millisecond), WithRetryInterval(20*time.Millisecond))

	s, err := a.mux.Open(testutil.DeviceAddr(9), testApp)
	require.NoError(t, err)
	s.Connect(context.Background())

	var codec msg.Codec
	connects := 0
	for len(tap) > 0 {
		f := <-tap
		if p, err := codec.Decode(f.Data); err == nil {
			if _, ok := p.(*msg.Connect); ok {
				assert.Equal(t, testutil.DeviceAddr(9), f.Dst)
				connects++
			}
		}
	}
	assert.Greater(t, connects, 1)
}

func TestConnectCancelled(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))

	s, err := a.mux.Open(testutil.DeviceAddr(9), testApp)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	err = s.Connect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Failed, s.State())
}

func TestConnectOnlyFromIdle(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))
	sa, _ := establish(t, a, b)

	assert.ErrorIs(t, sa.Connect(context.Background()), ErrInvalidState)
}

func TestOpenRejectsLivePair(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))
	sa, _ := establish(t, a, b)

	_, err := a.mux.Open(b.addr, testApp)
	assert.ErrorIs(t, err, ErrSessionExists)

	// other app ids are independent
	other, err := a.mux.Open(b.addr, testApp+1)
	require.NoError(t, err)
	assert.Equal(t, Idle, other.State())

	require.NoError(t, sa.Terminate(false))
	_, err = a.mux.Open(b.addr, testApp)
	assert.NoError(t, err)
}

func TestNoReceiveAfterTerminate(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))
	sa, sb := establish(t, a, b)

	for i := 0; i < 3; i++ {
		require.NoError(t, sa.Send(&msg.MoveMsg{Move: msg.Move(i)}))
	}
	require.Eventually(t, func() bool { return len(sb.inbox) == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, sb.Terminate(false))
	assert.Equal(t, Closed, sb.State())

	// frames keep arriving after terminate
	require.NoError(t, sa.Send(&msg.MoveMsg{Move: 9}))

	_, err := recvWithin(t, sb, 100*time.Millisecond)
	assert.ErrorIs(t, err, nowlink.ErrClosed)

	yielded := 0
	for range sb.Messages(context.Background()) {
		yielded++
	}
	assert.Zero(t, yielded)
	assert.NoError(t, sb.Terminate(true), "terminate is idempotent")
}

func TestPeerTerminateEndsSession(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))
	sa, sb := establish(t, a, b)

	require.NoError(t, sa.Terminate(true))

	_, err := recvWithin(t, sb, time.Second)
	assert.ErrorIs(t, err, ErrPeerTerminated)
	assert.Equal(t, Closed, sb.State())
}

func TestAbortMarksFailed(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))
	sa, sb := establish(t, a, b)

	sa.Abort(nowlink.ErrDivergence)
	assert.Equal(t, Failed, sa.State())
	assert.ErrorIs(t, sa.Err(), nowlink.ErrDivergence)

	_, err := recvWithin(t, sb, time.Second)
	assert.ErrorIs(t, err, ErrPeerTerminated)
}

func TestDeclineFailsConnect(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))

	sa, err := a.mux.Open(b.addr, testApp)
	require.NoError(t, err)

	connected := make(chan error, 1)
	go func() {
		connected <- sa.Connect(context.Background())
	}()

	req := <-b.mux.Requests()
	req.Decline()
	_, err = req.Accept()
	assert.ErrorIs(t, err, ErrInvalidState, "a request is answered once")

	select {
	case err := <-connected:
		assert.ErrorIs(t, err, ErrPeerTerminated)
	case <-time.After(time.Second):
		t.Fatal("connect did not fail after decline")
	}
	assert.Equal(t, Failed, sa.State())
}

func TestAcceptAfterCallerGaveUp(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1), WithConnectTimeout(100*time.Millisecond))
	b := startDevice(t, medium, testutil.DeviceAddr(2))

	sa, err := a.mux.Open(b.addr, testApp)
	require.NoError(t, err)
	err = sa.Connect(context.Background())
	assert.ErrorIs(t, err, nowlink.ErrTimeout)
	assert.Equal(t, Failed, sa.State())

	var req *Request
	select {
	case req = <-b.mux.Requests():
	case <-time.After(time.Second):
		t.Fatal("no connect request")
	}

	// the caller's terminate must land before the late accept
	require.Eventually(t, func() bool {
		b.mux.mutex.Lock()
		defer b.mux.mutex.Unlock()
		return len(b.mux.pending) == 0
	}, time.Second, 5*time.Millisecond)

	sb, err := req.Accept()
	assert.ErrorIs(t, err, ErrPeerTerminated)
	assert.Nil(t, sb)
	_, found := b.mux.Lookup(a.addr, testApp)
	assert.False(t, found)

	// the pair is free for a fresh session
	s, err := b.mux.Open(a.addr, testApp)
	require.NoError(t, err)
	assert.Equal(t, Idle, s.State())
}

func TestDuplicateConnectReacked(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))
	establish(t, a, b)

	tap := medium.Tap(16)
	var codec msg.Codec
	connect, err := codec.Encode(&msg.Connect{App: testApp})
	require.NoError(t, err)
	b.radio.Inject(a.addr, connect)

	deadline := time.After(time.Second)
	for {
		select {
		case f := <-tap:
			p, err := codec.Decode(f.Data)
			require.NoError(t, err)
			if ack, ok := p.(*msg.Accept); ok {
				assert.Equal(t, b.addr, f.Src)
				assert.Equal(t, a.addr, f.Dst)
				assert.Equal(t, testApp, ack.App)
				return
			}
		case <-deadline:
			t.Fatal("duplicate connect was not re-acknowledged")
		}
	}
}

func TestSimultaneousConnect(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))

	sa, err := a.mux.Open(b.addr, testApp)
	require.NoError(t, err)
	sb, err := b.mux.Open(a.addr, testApp)
	require.NoError(t, err)

	errs := make(chan error, 2)
	go func() { errs <- sa.Connect(context.Background()) }()
	go func() { errs <- sb.Connect(context.Background()) }()
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	assert.Equal(t, Active, sa.State())
	assert.Equal(t, Active, sb.State())
}

func TestPartitionFilterRefusesPeers(t *testing.T) {
	f, err := partition.NewFilter(partition.DefaultPrefix, partition.DefaultSpread)
	require.NoError(t, err)

	medium := testutil.NewMedium()
	self := nowlink.MustParseAddr("18:fe:34:00:00:01")
	partner := nowlink.MustParseAddr("18:fe:34:00:00:2e")
	stranger := nowlink.MustParseAddr("18:fe:34:00:00:02")
	a := startDevice(t, medium, self, WithFilter(f))

	_, err = a.mux.Open(stranger, testApp)
	assert.ErrorIs(t, err, ErrNotEligible)

	var codec msg.Codec
	connect, err := codec.Encode(&msg.Connect{App: testApp})
	require.NoError(t, err)
	a.radio.Inject(stranger, connect)
	a.radio.Inject(partner, connect)

	select {
	case req := <-a.mux.Requests():
		assert.Equal(t, partner, req.Peer)
	case <-time.After(time.Second):
		t.Fatal("no request from eligible partner")
	}
}

func TestStopEndsLiveSessions(t *testing.T) {
	medium := testutil.NewMedium()
	a := startDevice(t, medium, testutil.DeviceAddr(1))
	b := startDevice(t, medium, testutil.DeviceAddr(2))
	sa, _ := establish(t, a, b)

	a.stop()
	_, err := recvWithin(t, sa, time.Second)
	assert.ErrorIs(t, err, nowlink.ErrClosed)

	_, ok := <-a.mux.Requests()
	assert.False(t, ok)
	_, err = a.mux.Open(b.addr, testApp+1)
	assert.ErrorIs(t, err, nowlink.ErrClosed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", Active.String())
	assert.True(t, Failed.Terminal())
	assert.False(t, Closing.Terminal())
}

func TestConnectOverLossyMedium(t *testing.T) {
	medium := testutil.NewMedium()
	medium.SetLoss(0.5)
	a := startDevice(t, medium, testutil.DeviceAddr(1), WithConnectTimeout(2*time.Second))
	b := startDevice(t, medium, testutil.DeviceAddr(2))

	sa, err := a.mux.Open(b.addr, testApp)
	require.NoError(t, err)
	connected := make(chan error, 1)
	go func() { connected <- sa.Connect(context.Background()) }()

	var req *Request
	select {
	case req = <-b.mux.Requests():
	case <-time.After(2 * time.Second):
		t.Fatal("no connect got through")
	}
	sb, err := req.Accept()
	require.NoError(t, err)

	// lost acks are recovered by re-acking retransmitted connects
	require.NoError(t, <-connected)
	assert.Equal(t, Active, sa.State())
	assert.Equal(t, Active, sb.State())
}
