// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/internal/testutil"
	"github.com/destiny/nowlink/msg"
)

func runBeacon(t *testing.T, b *Beacon) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func nextPresence(t *testing.T, tap <-chan *nowlink.Frame, within time.Duration) (*nowlink.Frame, *msg.Presence) {
	t.Helper()
	select {
	case f := <-tap:
		var c msg.Codec
		p, err := c.Decode(f.Data)
		require.NoError(t, err)
		presence, ok := p.(*msg.Presence)
		require.True(t, ok, "expected presence, got %T", p)
		return f, presence
	case <-time.After(within):
		t.Fatalf("no presence frame within %v", within)
		return nil, nil
	}
}

func TestBeaconBroadcastsPresence(t *testing.T) {
	medium := testutil.NewMedium()
	radio := medium.Attach(testutil.DeviceAddr(1))
	defer radio.Close()
	tap := medium.Tap(16)

	b, err := NewBeacon(radio, "GhostNet73", WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	runBeacon(t, b)

	for i := 0; i < 2; i++ {
		f, p := nextPresence(t, tap, time.Second)
		assert.Equal(t, nowlink.Broadcast, f.Dst)
		assert.Equal(t, testutil.DeviceAddr(1), f.Src)
		assert.Equal(t, "GhostNet73", p.Nick)
	}

	require.NoError(t, b.SetNick("RetroWolf"))
	deadline := time.Now().Add(time.Second)
	for {
		_, p := nextPresence(t, tap, time.Second)
		if p.Nick == "RetroWolf" {
			break
		}
		require.True(t, time.Now().Before(deadline), "nickname change not advertised")
	}
}

func TestBeaconSuspend(t *testing.T) {
	medium := testutil.NewMedium()
	radio := medium.Attach(testutil.DeviceAddr(1))
	defer radio.Close()
	tap := medium.Tap(64)

	b, err := NewBeacon(radio, "Quiet", WithInterval(5*time.Millisecond))
	require.NoError(t, err)
	b.Suspend(true)
	assert.True(t, b.Suspended())
	runBeacon(t, b)

	select {
	case <-tap:
		t.Fatal("suspended beacon transmitted")
	case <-time.After(50 * time.Millisecond):
	}

	b.Suspend(false)
	nextPresence(t, tap, time.Second)
}

func TestBeaconNickBound(t *testing.T) {
	medium := testutil.NewMedium()
	radio := medium.Attach(testutil.DeviceAddr(1))
	defer radio.Close()

	_, err := NewBeacon(radio, "ThisNickIsWayTooLong")
	assert.True(t, errors.Is(err, nowlink.ErrConfiguration))

	b, err := NewBeacon(radio, "Short")
	require.NoError(t, err)
	assert.Error(t, b.SetNick("ThisNickIsWayTooLong"))
	assert.Equal(t, "Short", b.Nick())
}

func TestBeaconToListenerWithNetworkKey(t *testing.T) {
	keyed, err := msg.NewCodec([]byte("badge-net"))
	require.NoError(t, err)
	foreign, err := msg.NewCodec([]byte("other-net"))
	require.NoError(t, err)

	r := startListener(t, DefaultCapacity, WithCodec(keyed))
	sub := r.listener.Updates()

	outsider := r.medium.Attach(testutil.DeviceAddr(3))
	defer outsider.Close()
	ob, err := NewBeacon(outsider, "Outsider", WithCodec(foreign))
	require.NoError(t, err)
	require.NoError(t, ob.Announce(context.Background()))

	member := r.medium.Attach(testutil.DeviceAddr(2))
	defer member.Close()
	mb, err := NewBeacon(member, "Member", WithCodec(keyed))
	require.NoError(t, err)
	require.NoError(t, mb.Announce(context.Background()))

	ctx, cancel := testutil.TestTimeoutContext(time.Second)
	defer cancel()
	p, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Member", p.Nick)
	assert.Equal(t, 1, r.listener.Cache().Len())
}
