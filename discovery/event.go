// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"context"
	"sync"

	"github.com/destiny/nowlink"
)

// notifier wakes every waiter on each cache refresh. Waiters re-check the
// latest update; intermediate updates may be coalesced.
type notifier struct {
	mutex  sync.Mutex
	ch     chan struct{}
	seq    uint64
	last   Peer
	closed bool
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{})}
}

func (n *notifier) broadcast(p Peer) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.closed {
		return
	}
	n.seq++
	n.last = p
	close(n.ch)
	n.ch = make(chan struct{})
}

func (n *notifier) close() {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
}

// Subscription receives peer updates from a Listener
type Subscription struct {
	n    *notifier
	seen uint64
}

// Next blocks until a peer is refreshed after the previous call (or after
// the subscription was created) and returns it. If several refreshes
// happened meanwhile only the latest is returned. Next returns
// nowlink.ErrClosed once the listener has stopped.
func (s *Subscription) Next(ctx context.Context) (Peer, error) {
	for {
		s.n.mutex.Lock()
		if s.n.seq > s.seen {
			s.seen = s.n.seq
			p := s.n.last
			s.n.mutex.Unlock()
			return p, nil
		}
		if s.n.closed {
			s.n.mutex.Unlock()
			return Peer{}, nowlink.ErrClosed
		}
		wake := s.n.ch
		s.n.mutex.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return Peer{}, ctx.Err()
		}
	}
}
