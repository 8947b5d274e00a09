// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"sync"
	"time"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

// Request is an inbound connect from a peer with no session for the app.
// Exactly one of Accept or Decline takes effect.
type Request struct {
	Peer nowlink.Addr
	App  msg.AppID
	Time time.Time

	mux  *Mux
	once sync.Once
}

// Accept acknowledges the peer and returns an Active session
func (r *Request) Accept() (*Session, error) {
	var (
		s   *Session
		err = ErrInvalidState
	)
	r.once.Do(func() {
		s, err = r.mux.accept(r)
	})
	return s, err
}

// Decline refuses the request; the peer's connect fails promptly
func (r *Request) Decline() {
	r.once.Do(func() {
		r.mux.decline(r)
	})
}
