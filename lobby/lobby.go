// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lobby picks opponents among recently discovered peers.
//
// A Lobby holds at most one opponent at a time. Holding ends when the
// caller releases the opponent or when the hold period runs out; a
// cooldown follows, during which no new opponent can be acquired. A
// released opponent is also kept out of the candidate set for a while
// so the same pair does not meet twice in a row.
package lobby

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/discovery"
)

// Defaults
const (
	DefaultHold         = 60 * time.Second
	DefaultCooldown     = 30 * time.Second
	DefaultPeerCooldown = 5 * time.Minute
	DefaultStaleAfter   = 30 * time.Second
	DefaultNeeded       = 10
)

var (
	// ErrCooldown is returned by Acquire while an opponent is held or the
	// lobby is cooling down.
	ErrCooldown = errors.New("lobby: cooldown")

	// ErrNoOpponent is returned by Acquire when no candidate is available
	ErrNoOpponent = errors.New("lobby: no opponent available")
)

// CooldownError tells how long Acquire will keep failing
type CooldownError struct {
	Holding   bool // An opponent is still held
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	if e.Holding {
		return fmt.Sprintf("%s: opponent still held for %s", ErrCooldown, e.Remaining.Round(time.Second))
	}
	return fmt.Sprintf("%s: %s left", ErrCooldown, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldown
}

// Status reports discovery progress
type Status struct {
	Found  int // Distinct peers currently cached
	Needed int // Peers required before the node is ready
}

// Ready reports whether enough peers have been found
func (s Status) Ready() bool {
	return s.Found >= s.Needed
}

func (s Status) String() string {
	return fmt.Sprintf("%d/%d", s.Found, s.Needed)
}

// Lobby selects opponents from a peer cache
type Lobby struct {
	mutex    sync.Mutex
	peers    *discovery.PeerCache
	self     nowlink.Addr
	opts     options
	recent   *cache.Cache
	rng      *rand.Rand
	opponent nowlink.Addr
	heldAt   time.Time
	coolAt   time.Time // end of the current cooldown
}

// New creates a lobby choosing among the peers of cache. self is never
// chosen.
func New(peers *discovery.PeerCache, self nowlink.Addr, opts ...Option) *Lobby {
	o := defaultOptions()
	o.apply(opts)
	return &Lobby{
		peers: peers,
		self:  self,
		opts:  o,
		// entries hold the end of their cooldown on the lobby clock and
		// are purged in Acquire
		recent: cache.New(cache.NoExpiration, 0),
		rng:    rand.New(rand.NewSource(o.seed)),
	}
}

// Acquire picks a random fresh candidate and holds it as the opponent
func (l *Lobby) Acquire() (nowlink.Addr, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.opts.now()
	l.expire(now)
	if !l.opponent.IsZero() {
		return nowlink.NullAddr, &CooldownError{Holding: true, Remaining: l.heldAt.Add(l.opts.hold).Sub(now)}
	}
	if now.Before(l.coolAt) {
		return nowlink.NullAddr, &CooldownError{Remaining: l.coolAt.Sub(now)}
	}

	l.recent.DeleteExpired()
	candidates := l.candidates(now)
	if len(candidates) == 0 {
		return nowlink.NullAddr, ErrNoOpponent
	}
	pick := candidates[l.rng.Intn(len(candidates))]
	l.opponent = pick.Addr
	l.heldAt = now
	l.opts.log.Debug("acquired opponent %s", pick)
	return pick.Addr, nil
}

// Release ends the current hold and starts the cooldown. It is a no-op
// without an opponent.
func (l *Lobby) Release() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.release(l.opts.now())
}

// Opponent returns the held opponent
func (l *Lobby) Opponent() (nowlink.Addr, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.expire(l.opts.now())
	return l.opponent, !l.opponent.IsZero()
}

// Candidates returns the peers Acquire currently chooses among
func (l *Lobby) Candidates() []discovery.Peer {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.candidates(l.opts.now())
}

// Status reports how many peers have been found
func (l *Lobby) Status() Status {
	return Status{Found: l.peers.Len(), Needed: l.opts.needed}
}

// RecentlyPlayed reports whether addr is in its per-peer cooldown
func (l *Lobby) RecentlyPlayed(addr nowlink.Addr) bool {
	return l.cooling(addr, l.opts.now())
}

func (l *Lobby) cooling(addr nowlink.Addr, now time.Time) bool {
	v, found := l.recent.Get(addr.String())
	if !found {
		return false
	}
	return now.Before(v.(time.Time))
}

func (l *Lobby) candidates(now time.Time) []discovery.Peer {
	fresh := l.peers.Fresh(l.opts.staleAfter, now)
	out := fresh[:0]
	for _, p := range fresh {
		if p.Addr == l.self || p.Addr == l.opponent {
			continue
		}
		if l.cooling(p.Addr, now) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// expire releases an opponent whose hold ran out, dating the cooldown
// from the end of the hold.
func (l *Lobby) expire(now time.Time) {
	if l.opponent.IsZero() {
		return
	}
	if end := l.heldAt.Add(l.opts.hold); !now.Before(end) {
		l.opts.log.Debug("hold on %s expired", l.opponent)
		l.release(end)
	}
}

func (l *Lobby) release(at time.Time) {
	if l.opponent.IsZero() {
		return
	}
	if l.opts.peerCooldown > 0 {
		l.recent.Set(l.opponent.String(), at.Add(l.opts.peerCooldown), l.opts.peerCooldown)
	}
	l.opponent = nowlink.NullAddr
	l.coolAt = at.Add(l.opts.cooldown)
}
