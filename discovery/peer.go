// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/destiny/nowlink"
)

// DefaultCapacity is the number of peers remembered by default
const DefaultCapacity = 10

// Peer is a recently heard device
type Peer struct {
	Addr     nowlink.Addr // Hardware address, the cache key
	Nick     string       // Advertised nickname
	RSSI     int          // Signal strength of the last frame
	LastSeen time.Time    // When the last frame arrived
}

func (p Peer) String() string {
	return fmt.Sprintf("%s(%s, %ddBm)", p.Nick, p.Addr, p.RSSI)
}

// Stale reports whether p has not been heard from within maxAge of now
func Stale(p Peer, maxAge time.Duration, now time.Time) bool {
	return now.Sub(p.LastSeen) > maxAge
}

// PeerCache is a bounded, most-recent-first set of peers. Capacity
// pressure is the only eviction; staleness is left to readers.
type PeerCache struct {
	mutex    sync.RWMutex
	lru      *simplelru.LRU[nowlink.Addr, *Peer]
	capacity int
	metrics  *nowlink.Metrics
}

// NewPeerCache creates a cache holding at most capacity peers
func NewPeerCache(capacity int, metrics *nowlink.Metrics) (*PeerCache, error) {
	if capacity < 1 {
		return nil, nowlink.NewConfigError("discovery.capacity", "must be >= 1, got %d", capacity)
	}
	c := &PeerCache{capacity: capacity, metrics: metrics}
	lru, err := simplelru.NewLRU[nowlink.Addr, *Peer](capacity, func(nowlink.Addr, *Peer) {
		c.metrics.PeerEvicted()
	})
	if err != nil {
		return nil, err
	}
	c.lru = lru
	return c, nil
}

// Refresh inserts p or replaces the existing entry for p.Addr, moving it
// to the front. It reports whether the oldest peer was evicted.
func (c *PeerCache) Refresh(p Peer) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	evicted := c.lru.Add(p.Addr, &p)
	c.metrics.PeerCount(c.lru.Len())
	return evicted
}

// Touch updates the signal strength and last-seen time of a cached peer
// in place, without changing its position. It reports whether the peer
// was cached.
func (c *PeerCache) Touch(addr nowlink.Addr, rssi int, t time.Time) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	p, ok := c.lru.Peek(addr)
	if !ok {
		return false
	}
	p.RSSI = rssi
	p.LastSeen = t
	return true
}

// Get returns a copy of the cached peer
func (c *PeerCache) Get(addr nowlink.Addr) (Peer, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	p, ok := c.lru.Peek(addr)
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Len returns the number of cached peers
func (c *PeerCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lru.Len()
}

// Capacity returns the maximum number of cached peers
func (c *PeerCache) Capacity() int {
	return c.capacity
}

// Snapshot returns copies of all peers, most recently refreshed first
func (c *PeerCache) Snapshot() []Peer {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	keys := c.lru.Keys()
	peers := make([]Peer, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if p, ok := c.lru.Peek(keys[i]); ok {
			peers = append(peers, *p)
		}
	}
	return peers
}

// Latest returns the most recently refreshed peer
func (c *PeerCache) Latest() (Peer, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	keys := c.lru.Keys()
	if len(keys) == 0 {
		return Peer{}, false
	}
	p, _ := c.lru.Peek(keys[len(keys)-1])
	return *p, true
}

// IsLatest reports whether addr is the most recently refreshed peer
func (c *PeerCache) IsLatest(addr nowlink.Addr) bool {
	p, ok := c.Latest()
	return ok && p.Addr == addr
}

// Fresh returns the peers heard from within maxAge of now, most recent
// first
func (c *PeerCache) Fresh(maxAge time.Duration, now time.Time) []Peer {
	all := c.Snapshot()
	fresh := all[:0]
	for _, p := range all {
		if !Stale(p, maxAge, now) {
			fresh = append(fresh, p)
		}
	}
	return fresh
}
