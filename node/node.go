// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package node assembles a complete device: presence beacon, discovery
// listener, session mux and opponent lobby over one radio transport.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/config"
	"github.com/destiny/nowlink/discovery"
	"github.com/destiny/nowlink/lobby"
	"github.com/destiny/nowlink/msg"
	"github.com/destiny/nowlink/session"
	"github.com/destiny/nowlink/turn"
)

// ErrRunning is returned by Run on a node that is already running
var ErrRunning = errors.New("node: already running")

// Node is one device on the radio medium
type Node struct {
	cfg     *config.Config
	tr      nowlink.Transport
	log     *nowlink.Logger
	metrics *nowlink.Metrics

	hub      *nowlink.Hub
	peers    *discovery.PeerCache
	beacon   *discovery.Beacon
	listener *discovery.Listener
	mux      *session.Mux
	lobby    *lobby.Lobby

	running atomic.Bool
}

// Option configures a Node
type Option func(n *Node)

// WithLogger sets the logger shared by all components
func WithLogger(l *nowlink.Logger) Option {
	return func(n *Node) {
		if l != nil {
			n.log = l
		}
	}
}

// WithMetrics sets the metrics shared by all components
func WithMetrics(m *nowlink.Metrics) Option {
	return func(n *Node) {
		n.metrics = m
	}
}

// New builds a node over tr from a validated configuration. The node
// address is the transport's.
func New(cfg *config.Config, tr nowlink.Transport, opts ...Option) (*Node, error) {
	n := &Node{
		cfg: cfg,
		tr:  tr,
		log: nowlink.DevNullLogger,
	}
	for _, opt := range opts {
		opt(n)
	}

	filter, err := cfg.Filter()
	if err != nil {
		return nil, err
	}
	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}
	self := tr.LocalAddr()
	if self != cfg.Node.Address {
		n.log.Warn("node: transport address %s differs from configured %s", self, cfg.Node.Address)
	}

	n.hub = nowlink.NewHub(tr, nowlink.WithHubLogger(n.log.Named("hub")), nowlink.WithHubMetrics(n.metrics))

	n.peers, err = discovery.NewPeerCache(cfg.Discovery.Capacity, n.metrics)
	if err != nil {
		return nil, err
	}

	nick := config.ResolveNick(cfg.Node.Nick, self)
	n.beacon, err = discovery.NewBeacon(n.hub, nick,
		discovery.WithLogger(n.log.Named("beacon")),
		discovery.WithMetrics(n.metrics),
		discovery.WithCodec(codec),
		discovery.WithInterval(cfg.Beacon.Period.Duration),
	)
	if err != nil {
		return nil, err
	}

	n.listener = discovery.NewListener(n.hub, n.peers,
		discovery.WithLogger(n.log.Named("discovery")),
		discovery.WithMetrics(n.metrics),
		discovery.WithCodec(codec),
		discovery.WithFilter(filter),
	)

	n.mux = session.NewMux(n.hub,
		session.WithLogger(n.log.Named("session")),
		session.WithMetrics(n.metrics),
		session.WithCodec(codec),
		session.WithFilter(filter),
		session.WithConnectTimeout(cfg.Session.ConnectTimeout.Duration),
		session.WithRetryInterval(cfg.Session.RetryInterval.Duration),
	)

	n.lobby = lobby.New(n.peers, self,
		lobby.WithLogger(n.log.Named("lobby")),
		lobby.WithHold(cfg.Lobby.Hold.Duration),
		lobby.WithCooldown(cfg.Lobby.Cooldown.Duration),
		lobby.WithPeerCooldown(cfg.Lobby.PeerCooldown.Duration),
		lobby.WithStaleAfter(cfg.Discovery.StaleAfter.Duration),
		lobby.WithNeeded(cfg.Discovery.Needed),
	)
	return n, nil
}

// Addr returns the device address
func (n *Node) Addr() nowlink.Addr { return n.tr.LocalAddr() }

// Peers returns the peer cache
func (n *Node) Peers() *discovery.PeerCache { return n.peers }

// Beacon returns the presence broadcaster
func (n *Node) Beacon() *discovery.Beacon { return n.beacon }

// Listener returns the discovery listener
func (n *Node) Listener() *discovery.Listener { return n.listener }

// Mux returns the session mux
func (n *Node) Mux() *session.Mux { return n.mux }

// Lobby returns the opponent lobby
func (n *Node) Lobby() *lobby.Lobby { return n.lobby }

// Status reports discovery progress
func (n *Node) Status() lobby.Status { return n.lobby.Status() }

// Run runs every component until ctx is done or the transport closes.
// The transport is not closed.
func (n *Node) Run(ctx context.Context) error {
	if !n.running.CompareAndSwap(false, true) {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.log.Info("node: %s (%s) up, %d peers needed", n.Addr(), n.beacon.Nick(), n.cfg.Discovery.Needed)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// listener and mux stop once the hub closes their subscriptions;
		// the beacon needs the cancel
		defer cancel()
		return n.hub.Run(ctx)
	})
	g.Go(func() error { return n.listener.Run(ctx) })
	g.Go(func() error { return n.mux.Run(ctx) })
	g.Go(func() error { return n.beacon.Run(ctx) })

	err := g.Wait()
	n.log.Info("node: %s down", n.Addr())
	return err
}

// Challenge acquires an opponent from the lobby and connects to it. The
// lobby hold is released if the connect fails.
func (n *Node) Challenge(ctx context.Context, app msg.AppID) (*session.Session, error) {
	peer, err := n.lobby.Acquire()
	if err != nil {
		return nil, err
	}
	s, err := n.mux.Open(peer, app)
	if err != nil {
		n.lobby.Release()
		return nil, err
	}
	if err := s.Connect(ctx); err != nil {
		n.lobby.Release()
		return nil, fmt.Errorf("node: challenging %s: %w", peer, err)
	}
	n.log.Debug("node: challenged %s on app %d", peer, app)
	return s, nil
}

// Play runs a match on an Active session with the configured turn
// timing, then closes the session. A lobby hold on the peer is released.
func (n *Node) Play(ctx context.Context, s *session.Session, replica turn.Replica, local <-chan msg.Move, opts ...turn.Option) (turn.Result, error) {
	base := []turn.Option{
		turn.WithLogger(n.log.Named("turn")),
		turn.WithTurnTimeout(n.cfg.Turn.Timeout.Duration),
		turn.WithWaitTimeout(n.cfg.Turn.WaitTimeout.Duration),
		turn.WithDecay(n.cfg.Turn.Decay.Duration),
		turn.WithMinTimeout(n.cfg.Turn.MinTimeout.Duration),
	}
	arb := turn.NewArbiter(s, replica, append(base, opts...)...)
	defer arb.Close()

	res, err := arb.PlayMatch(ctx, local, n.cfg.Turn.MaxRounds)
	if err == nil {
		// both sides reach the final outcome, so no notice is sent; a
		// Terminate racing the peer's last End would cut its round short
		s.Terminate(false)
	}
	if held, ok := n.lobby.Opponent(); ok && held == s.Peer() {
		n.lobby.Release()
	}
	if err != nil {
		return res, fmt.Errorf("node: match with %s: %w", s.Peer(), err)
	}
	n.log.Info("node: match with %s: %s after %d rounds", s.Peer(), res.Outcome, res.Round)
	return res, nil
}
