// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Badge Race Example - Demonstrates sessions and turn arbitration with a
// console game: players alternately add 1, 2 or 3 to a shared total and
// whoever reaches the target wins.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/config"
	"github.com/destiny/nowlink/msg"
	"github.com/destiny/nowlink/node"
	"github.com/destiny/nowlink/session"
	"github.com/destiny/nowlink/turn"
	"github.com/destiny/nowlink/udp"
)

const raceApp msg.AppID = 21

var (
	addr    = flag.String("addr", "18:fe:34:00:00:01", "Device address")
	nick    = flag.String("nick", "", "Nickname (default: generated from the address)")
	port    = flag.Int("port", udp.DefaultPort, "UDP radio port")
	target  = flag.Int("target", 21, "Total that wins the race")
	spread  = flag.Uint64("spread", 180, "Partition spread factor (0 = partition off)")
	verbose = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()

	fmt.Println("=== Badge Race Example ===")
	fmt.Printf("Target: %d\n", *target)

	cfg := config.Default()
	if err := cfg.Node.Address.UnmarshalText([]byte(*addr)); err != nil {
		log.Fatalf("Bad address: %v", err)
	}
	cfg.Node.Nick = *nick
	cfg.Radio.Port = *port
	cfg.Discovery.Needed = 1
	if *spread == 0 {
		cfg.Partition.Disabled = true
	} else {
		cfg.Partition.SpreadFactor = *spread
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	var opts []node.Option
	if *verbose {
		opts = append(opts, node.WithLogger(nowlink.NewLogger(cfg.LogLevel())))
	}
	radio, err := udp.Listen(udp.Config{Addr: cfg.Node.Address, Port: cfg.Radio.Port}, nil)
	if err != nil {
		log.Fatalf("Failed to open radio: %v", err)
	}
	defer radio.Close()

	n, err := node.New(cfg, radio, opts...)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}
	fmt.Printf("Starting node: %s (%s)\n", n.Beacon().Nick(), n.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		if err := n.Run(ctx); err != nil {
			log.Printf("Node stopped: %v", err)
		}
		stop()
	}()

	fmt.Println("Type /help for commands, /quit to exit")
	c := &console{n: n, target: *target, done: make(chan result, 1)}
	c.loop(ctx, readLines())
	fmt.Println("\nShutting down...")
}

func readLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	return lines
}

type result struct {
	res turn.Result
	err error
}

type console struct {
	n       *node.Node
	target  int
	pending *session.Request
	moves   chan msg.Move // non-nil while a game runs
	done    chan result
}

func (c *console) loop(ctx context.Context, lines <-chan string) {
	requests := c.n.Mux().Requests()
	fmt.Print("> ")
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !c.handleInput(ctx, line) {
				return
			}
			fmt.Print("> ")

		case req, ok := <-requests:
			if !ok {
				requests = nil
				continue
			}
			if c.pending != nil || c.moves != nil {
				req.Decline()
				continue
			}
			c.pending = req
			fmt.Printf("\nChallenge from %s, /accept or /decline\n> ", c.nickOf(req))

		case r := <-c.done:
			c.moves = nil
			switch {
			case turn.IsDivergence(r.err):
				fmt.Printf("\nThe peer's claim does not match our game: %v\n> ", r.err)
			case r.err != nil:
				fmt.Printf("\nConnection error: %v\n> ", r.err)
			default:
				fmt.Printf("\nGame over after %d rounds: %s\n> ", r.res.Round, r.res.Outcome)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *console) handleInput(ctx context.Context, input string) bool {
	if input == "" {
		return true
	}
	if !strings.HasPrefix(input, "/") {
		c.move(input)
		return true
	}

	parts := strings.Fields(input)
	switch parts[0] {
	case "/help":
		printHelp()

	case "/quit", "/exit":
		fmt.Println("Goodbye!")
		return false

	case "/peers":
		peers := c.n.Peers().Snapshot()
		fmt.Printf("Known badges (%d), status %s:\n", len(peers), c.n.Status())
		for _, p := range peers {
			fmt.Printf("  %s\n", p)
		}

	case "/nick":
		if len(parts) < 2 {
			fmt.Printf("Current nick: %s\n", c.n.Beacon().Nick())
			break
		}
		nick := config.SanitizeNick(strings.Join(parts[1:], " "))
		if err := c.n.Beacon().SetNick(nick); err != nil {
			fmt.Printf("Failed to change nick: %v\n", err)
			break
		}
		fmt.Printf("Nick changed to: %s\n", nick)

	case "/challenge":
		if c.moves != nil {
			fmt.Println("Already playing")
			break
		}
		fmt.Println("Looking for an opponent...")
		s, err := c.n.Challenge(ctx, raceApp)
		if err != nil {
			fmt.Printf("No game: %v\n", err)
			break
		}
		fmt.Printf("Playing against %s\n", s.Peer())
		c.start(ctx, s, "challenger")

	case "/accept":
		if c.pending == nil {
			fmt.Println("No pending challenge")
			break
		}
		req := c.pending
		c.pending = nil
		s, err := req.Accept()
		if err != nil {
			fmt.Printf("Failed to accept: %v\n", err)
			break
		}
		c.start(ctx, s, "defender")

	case "/decline":
		if c.pending != nil {
			c.pending.Decline()
			c.pending = nil
		}

	default:
		fmt.Printf("Unknown command: %s (type /help for help)\n", parts[0])
	}
	return true
}

func (c *console) nickOf(req *session.Request) string {
	if p, ok := c.n.Peers().Get(req.Peer); ok {
		return p.String()
	}
	return req.Peer.String()
}

func (c *console) start(ctx context.Context, s *session.Session, role string) {
	c.moves = make(chan msg.Move, 1)
	game := &race{role: role, target: c.target}
	moves := c.moves
	go func() {
		res, err := c.n.Play(ctx, s, game, moves, turn.WithObserver(func(ev turn.Event) {
			observe(game, ev)
		}))
		c.done <- result{res, err}
	}()
}

func (c *console) move(input string) {
	if c.moves == nil {
		fmt.Println("Not playing, type /challenge to start a game")
		return
	}
	v, err := strconv.Atoi(input)
	if err != nil || v < 1 || v > 3 {
		fmt.Println("Play 1, 2 or 3")
		return
	}
	select {
	case c.moves <- msg.Move(v):
	default:
		fmt.Println("Wait for your turn")
	}
}

func observe(g *race, ev turn.Event) {
	switch ev.Kind {
	case turn.EventTurnStarted:
		fmt.Printf("\n[round %d] Total %d/%d, your move (1-3)\n> ", ev.Round, g.total, g.target)
	case turn.EventPeerMoved:
		fmt.Printf("\nOpponent played %s\n", ev.Move)
	case turn.EventInitiativeLost:
		fmt.Printf("\nOpponent moves first\n")
	case turn.EventForfeit:
		fmt.Printf("\nToo slow, turn forfeited\n")
	}
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  /help       - Show this help")
	fmt.Println("  /quit       - Exit")
	fmt.Println("  /peers      - List known badges")
	fmt.Println("  /nick [n]   - Show/set nickname")
	fmt.Println("  /challenge  - Challenge a random nearby badge")
	fmt.Println("  /accept     - Accept a pending challenge")
	fmt.Println("  /decline    - Decline a pending challenge")
	fmt.Println()
	fmt.Println("During a game type 1, 2 or 3 to add to the total.")
}

// race is the replicated game state
type race struct {
	role    string
	target  int
	total   int
	outcome turn.Outcome
}

func (r *race) Role() string { return r.role }

func (r *race) Reset(string) {
	r.total = 0
	r.outcome = turn.None
}

func (r *race) ApplyLocal(m msg.Move) error {
	if m.IsNone() {
		return nil
	}
	if m < 1 || m > 3 {
		return errors.New("play 1, 2 or 3")
	}
	r.total += int(m)
	if r.total >= r.target {
		r.outcome = turn.LocalWin
	}
	return nil
}

func (r *race) ApplyRemote(m msg.Move) {
	if m.IsNone() {
		return
	}
	r.total += int(m)
	if r.total >= r.target {
		r.outcome = turn.PeerWin
	}
}

func (r *race) Outcome() turn.Outcome { return r.outcome }
