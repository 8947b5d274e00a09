// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Badge Scan Example - Demonstrates presence discovery and the peer cache
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/config"
	"github.com/destiny/nowlink/discovery"
	"github.com/destiny/nowlink/node"
	"github.com/destiny/nowlink/udp"
)

var (
	addr     = flag.String("addr", "18:fe:34:00:00:01", "Device address")
	nick     = flag.String("nick", "", "Nickname (default: generated from the address)")
	port     = flag.Int("port", udp.DefaultPort, "UDP radio port")
	interval = flag.Duration("interval", 2*time.Second, "Beacon interval")
	spread   = flag.Uint64("spread", 180, "Partition spread factor (0 = partition off)")
	silent   = flag.Bool("silent", false, "Silent mode (no beacon broadcasting)")
	monitor  = flag.Bool("monitor", false, "Monitor mode (show periodic statistics)")
)

func main() {
	flag.Parse()

	fmt.Println("=== Badge Scan Example ===")

	cfg := config.Default()
	if err := cfg.Node.Address.UnmarshalText([]byte(*addr)); err != nil {
		log.Fatalf("Bad address: %v", err)
	}
	cfg.Node.Nick = *nick
	cfg.Radio.Port = *port
	cfg.Beacon.Period = config.D(*interval)
	if *spread == 0 {
		cfg.Partition.Disabled = true
	} else {
		cfg.Partition.SpreadFactor = *spread
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	radio, err := udp.Listen(udp.Config{Addr: cfg.Node.Address, Port: cfg.Radio.Port}, nil)
	if err != nil {
		log.Fatalf("Failed to open radio: %v", err)
	}
	defer radio.Close()

	n, err := node.New(cfg, radio)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}
	if *silent {
		n.Beacon().Suspend(true)
		fmt.Println("Starting in SILENT mode - listening only")
	} else {
		fmt.Printf("Starting node with beacon every %v\n", *interval)
	}
	fmt.Printf("Node: %s (%s)\n", n.Beacon().Nick(), n.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := n.Run(ctx); err != nil {
			log.Printf("Node stopped: %v", err)
		}
	}()

	if *monitor {
		go monitorStatistics(ctx, n, cfg.Discovery.StaleAfter.Duration)
	}

	fmt.Println("Monitoring the radio for badges...")
	fmt.Println("Press Ctrl+C to exit")

	firstSeen := make(map[nowlink.Addr]time.Time)
	updates := n.Listener().Updates()
	for {
		p, err := updates.Next(ctx)
		if err != nil {
			break
		}
		handlePresence(p, firstSeen, n.Peers())
	}

	<-done
	fmt.Println("\nShutting down...")
	printFinalSummary(n.Peers(), firstSeen)
}

func handlePresence(p discovery.Peer, firstSeen map[nowlink.Addr]time.Time, peers *discovery.PeerCache) {
	timestamp := p.LastSeen.Format("15:04:05.000")
	if _, known := firstSeen[p.Addr]; !known {
		firstSeen[p.Addr] = p.LastSeen
		fmt.Printf("[%s] NEW:   %s (%s) at %d dBm\n", timestamp, p.Nick, p.Addr, p.RSSI)
		if peers.Len() == peers.Capacity() {
			fmt.Printf("         cache full, oldest badge pushed out\n")
		}
		return
	}
	fmt.Printf("[%s] SEEN:  %s (%s) at %d dBm\n", timestamp, p.Nick, p.Addr, p.RSSI)
}

func monitorStatistics(ctx context.Context, n *node.Node, staleAfter time.Duration) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		now := time.Now()
		fresh := n.Peers().Fresh(staleAfter, now)
		fmt.Println("\n=== STATISTICS ===")
		fmt.Printf("Badges: %d fresh, %d cached, status %s\n", len(fresh), n.Peers().Len(), n.Status())
		if latest, ok := n.Peers().Latest(); ok {
			fmt.Printf("Latest: %s, %v ago\n", latest, now.Sub(latest.LastSeen).Round(time.Millisecond))
		}
		fmt.Println("==================")
	}
}

func printFinalSummary(peers *discovery.PeerCache, firstSeen map[nowlink.Addr]time.Time) {
	fmt.Println("\n=== FINAL SUMMARY ===")
	fmt.Printf("Total badges discovered: %d\n", len(firstSeen))

	snapshot := peers.Snapshot()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Nick < snapshot[j].Nick })
	if len(snapshot) > 0 {
		fmt.Println("\nStill cached:")
		for _, p := range snapshot {
			fmt.Printf("  %s: heard for %v\n", p, p.LastSeen.Sub(firstSeen[p.Addr]).Round(time.Millisecond))
		}
	}
	fmt.Println("=====================")
}
