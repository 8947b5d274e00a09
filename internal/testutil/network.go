// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testutil provides testing utilities for nowlink packages.
package testutil

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/destiny/nowlink"
)

var portCounter int64 = 20000

// GetUDPPort returns an available UDP port for radio testing
func GetUDPPort() (int, error) {
	basePort := atomic.AddInt64(&portCounter, 1)

	for i := 0; i < 100; i++ {
		port := int(basePort) + i
		if port > 65535 {
			port = 20000 + (port % 45535)
		}

		if isUDPPortAvailable(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available UDP ports found")
}

// isUDPPortAvailable checks if a UDP port is available
func isUDPPortAvailable(port int) bool {
	addr := fmt.Sprintf(":%d", port)
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// DeviceAddr returns an address in the 18:fe:34 family with the given suffix
func DeviceAddr(suffix uint32) nowlink.Addr {
	return nowlink.Addr{0x18, 0xfe, 0x34, byte(suffix >> 16), byte(suffix >> 8), byte(suffix)}
}
