// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package udp emulates the broadcast radio over UDP broadcast on a LAN.
// Every datagram carries a small header with the sender and destination
// device addresses; unicast frames are still broadcast on the wire and
// filtered by the receivers, the same way the radio behaves.
package udp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
)

const (
	// DefaultPort is the UDP port devices broadcast on
	DefaultPort = 5670

	// Version of the datagram header
	Version = 1

	// HeaderSize is magic(3) + version(1) + src(6) + dst(6)
	HeaderSize = 16

	// pollInterval bounds how long Recv blocks before re-checking ctx
	pollInterval = 100 * time.Millisecond
)

var magic = []byte("NOW")

// ErrBadHeader is returned for datagrams that are not radio frames
var ErrBadHeader = errors.New("udp: bad frame header")

// Config describes a UDP radio
type Config struct {
	Addr      nowlink.Addr // Device address carried in every frame
	Port      int          // Port to listen on, DefaultPort if zero
	Bind      string       // Local host to listen on, all interfaces if empty
	Broadcast string       // Destination host, 255.255.255.255 if empty
	DestPort  int          // Destination port, Port if zero
}

// Transport is a nowlink.Transport over UDP broadcast
type Transport struct {
	addr nowlink.Addr
	conn *net.UDPConn
	dest *net.UDPAddr
	log  *nowlink.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// Listen opens the UDP socket described by cfg
func Listen(cfg Config, log *nowlink.Logger) (*Transport, error) {
	if log == nil {
		log = nowlink.DevNullLogger
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DestPort == 0 {
		cfg.DestPort = cfg.Port
	}
	host := cfg.Broadcast
	if host == "" {
		host = net.IPv4bcast.String()
	}
	dest, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, fmt.Sprint(cfg.DestPort)))
	if err != nil {
		return nil, nowlink.NewConfigError("radio.broadcast", "%v", err)
	}

	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort(cfg.Bind, fmt.Sprint(cfg.Port)))
	if err != nil {
		return nil, nowlink.TransportError("listen", err)
	}

	t := &Transport{
		addr:   cfg.Addr,
		conn:   pc.(*net.UDPConn),
		dest:   dest,
		log:    log,
		closed: make(chan struct{}),
	}
	log.Debug("udp: %s listening on %s, sending to %s", cfg.Addr, pc.LocalAddr(), dest)
	return t, nil
}

// LocalAddr returns the device address
func (t *Transport) LocalAddr() nowlink.Addr {
	return t.addr
}

// Send broadcasts data addressed to dst
func (t *Transport) Send(ctx context.Context, dst nowlink.Addr, data []byte) error {
	select {
	case <-t.closed:
		return nowlink.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if len(data) > msg.MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", msg.ErrFrameTooLarge, len(data))
	}
	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(deadline)
	} else {
		t.conn.SetWriteDeadline(time.Time{})
	}
	_, err := t.conn.WriteToUDP(encodeHeader(t.addr, dst, data), t.dest)
	return err
}

// Recv returns the next frame from another device addressed to this one
// or to Broadcast. Datagrams that are not frames are skipped.
func (t *Transport) Recv(ctx context.Context) (*nowlink.Frame, error) {
	buffer := make([]byte, HeaderSize+msg.MaxFrameSize)

	for {
		select {
		case <-t.closed:
			return nil, nowlink.ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		t.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, from, err := t.conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			select {
			case <-t.closed:
				return nil, nowlink.ErrClosed
			default:
			}
			return nil, err
		}

		src, dst, payload, err := decodeHeader(buffer[:n])
		if err != nil {
			t.log.Trace("udp: skipping datagram from %s: %v", from, err)
			continue
		}
		if src == t.addr {
			continue
		}
		if !dst.IsBroadcast() && dst != t.addr {
			continue
		}
		return &nowlink.Frame{
			Src:  src,
			Dst:  dst,
			Data: bytes.Clone(payload),
			Time: time.Now(),
		}, nil
	}
}

// Close releases the socket
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
	})
	return err
}

func encodeHeader(src, dst nowlink.Addr, data []byte) []byte {
	out := make([]byte, 0, HeaderSize+len(data))
	out = append(out, magic...)
	out = append(out, Version)
	out = append(out, src[:]...)
	out = append(out, dst[:]...)
	return append(out, data...)
}

func decodeHeader(datagram []byte) (src, dst nowlink.Addr, payload []byte, err error) {
	if len(datagram) < HeaderSize || !bytes.Equal(datagram[:3], magic) {
		return src, dst, nil, ErrBadHeader
	}
	if datagram[3] != Version {
		return src, dst, nil, fmt.Errorf("%w: version %d", ErrBadHeader, datagram[3])
	}
	copy(src[:], datagram[4:10])
	copy(dst[:], datagram[10:16])
	return src, dst, datagram[HeaderSize:], nil
}
