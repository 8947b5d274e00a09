// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package udp

import "syscall"

func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
