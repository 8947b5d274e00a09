// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nowbadge runs a badge node over a UDP broadcast radio and
// offers tooling around partition tuning and configuration.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func main() {
	executable := filepath.Base(os.Args[0])
	cmd := &cobra.Command{
		Use:   executable,
		Short: "Peer discovery and turn-based sessions over a broadcast radio",
		Args:  cobra.NoArgs,
		// errors are printed below
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newRun(),
		newEligible(),
		newStats(),
		newConfig(),
	)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
