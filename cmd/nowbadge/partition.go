// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/partition"
)

type partitionFlags struct {
	spread uint64
	prefix string
}

func (f *partitionFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.spread, "spread", partition.DefaultSpread, "spread factor")
	cmd.Flags().StringVar(&f.prefix, "prefix", "18:fe:34", "manufacturer prefix")
}

func (f *partitionFlags) filter() (*partition.Filter, error) {
	// the prefix parses as the top half of an address
	a, err := nowlink.ParseAddr(f.prefix + ":00:00:00")
	if err != nil {
		return nil, fmt.Errorf("invalid prefix %q: %w", f.prefix, err)
	}
	return partition.NewFilter(a.Prefix(), f.spread)
}

func newEligible() *cobra.Command {
	var flags partitionFlags
	cmd := &cobra.Command{
		Use:   "eligible <addr> <addr>",
		Short: "Report whether two devices may interact",
		Example: `  nowbadge eligible 18:fe:34:00:00:01 18:fe:34:00:00:2e
  nowbadge eligible --spread 7 18:fe:34:00:00:01 18:fe:34:00:00:02`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.filter()
			if err != nil {
				return err
			}
			a, err := nowlink.ParseAddr(args[0])
			if err != nil {
				return err
			}
			b, err := nowlink.ParseAddr(args[1])
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			printEligible(cmd.OutOrStdout(), f, a, b)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printEligible(w io.Writer, f *partition.Filter, a, b nowlink.Addr) {
	fmt.Fprintf(w, "%s  group %d\n", a, f.Group(a))
	fmt.Fprintf(w, "%s  group %d\n", b, f.Group(b))
	fmt.Fprintf(w, "eligible: %t\n", f.Eligible(a, b))
}

func newStats() *cobra.Command {
	var flags partitionFlags
	var devices int
	var seed int64
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how many partners each device has in a random population",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.filter()
			if err != nil {
				return err
			}
			if devices < 1 {
				return fmt.Errorf("--devices must be >= 1, got %d", devices)
			}
			cmd.SilenceUsage = true
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			addrs := partition.RandomPopulation(rand.New(rand.NewSource(seed)), f.Prefix, devices)
			c := partition.Stats(addrs, f)
			fmt.Fprintf(cmd.OutOrStdout(), "%s over %d devices: partners avg %.2f, min %d, max %d\n",
				f, c.Devices, c.Average, c.Min, c.Max)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&devices, "devices", "n", 1000, "population size")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed, time based if zero")
	return cmd
}
