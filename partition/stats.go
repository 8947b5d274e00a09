// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partition

import (
	"math/rand"

	"github.com/destiny/nowlink"
)

// Connectivity summarizes how many eligible partners each device in a
// population has, counting the device itself.
type Connectivity struct {
	Devices int
	Average float64
	Min     int
	Max     int
}

// Stats computes the connectivity of addrs under f. It is quadratic in
// the population size and meant for offline tuning of the spread factor.
func Stats(addrs []nowlink.Addr, f *Filter) Connectivity {
	c := Connectivity{Devices: len(addrs)}
	if len(addrs) == 0 {
		return c
	}

	total := 0
	for i, rx := range addrs {
		matches := 0
		for _, tx := range addrs {
			if f.Eligible(tx, rx) {
				matches++
			}
		}
		total += matches
		if i == 0 || matches < c.Min {
			c.Min = matches
		}
		if matches > c.Max {
			c.Max = matches
		}
	}
	c.Average = float64(total) / float64(len(addrs))
	return c
}

// RandomPopulation generates n addresses carrying prefix, drawn from rng
func RandomPopulation(rng *rand.Rand, prefix [3]byte, n int) []nowlink.Addr {
	addrs := make([]nowlink.Addr, n)
	for i := range addrs {
		a := nowlink.Addr{prefix[0], prefix[1], prefix[2]}
		a[3] = byte(rng.Intn(256))
		a[4] = byte(rng.Intn(256))
		a[5] = byte(rng.Intn(256))
		addrs[i] = a
	}
	return addrs
}
