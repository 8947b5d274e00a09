// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding"
	"time"
)

var _ encoding.TextUnmarshaler = (*Duration)(nil)
var _ encoding.TextMarshaler = Duration{}

// Duration is a time.Duration written as "2s", "500ms" in config files
type Duration struct {
	time.Duration
}

// D wraps d
func D(d time.Duration) Duration {
	return Duration{d}
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d Duration) String() string {
	return d.Duration.String()
}
