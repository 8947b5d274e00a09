// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/partition"
)

func TestSampleDecodes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Sample(&buf))

	cfg, err := Decode(buf.Bytes())
	require.NoError(t, err)

	def := Default()
	def.Node.Address = nowlink.MustParseAddr("18:fe:34:00:00:01")
	assert.Equal(t, def, cfg)
}

func TestDefaults(t *testing.T) {
	cfg, err := Decode([]byte(`
[node]
address = "18:fe:34:aa:bb:cc"
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultChannel, cfg.Radio.Channel)
	assert.Equal(t, DefaultPort, cfg.Radio.Port)
	assert.Equal(t, 2*time.Second, cfg.Beacon.Period.Duration)
	assert.Equal(t, uint64(partition.DefaultSpread), cfg.Partition.SpreadFactor)
	assert.Equal(t, DefaultCapacity, cfg.Discovery.Capacity)
	assert.Equal(t, 5*time.Second, cfg.Session.ConnectTimeout.Duration)
	assert.Equal(t, 9*time.Second, cfg.Turn.WaitTimeout.Duration)
	assert.Equal(t, 60*time.Second, cfg.Lobby.Hold.Duration)
	assert.Equal(t, nowlink.LogLevelInfo, cfg.LogLevel())

	f, err := cfg.Filter()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, partition.DefaultPrefix, f.Prefix)
}

func TestOverrides(t *testing.T) {
	cfg, err := Decode([]byte(`
[node]
address = "18-fe-34-00-00-2e"
nick = "Zoë Danger"
network_key = "00112233"

[beacon]
period = "250ms"

[partition]
spread_factor = 7

[turn]
timeout = "2s"
wait_timeout = "3s"

[log]
level = "debug"
`))
	require.NoError(t, err)

	assert.Equal(t, nowlink.MustParseAddr("18:fe:34:00:00:2e"), cfg.Node.Address)
	assert.Equal(t, 250*time.Millisecond, cfg.Beacon.Period.Duration)
	assert.Equal(t, "Zoe_Danger", cfg.Nick())
	assert.Equal(t, nowlink.LogLevelDebug, cfg.LogLevel())

	key, err := cfg.Key()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33}, key)

	codec, err := cfg.Codec()
	require.NoError(t, err)
	assert.True(t, codec.Authenticated())

	f, err := cfg.Filter()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), f.Spread)
}

func TestDisabledPartition(t *testing.T) {
	cfg, err := Decode([]byte(`
[node]
address = "18:fe:34:00:00:01"
[partition]
disabled = true
`))
	require.NoError(t, err)
	f, err := cfg.Filter()
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg, err := Decode([]byte(`
[node]
network_key = "zz"
[radio]
channel = 15
[partition]
prefix = "18:fe"
[turn]
timeout = "10s"
wait_timeout = "9s"
[log]
level = "loud"
`))
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, errors.Is(err, nowlink.ErrConfiguration))

	for _, field := range []string{
		"node.address", "node.network_key", "radio.channel",
		"partition.prefix", "turn.wait_timeout", "log.level",
	} {
		assert.Contains(t, err.Error(), field)
	}

	var cfgErr *nowlink.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "node.address", cfgErr.Field)
}

func TestUnknownFieldRejected(t *testing.T) {
	_, err := Decode([]byte(`
[node]
address = "18:fe:34:00:00:01"
adress = "typo"
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, nowlink.ErrConfiguration))
}

func TestBadDuration(t *testing.T) {
	_, err := Decode([]byte(`
[node]
address = "18:fe:34:00:00:01"
[beacon]
period = "soon"
`))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	require.NoError(t, os.WriteFile(path, []byte("[node]\naddress = \"18:fe:34:00:00:05\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, nowlink.MustParseAddr("18:fe:34:00:00:05"), cfg.Node.Address)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	text, err := D(1500 * time.Millisecond).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", string(text))
	assert.Error(t, d.UnmarshalText([]byte("ten")))
}
