// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads and validates the static configuration of a node.
//
// Configuration is a TOML file. Every section has defaults, so an empty
// file is a valid configuration once the node address is known.
package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/msg"
	"github.com/destiny/nowlink/partition"
)

// Defaults
const (
	DefaultChannel       = 1
	DefaultPort          = 5670
	DefaultBeaconPeriod  = 2 * time.Second
	DefaultCapacity      = 10
	DefaultStaleAfter    = 30 * time.Second
	DefaultNeeded        = 10
	DefaultConnect       = 5 * time.Second
	DefaultRetry         = 500 * time.Millisecond
	DefaultTurnTimeout   = 5 * time.Second
	DefaultWaitTimeout   = 9 * time.Second
	DefaultDecay         = 500 * time.Millisecond
	DefaultMinTimeout    = time.Second
	DefaultMaxRounds     = 5
	DefaultHold          = 60 * time.Second
	DefaultCooldown      = 30 * time.Second
	DefaultPeerCooldown  = 5 * time.Minute
	DefaultLogLevel      = "info"
	DefaultPrefixLiteral = "18:fe:34"
)

// Config is the root configuration
type Config struct {
	Node      Node      `toml:"node"`
	Radio     Radio     `toml:"radio"`
	Beacon    Beacon    `toml:"beacon"`
	Partition Partition `toml:"partition"`
	Discovery Discovery `toml:"discovery"`
	Session   Session   `toml:"session"`
	Turn      Turn      `toml:"turn"`
	Lobby     Lobby     `toml:"lobby"`
	Log       Log       `toml:"log"`
	Metrics   Metrics   `toml:"metrics"`
}

// Node identifies the local device
type Node struct {
	// Address is the device hardware address. Required.
	Address nowlink.Addr `toml:"address"`
	// Nick is the advertised nickname. Short or empty nicknames are
	// replaced by one generated from the address.
	Nick string `toml:"nick"`
	// NetworkKey is a hex encoded shared key. Empty disables frame
	// authentication.
	NetworkKey string `toml:"network_key"`
}

type Radio struct {
	Channel int `toml:"channel"`
	// Port is the UDP port of the broadcast radio
	Port int `toml:"port"`
	// Broadcast is the IPv4 broadcast address frames are sent to
	Broadcast string `toml:"broadcast"`
	// Bind is the local IPv4 address to listen on
	Bind string `toml:"bind"`
}

type Beacon struct {
	Period Duration `toml:"period"`
}

type Partition struct {
	// Disabled turns the eligibility filter off; every peer is eligible.
	Disabled     bool   `toml:"disabled"`
	Prefix       string `toml:"prefix"`
	SpreadFactor uint64 `toml:"spread_factor"`
}

type Discovery struct {
	Capacity   int      `toml:"capacity"`
	StaleAfter Duration `toml:"stale_after"`
	// Needed is the number of distinct peers seen before the node
	// reports itself ready.
	Needed int `toml:"needed"`
}

type Session struct {
	ConnectTimeout Duration `toml:"connect_timeout"`
	RetryInterval  Duration `toml:"retry_interval"`
}

type Turn struct {
	Timeout     Duration `toml:"timeout"`
	WaitTimeout Duration `toml:"wait_timeout"`
	Decay       Duration `toml:"decay"`
	MinTimeout  Duration `toml:"min_timeout"`
	MaxRounds   int      `toml:"max_rounds"`
}

type Lobby struct {
	Hold         Duration `toml:"hold"`
	Cooldown     Duration `toml:"cooldown"`
	PeerCooldown Duration `toml:"peer_cooldown"`
}

type Log struct {
	Level string `toml:"level"`
}

type Metrics struct {
	// Listen is the address of the Prometheus HTTP endpoint. Empty
	// disables the endpoint.
	Listen string `toml:"listen"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.InitDefaults()
	return cfg
}

// InitDefaults fills every zero field with its default
func (cfg *Config) InitDefaults() {
	if cfg.Radio.Channel == 0 {
		cfg.Radio.Channel = DefaultChannel
	}
	if cfg.Radio.Port == 0 {
		cfg.Radio.Port = DefaultPort
	}
	if cfg.Radio.Broadcast == "" {
		cfg.Radio.Broadcast = "255.255.255.255"
	}
	if cfg.Radio.Bind == "" {
		cfg.Radio.Bind = "0.0.0.0"
	}
	initDuration(&cfg.Beacon.Period, DefaultBeaconPeriod)
	if cfg.Partition.Prefix == "" {
		cfg.Partition.Prefix = DefaultPrefixLiteral
	}
	if cfg.Partition.SpreadFactor == 0 {
		cfg.Partition.SpreadFactor = partition.DefaultSpread
	}
	if cfg.Discovery.Capacity == 0 {
		cfg.Discovery.Capacity = DefaultCapacity
	}
	initDuration(&cfg.Discovery.StaleAfter, DefaultStaleAfter)
	if cfg.Discovery.Needed == 0 {
		cfg.Discovery.Needed = DefaultNeeded
	}
	initDuration(&cfg.Session.ConnectTimeout, DefaultConnect)
	initDuration(&cfg.Session.RetryInterval, DefaultRetry)
	initDuration(&cfg.Turn.Timeout, DefaultTurnTimeout)
	initDuration(&cfg.Turn.WaitTimeout, DefaultWaitTimeout)
	initDuration(&cfg.Turn.Decay, DefaultDecay)
	initDuration(&cfg.Turn.MinTimeout, DefaultMinTimeout)
	if cfg.Turn.MaxRounds == 0 {
		cfg.Turn.MaxRounds = DefaultMaxRounds
	}
	initDuration(&cfg.Lobby.Hold, DefaultHold)
	initDuration(&cfg.Lobby.Cooldown, DefaultCooldown)
	initDuration(&cfg.Lobby.PeerCooldown, DefaultPeerCooldown)
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func initDuration(d *Duration, def time.Duration) {
	if d.Duration == 0 {
		d.Duration = def
	}
}

// Validate checks every section and returns all problems found, joined.
// Each problem is a *nowlink.ConfigError.
func (cfg *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, nowlink.NewConfigError(field, format, args...))
	}

	if cfg.Node.Address.IsZero() || cfg.Node.Address.IsBroadcast() {
		add("node.address", "must be a unicast device address, got %s", cfg.Node.Address)
	}
	if _, err := cfg.Key(); err != nil {
		add("node.network_key", "%v", err)
	}
	if cfg.Radio.Channel < 1 || cfg.Radio.Channel > 14 {
		add("radio.channel", "must be in [1,14], got %d", cfg.Radio.Channel)
	}
	if cfg.Radio.Port < 1 || cfg.Radio.Port > 65535 {
		add("radio.port", "must be in [1,65535], got %d", cfg.Radio.Port)
	}
	if cfg.Beacon.Period.Duration <= 0 {
		add("beacon.period", "must be positive, got %s", cfg.Beacon.Period)
	}
	if _, err := parsePrefix(cfg.Partition.Prefix); err != nil {
		add("partition.prefix", "%v", err)
	}
	if cfg.Partition.SpreadFactor < 1 {
		add("partition.spread_factor", "must be >= 1, got %d", cfg.Partition.SpreadFactor)
	}
	if cfg.Discovery.Capacity < 1 {
		add("discovery.capacity", "must be >= 1, got %d", cfg.Discovery.Capacity)
	}
	if cfg.Discovery.Needed < 0 {
		add("discovery.needed", "must not be negative, got %d", cfg.Discovery.Needed)
	}
	if cfg.Session.ConnectTimeout.Duration <= 0 {
		add("session.connect_timeout", "must be positive, got %s", cfg.Session.ConnectTimeout)
	}
	if cfg.Session.RetryInterval.Duration <= 0 {
		add("session.retry_interval", "must be positive, got %s", cfg.Session.RetryInterval)
	}
	if cfg.Turn.MinTimeout.Duration <= 0 {
		add("turn.min_timeout", "must be positive, got %s", cfg.Turn.MinTimeout)
	}
	if cfg.Turn.Timeout.Duration < cfg.Turn.MinTimeout.Duration {
		add("turn.timeout", "must be >= turn.min_timeout (%s), got %s", cfg.Turn.MinTimeout, cfg.Turn.Timeout)
	}
	if cfg.Turn.WaitTimeout.Duration <= cfg.Turn.Timeout.Duration {
		add("turn.wait_timeout", "must exceed turn.timeout (%s), got %s", cfg.Turn.Timeout, cfg.Turn.WaitTimeout)
	}
	if cfg.Turn.Decay.Duration < 0 {
		add("turn.decay", "must not be negative, got %s", cfg.Turn.Decay)
	}
	if cfg.Turn.MaxRounds < 1 {
		add("turn.max_rounds", "must be >= 1, got %d", cfg.Turn.MaxRounds)
	}
	if cfg.Lobby.Hold.Duration <= 0 {
		add("lobby.hold", "must be positive, got %s", cfg.Lobby.Hold)
	}
	if cfg.Lobby.Cooldown.Duration < 0 {
		add("lobby.cooldown", "must not be negative, got %s", cfg.Lobby.Cooldown)
	}
	if cfg.Lobby.PeerCooldown.Duration < 0 {
		add("lobby.peer_cooldown", "must not be negative, got %s", cfg.Lobby.PeerCooldown)
	}
	if _, err := nowlink.ParseLogLevel(cfg.Log.Level); err != nil {
		add("log.level", "%v", err)
	}
	return errors.Join(errs...)
}

// Load reads, decodes and validates the file at path
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses raw TOML, applies defaults and validates the result.
// Unknown keys are rejected.
func Decode(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, nowlink.NewConfigError("toml", "%s", strings.TrimSpace(strict.String()))
		}
		return nil, nowlink.NewConfigError("toml", "%v", err)
	}
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Sample writes a commented sample configuration to w
func Sample(w io.Writer) error {
	_, err := io.WriteString(w, sample)
	return err
}

// Filter returns the configured partition filter, or nil when the filter
// is disabled.
func (cfg *Config) Filter() (*partition.Filter, error) {
	if cfg.Partition.Disabled {
		return nil, nil
	}
	prefix, err := parsePrefix(cfg.Partition.Prefix)
	if err != nil {
		return nil, nowlink.NewConfigError("partition.prefix", "%v", err)
	}
	return partition.NewFilter(prefix, cfg.Partition.SpreadFactor)
}

// Key decodes the network key. An empty key returns nil.
func (cfg *Config) Key() ([]byte, error) {
	if cfg.Node.NetworkKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(cfg.Node.NetworkKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(key) > msg.MaxKeySize {
		return nil, fmt.Errorf("key is %d bytes, max %d", len(key), msg.MaxKeySize)
	}
	return key, nil
}

// Codec returns the frame codec for the configured network key
func (cfg *Config) Codec() (*msg.Codec, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, nowlink.NewConfigError("node.network_key", "%v", err)
	}
	return msg.NewCodec(key)
}

// Nick returns the nickname the node advertises
func (cfg *Config) Nick() string {
	return ResolveNick(cfg.Node.Nick, cfg.Node.Address)
}

// LogLevel returns the parsed log level
func (cfg *Config) LogLevel() nowlink.LogLevel {
	level, _ := nowlink.ParseLogLevel(cfg.Log.Level)
	return level
}

func parsePrefix(s string) ([3]byte, error) {
	var prefix [3]byte
	clean := strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(s))
	if len(clean) != 6 {
		return prefix, fmt.Errorf("want 3 hex bytes, got %q", s)
	}
	if _, err := hex.Decode(prefix[:], []byte(clean)); err != nil {
		return prefix, fmt.Errorf("invalid prefix %q: %w", s, err)
	}
	return prefix, nil
}

const sample = `# nowbadge node configuration

[node]
# Device hardware address (required).
address = "18:fe:34:00:00:01"
# Advertised nickname. Nicknames shorter than 5 characters are replaced
# by one generated from the address.
nick = ""
# Hex encoded shared network key, up to 32 bytes. Empty disables frame
# authentication.
network_key = ""

[radio]
channel = 1
port = 5670
broadcast = "255.255.255.255"
bind = "0.0.0.0"

[beacon]
period = "2s"

[partition]
disabled = false
prefix = "18:fe:34"
spread_factor = 180

[discovery]
capacity = 10
stale_after = "30s"
# Distinct peers seen before the node reports ready.
needed = 10

[session]
connect_timeout = "5s"
retry_interval = "500ms"

[turn]
timeout = "5s"
wait_timeout = "9s"
decay = "500ms"
min_timeout = "1s"
max_rounds = 5

[lobby]
hold = "60s"
cooldown = "30s"
peer_cooldown = "5m"

[log]
level = "info"

[metrics]
# Prometheus endpoint, e.g. "127.0.0.1:9090". Empty disables it.
listen = ""
`
