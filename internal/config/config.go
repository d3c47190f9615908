// Package config loads scry's TOML configuration from ~/.scry/config.toml.
// Every tuning value has a default; the file only needs the gateway section.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
type Config struct {
	Gateway Gateway `toml:"gateway"`
	Mirror  Mirror  `toml:"mirror"`
	Relay   Relay   `toml:"relay"`
}

// Gateway holds the connection handshake parameters. These are consumed by
// the mirror service only and never reach relay clients.
type Gateway struct {
	URL         string   `toml:"url"`
	Token       string   `toml:"token,omitempty"`
	Client      string   `toml:"client,omitempty"`
	MinProtocol int      `toml:"min_protocol,omitempty"`
	MaxProtocol int      `toml:"max_protocol,omitempty"`
	Scopes      []string `toml:"scopes,omitempty"`
}

// Mirror tunes the connection state machine and the graph bounds. Durations
// are milliseconds.
type Mirror struct {
	ReconnectDelayMS     int `toml:"reconnect_delay_ms"`
	MaxReconnectAttempts int `toml:"max_reconnect_attempts"`
	PollIntervalMS       int `toml:"poll_interval_ms"`
	EvictIntervalMS      int `toml:"evict_interval_ms"`
	MaxEvents            int `toml:"max_events"`
	MaxNodes             int `toml:"max_nodes"`
	MaxEdges             int `toml:"max_edges"`
	NodeTTLMS            int `toml:"node_ttl_ms"`
}

// Relay configures the local snapshot/delta HTTP server.
type Relay struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	AuthToken string `toml:"auth_token,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Gateway: Gateway{
			URL:         "ws://127.0.0.1:18789/ws",
			Client:      "scry",
			MinProtocol: 1,
			MaxProtocol: 3,
			Scopes:      []string{"events:read"},
		},
		Mirror: Mirror{
			ReconnectDelayMS:     1000,
			MaxReconnectAttempts: 5,
			PollIntervalMS:       5000,
			EvictIntervalMS:      30000,
			MaxEvents:            500,
			MaxNodes:             250,
			MaxEdges:             600,
			NodeTTLMS:            600000,
		},
		Relay: Relay{
			Host: "127.0.0.1",
			Port: 7717,
		},
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: user home dir: %w", err)
	}
	return filepath.Join(home, ".scry", "config.toml"), nil
}

// Load reads the config file at path, layering it over the defaults. A
// missing file yields the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg.applyFloors()
	return cfg, nil
}

// applyFloors restores defaults for zero or negative tuning values so a
// sparse file cannot disable the bounds.
func (c *Config) applyFloors() {
	def := Default()
	if c.Mirror.ReconnectDelayMS <= 0 {
		c.Mirror.ReconnectDelayMS = def.Mirror.ReconnectDelayMS
	}
	if c.Mirror.MaxReconnectAttempts <= 0 {
		c.Mirror.MaxReconnectAttempts = def.Mirror.MaxReconnectAttempts
	}
	if c.Mirror.PollIntervalMS <= 0 {
		c.Mirror.PollIntervalMS = def.Mirror.PollIntervalMS
	}
	if c.Mirror.EvictIntervalMS <= 0 {
		c.Mirror.EvictIntervalMS = def.Mirror.EvictIntervalMS
	}
	if c.Mirror.MaxEvents <= 0 {
		c.Mirror.MaxEvents = def.Mirror.MaxEvents
	}
	if c.Mirror.MaxNodes <= 0 {
		c.Mirror.MaxNodes = def.Mirror.MaxNodes
	}
	if c.Mirror.MaxEdges <= 0 {
		c.Mirror.MaxEdges = def.Mirror.MaxEdges
	}
	if c.Mirror.NodeTTLMS <= 0 {
		c.Mirror.NodeTTLMS = def.Mirror.NodeTTLMS
	}
	if c.Relay.Host == "" {
		c.Relay.Host = def.Relay.Host
	}
	if c.Relay.Port <= 0 {
		c.Relay.Port = def.Relay.Port
	}
}
