// Package daemon wires the trading node together: storage, directory,
// negotiator, mesh transport, event engine, and the HTTP API.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full node configuration, loaded from TOML.
type Config struct {
	Node    NodeConfig    `toml:"node"`
	API     APIConfig     `toml:"api"`
	Mesh    MeshConfig    `toml:"mesh"`
	Trade   TradeConfig   `toml:"trade"`
	Storage StorageConfig `toml:"storage"`
}

// NodeConfig identifies this device on the mesh.
type NodeConfig struct {
	ID    string `toml:"id"`    // Stable device ID; generated on first run if empty
	Alias string `toml:"alias"` // Human-readable name shown to peers
}

// APIConfig controls the local HTTP surface.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// MeshConfig controls peer discovery.
type MeshConfig struct {
	BindAddr         string `toml:"bind_addr"`
	AnnounceAddr     string `toml:"announce_addr"`
	AnnounceInterval string `toml:"announce_interval"`
	PeerTTL          string `toml:"peer_ttl"`
}

// TradeConfig controls negotiation timing windows.
type TradeConfig struct {
	DeliveryDelay   string `toml:"delivery_delay"`
	ResponseTimeout string `toml:"response_timeout"`
	ConfirmWindow   string `toml:"confirm_window"`
	DeclineDismiss  string `toml:"decline_dismiss"`
}

// StorageConfig controls persistence.
type StorageConfig struct {
	Path string `toml:"path"` // SQLite database file
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			Alias: "Unknown Trader",
		},
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    7641,
			Metrics: true,
		},
		Mesh: MeshConfig{
			BindAddr:         ":7654",
			AnnounceAddr:     "255.255.255.255:7654",
			AnnounceInterval: "1s",
			PeerTTL:          "5s",
		},
		Trade: TradeConfig{
			DeliveryDelay:   "1s",
			ResponseTimeout: "30s",
			ConfirmWindow:   "5s",
			DeclineDismiss:  "3s",
		},
		Storage: StorageConfig{
			Path: defaultStoragePath(),
		},
	}
}

// LoadConfig reads the TOML config at path, falling back to defaults for a
// missing file. Fields absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultConfigPath returns ~/.boomtrade/config.toml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".boomtrade", "config.toml")
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "boomtrade.db"
	}
	return filepath.Join(home, ".boomtrade", "boomtrade.db")
}

// parseDuration parses a duration string, falling back to def on empty or
// malformed input.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
