// Package config provides the configuration for the walletcored daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// NetworkType represents the network (mainnet or testnet).
type NetworkType string

const (
	NetworkMainnet NetworkType = "mainnet"
	NetworkTestnet NetworkType = "testnet"
)

// Config holds all configuration for the daemon.
type Config struct {
	// NetworkType selects which networks are discovered and connected.
	NetworkType NetworkType `yaml:"network_type"`

	// Query holds the blockchain query service settings.
	Query QueryConfig `yaml:"query"`

	// Storage
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Sync holds wallet-manager sync defaults.
	Sync SyncConfig `yaml:"sync"`

	// RPC holds the JSON-RPC server settings.
	RPC RPCConfig `yaml:"rpc"`
}

// QueryConfig holds query-service client settings. An empty base URL runs
// the daemon without a query service: builtin networks, no fee refresh, no
// subscriptions.
type QueryConfig struct {
	// BaseURL is the REST endpoint of the query service.
	BaseURL string `yaml:"base_url"`

	// StreamURL is the websocket push endpoint (empty disables the stream).
	StreamURL string `yaml:"stream_url"`

	// AuthToken authenticates requests (empty for unauthenticated services).
	AuthToken string `yaml:"auth_token"`

	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// DataDir is the directory for all data files.
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is the log file path (empty for stdout).
	File string `yaml:"file"`
}

// SyncConfig holds wallet-manager sync defaults.
type SyncConfig struct {
	// Mode is the default sync mode for created managers. Networks that do
	// not support it fall back to their own default.
	Mode string `yaml:"mode"`

	// FeeRefreshInterval is how often network fee schedules are refreshed
	// from the query service.
	FeeRefreshInterval time.Duration `yaml:"fee_refresh_interval"`
}

// RPCConfig holds JSON-RPC server settings.
type RPCConfig struct {
	// Enabled turns the JSON-RPC and websocket API on.
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the address the API listens on.
	ListenAddr string `yaml:"listen_addr"`
}

// IsTestnet returns true if running on testnet.
func (c *Config) IsTestnet() bool {
	return c.NetworkType == NetworkTestnet
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		NetworkType: NetworkMainnet,
		Query: QueryConfig{
			BaseURL: "",
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: "~/.walletcore",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Sync: SyncConfig{
			Mode:               "api_only",
			FeeRefreshInterval: 3 * time.Minute,
		},
		RPC: RPCConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:8330",
		},
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(dataDir string) (*Config, error) {
	expandedDir := expandPath(dataDir)
	configPath := filepath.Join(expandedDir, ConfigFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# walletcored configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ConfigPath returns the full path to the config file for the given data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
