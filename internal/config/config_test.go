package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.NetworkType != NetworkMainnet {
		t.Errorf("expected NetworkMainnet, got %s", cfg.NetworkType)
	}

	if cfg.Query.Timeout != 30*time.Second {
		t.Errorf("expected query timeout 30s, got %v", cfg.Query.Timeout)
	}

	if cfg.Storage.DataDir != "~/.walletcore" {
		t.Errorf("expected ~/.walletcore, got %s", cfg.Storage.DataDir)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Logging.Level)
	}

	if cfg.Sync.Mode != "api_only" {
		t.Errorf("expected sync mode api_only, got %s", cfg.Sync.Mode)
	}

	if cfg.Sync.FeeRefreshInterval != 3*time.Minute {
		t.Errorf("expected fee refresh 3m, got %v", cfg.Sync.FeeRefreshInterval)
	}

	if !cfg.RPC.Enabled {
		t.Error("expected RPC enabled by default")
	}

	if cfg.RPC.ListenAddr != "127.0.0.1:8330" {
		t.Errorf("unexpected RPC listen addr: %s", cfg.RPC.ListenAddr)
	}
}

func TestConfigIsTestnet(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.IsTestnet() {
		t.Error("expected IsTestnet() to be false for mainnet")
	}

	cfg.NetworkType = NetworkTestnet
	if !cfg.IsTestnet() {
		t.Error("expected IsTestnet() to be true for testnet")
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	if cfg.NetworkType != NetworkMainnet {
		t.Errorf("expected NetworkMainnet, got %s", cfg.NetworkType)
	}

	if cfg.Storage.DataDir != tmpDir {
		t.Errorf("expected DataDir %s, got %s", tmpDir, cfg.Storage.DataDir)
	}
}

func TestLoadConfigReadsExisting(t *testing.T) {
	tmpDir := t.TempDir()

	customConfig := `network_type: testnet
query:
  base_url: https://api.example.com
  auth_token: token-1
logging:
  level: debug
sync:
  mode: p2p_only
`
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(customConfig), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.NetworkType != NetworkTestnet {
		t.Errorf("expected NetworkTestnet, got %s", cfg.NetworkType)
	}

	if cfg.Query.BaseURL != "https://api.example.com" {
		t.Errorf("unexpected query base url: %s", cfg.Query.BaseURL)
	}

	if cfg.Query.AuthToken != "token-1" {
		t.Errorf("unexpected auth token: %s", cfg.Query.AuthToken)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug log level, got %s", cfg.Logging.Level)
	}

	if cfg.Sync.Mode != "p2p_only" {
		t.Errorf("expected sync mode p2p_only, got %s", cfg.Sync.Mode)
	}

	// Unset fields keep their defaults.
	if cfg.Query.Timeout != 30*time.Second {
		t.Errorf("expected default timeout, got %v", cfg.Query.Timeout)
	}
}

func TestConfigSave(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.NetworkType = NetworkTestnet
	cfg.Logging.Level = "debug"

	configPath := filepath.Join(tmpDir, "test-config.yaml")
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "# walletcored configuration") {
		t.Error("config file missing header comment")
	}

	if !strings.Contains(content, "network_type: testnet") {
		t.Error("config file missing network_type")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/.walletcore", filepath.Join(home, ".walletcore")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		got := expandPath(tt.input)
		if got != tt.expected {
			t.Errorf("expandPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestConfigPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		dataDir  string
		expected string
	}{
		{"~/.walletcore", filepath.Join(home, ".walletcore", ConfigFileName)},
		{"/tmp/test", filepath.Join("/tmp/test", ConfigFileName)},
	}

	for _, tt := range tests {
		got := ConfigPath(tt.dataDir)
		if got != tt.expected {
			t.Errorf("ConfigPath(%q) = %q, want %q", tt.dataDir, got, tt.expected)
		}
	}
}
