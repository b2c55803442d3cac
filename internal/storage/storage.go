// Package storage provides persistent storage using SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage persists what the ledger engines ask the core to keep between
// runs: block checkpoints, peer records, raw transactions, and push
// subscriptions.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// New creates a new Storage instance.
func New(cfg *Config) (*Storage, error) {
	dataDir := expandPath(cfg.DataDir)

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "walletcore.db")

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	// Initialize schema
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// initSchema creates all database tables.
func (s *Storage) initSchema() error {
	schema := `
	-- Block checkpoints, one row per network. The engine saves the block it
	-- syncs from so a restart does not rescan from the account timestamp.
	CREATE TABLE IF NOT EXISTS blocks (
		network_uid TEXT PRIMARY KEY,
		height INTEGER NOT NULL,
		data BLOB,
		saved_at INTEGER NOT NULL
	);

	-- Known peers per network (P2P sync modes)
	CREATE TABLE IF NOT EXISTS peers (
		network_uid TEXT NOT NULL,
		address TEXT NOT NULL,
		data BLOB,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		PRIMARY KEY (network_uid, address)
	);

	CREATE INDEX IF NOT EXISTS idx_peers_last_seen ON peers(network_uid, last_seen);

	-- Raw transactions the engine asked the core to persist
	CREATE TABLE IF NOT EXISTS transactions (
		network_uid TEXT NOT NULL,
		txid TEXT NOT NULL,
		raw BLOB,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (network_uid, txid)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_updated ON transactions(network_uid, updated_at);

	-- Push-notification subscriptions registered with the query service
	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		endpoint_kind TEXT NOT NULL,
		endpoint_value TEXT NOT NULL,
		currencies TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_subscriptions_device ON subscriptions(device_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
