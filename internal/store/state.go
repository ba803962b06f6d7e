// Package store persists small pieces of client state across restarts in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

const (
	// Namespace groups the dashboard's persisted keys.
	Namespace  = "dashboard-storage"
	trainedKey = "isTrained"
)

// State is a namespaced key/value store backed by SQLite.
type State struct {
	db *sql.DB
}

// Open opens or creates the state database at the given path.
func Open(dbPath string) (*State, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(2000)")
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the state database.
func (s *State) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key. ok is false when the key is unset.
func (s *State) Get(namespace, key string) (value string, ok bool, err error) {
	err = s.db.QueryRow(
		"SELECT value FROM kv_state WHERE namespace = ? AND key = ?", namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *State) Set(namespace, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO kv_state (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, now)
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (s *State) Delete(namespace, key string) error {
	_, err := s.db.Exec("DELETE FROM kv_state WHERE namespace = ? AND key = ?", namespace, key)
	return err
}

// Trained returns the persisted trained flag. Unset or unreadable means false.
func (s *State) Trained() bool {
	v, ok, err := s.Get(Namespace, trainedKey)
	if err != nil || !ok {
		return false
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// SetTrained persists the trained flag.
func (s *State) SetTrained(trained bool) error {
	return s.Set(Namespace, trainedKey, strconv.FormatBool(trained))
}

// MemoryFlag is an in-process trained flag used when no database is available.
type MemoryFlag struct {
	mu      sync.Mutex
	trained bool
}

// Trained returns the current flag.
func (m *MemoryFlag) Trained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trained
}

// SetTrained sets the flag. Never fails.
func (m *MemoryFlag) SetTrained(trained bool) error {
	m.mu.Lock()
	m.trained = trained
	m.mu.Unlock()
	return nil
}
