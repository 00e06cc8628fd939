package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the cursor in a one-row SQLite table and offers a
// key/value record table for arbitrary bot-specific state, for bots
// that already carry a database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cursor (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		value INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS record (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load returns the stored cursor, or 0 when the table is empty.
func (s *SQLiteStore) Load() (int64, error) {
	var cursor int64
	err := s.db.QueryRow(`SELECT value FROM cursor WHERE id = 0`).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: load cursor: %w", err)
	}
	if cursor < 0 {
		return 0, nil
	}
	return cursor, nil
}

// Save stores the cursor, replacing any previous value.
func (s *SQLiteStore) Save(cursor int64) error {
	_, err := s.db.Exec(
		`INSERT INTO cursor (id, value) VALUES (0, ?)
		 ON CONFLICT (id) DO UPDATE SET value = excluded.value`, cursor)
	if err != nil {
		return fmt.Errorf("store: save cursor: %w", err)
	}
	return nil
}

// GetRecord fetches a bot record by key. The second return value
// reports whether the key exists.
func (s *SQLiteStore) GetRecord(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM record WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get record %q: %w", key, err)
	}
	return value, true, nil
}

// SetRecord stores a bot record, replacing any previous value.
func (s *SQLiteStore) SetRecord(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO record (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("store: set record %q: %w", key, err)
	}
	return nil
}

// DeleteRecord removes a bot record if it exists.
func (s *SQLiteStore) DeleteRecord(key string) error {
	if _, err := s.db.Exec(`DELETE FROM record WHERE key = ?`, key); err != nil {
		return fmt.Errorf("store: delete record %q: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
