package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FileStore keeps the cursor as a single integer in a file. Writes go
// through a temp file plus rename, so a crash mid-write leaves the old
// value intact.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore opens (or prepares to create) the cursor file at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store: cursor file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("store: create cursor dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load reads the stored cursor. A missing or unparseable file loads as
// 0 rather than failing: a bot without history starts from the latest
// available update.
func (s *FileStore) Load() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("store: read cursor: %w", err)
	}

	cursor, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || cursor < 0 {
		return 0, nil
	}
	return cursor, nil
}

// Save writes the cursor atomically.
func (s *FileStore) Save(cursor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(cursor, 10)+"\n"), 0644); err != nil {
		return fmt.Errorf("store: write cursor: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: commit cursor: %w", err)
	}
	return nil
}

// Close is a no-op; every Save is already durable.
func (s *FileStore) Close() error {
	return nil
}
