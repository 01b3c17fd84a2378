package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists user records as one JSON file per user under a
// directory. Files are written with 0600 permissions since they contain
// OAuth credentials. Writes go through a temp file and rename so a crashed
// write never leaves a truncated record behind.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create user store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Get reads a user record from disk. Returns ErrNotFound when the file does
// not exist.
func (s *FileStore) Get(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read user %s: %w", id, err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}

	return &u, nil
}

// Save writes the user record to disk atomically.
func (s *FileStore) Save(_ context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("cannot save user without ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode user %s: %w", u.ID, err)
	}

	tmp := s.path(u.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write user %s: %w", u.ID, err)
	}
	if err := os.Rename(tmp, s.path(u.ID)); err != nil {
		return fmt.Errorf("failed to persist user %s: %w", u.ID, err)
	}

	return nil
}
