package user

import (
	"context"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a user record does not exist.
var ErrNotFound = fmt.Errorf("user not found")

// Store persists user records. The token manager calls Save after every
// refresh, so implementations must make Save atomic per user; cross-user
// consistency is not required.
type Store interface {
	// Get retrieves a user by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*User, error)

	// Save writes the full user record, replacing any previous version.
	Save(ctx context.Context, u *User) error
}

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

// Get retrieves a copy of the stored user.
func (s *MemoryStore) Get(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, ErrNotFound)
	}
	return u.Clone(), nil
}

// Save stores a copy of the user record.
func (s *MemoryStore) Save(_ context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("cannot save user without ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = u.Clone()
	return nil
}
