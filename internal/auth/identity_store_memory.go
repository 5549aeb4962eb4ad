package auth

import (
	"context"
	"sync"

	"github.com/vidtube/backend/internal/models"
)

// NewInMemoryIdentityStore returns an IdentityStore backed by an in-memory map.
func NewInMemoryIdentityStore() *InMemoryIdentityStore {
	return &InMemoryIdentityStore{users: make(map[string]models.User)}
}

// InMemoryIdentityStore implements IdentityStore for tests and local development.
type InMemoryIdentityStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// Put inserts or replaces a user record.
func (s *InMemoryIdentityStore) Put(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// Delete removes a user record.
func (s *InMemoryIdentityStore) Delete(userID string) {
	s.mu.Lock()
	delete(s.users, userID)
	s.mu.Unlock()
}

// FindIdentity retrieves a user by id.
func (s *InMemoryIdentityStore) FindIdentity(_ context.Context, userID string) (models.User, error) {
	s.mu.RLock()
	user, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, ErrIdentityNotFound
	}
	return user, nil
}

// SetRefreshToken overwrites the stored refresh token.
func (s *InMemoryIdentityStore) SetRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrIdentityNotFound
	}
	user.RefreshToken = token
	s.users[userID] = user
	return nil
}

// SwapRefreshToken replaces current with next while current is still stored.
func (s *InMemoryIdentityStore) SwapRefreshToken(_ context.Context, userID, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrIdentityNotFound
	}
	if user.RefreshToken == "" || user.RefreshToken != current {
		return ErrRefreshTokenReused
	}
	user.RefreshToken = next
	s.users[userID] = user
	return nil
}

// RefreshToken reports the stored refresh token. Useful for tests.
func (s *InMemoryIdentityStore) RefreshToken(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID].RefreshToken
}
