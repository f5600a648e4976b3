package auth

import (
	"context"
	"sync"
)

type memoryTokenRepository struct {
	mu     sync.Mutex
	byUser map[string]Token
	byKey  map[string]string
}

// NewMemoryTokenRepository builds an in-memory token store for tests and local runs.
func NewMemoryTokenRepository() TokenRepository {
	return &memoryTokenRepository{byUser: make(map[string]Token), byKey: make(map[string]string)}
}

func (r *memoryTokenRepository) GetOrCreate(_ context.Context, candidate Token) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byUser[candidate.UserID]; ok {
		return existing, nil
	}
	r.byUser[candidate.UserID] = candidate
	r.byKey[candidate.Key] = candidate.UserID
	return candidate, nil
}

func (r *memoryTokenRepository) FindByKey(_ context.Context, key string) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byKey[key]
	if !ok {
		return Token{}, ErrTokenNotFound
	}
	return r.byUser[userID], nil
}

func (r *memoryTokenRepository) DeleteByUser(_ context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byUser[userID]
	if !ok {
		return false, nil
	}
	delete(r.byUser, userID)
	delete(r.byKey, t.Key)
	return true, nil
}
