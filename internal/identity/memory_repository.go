package identity

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an in-memory user store for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phoneInUseLocked(user.Phone, "") {
		return ErrPhoneTaken
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByUsername(_ context.Context, username string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		found User
		ok    bool
	)
	for _, user := range r.users {
		if !user.IsActive || user.Username != username {
			continue
		}
		if !ok || user.CreatedAt.Before(found.CreatedAt) {
			found, ok = user, true
		}
	}
	if !ok {
		return User{}, ErrUserNotFound
	}
	return found, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.IsActive && user.Phone == phone {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *memoryRepository) Update(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	if r.phoneInUseLocked(user.Phone, user.ID) {
		return ErrPhoneTaken
	}
	r.users[user.ID] = user
	return nil
}

// phoneInUseLocked mirrors the table-wide unique constraint on phone_number.
func (r *memoryRepository) phoneInUseLocked(phone, exceptID string) bool {
	for id, user := range r.users {
		if id != exceptID && user.Phone == phone {
			return true
		}
	}
	return false
}
