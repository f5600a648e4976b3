package otp

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	codes []Code
}

// NewMemoryRepository builds an in-memory code store for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) Create(_ context.Context, code Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
	return nil
}

func (r *memoryRepository) Latest(_ context.Context, phone string, notBefore time.Time) (Code, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		latest Code
		found  bool
	)
	for _, c := range r.codes {
		if c.Phone != phone || c.CreatedAt.Before(notBefore) {
			continue
		}
		if !found || !c.CreatedAt.Before(latest.CreatedAt) {
			latest, found = c, true
		}
	}
	if !found {
		return Code{}, ErrCodeNotFound
	}
	return latest, nil
}

func (r *memoryRepository) DeleteByPhone(_ context.Context, phone string) (int64, error) {
	return r.deleteWhere(func(c Code) bool { return c.Phone == phone }), nil
}

func (r *memoryRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	return r.deleteWhere(func(c Code) bool { return c.CreatedAt.Before(cutoff) }), nil
}

func (r *memoryRepository) deleteWhere(match func(Code) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.codes[:0]
	var removed int64
	for _, c := range r.codes {
		if match(c) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	r.codes = kept
	return removed
}
