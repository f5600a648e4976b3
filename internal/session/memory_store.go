package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	flow      Flow
	failures  int64
	expiresAt time.Time
}

// MemoryStore is a TTL-bounded map used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds an in-process flow store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, flow Flow, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[key(sessionID, flow.Kind)] = entry{flow: flow, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string, kind Kind) (Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(sessionID, kind)
	e, ok := s.entries[k]
	if !ok {
		return Flow{}, ErrFlowNotFound
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, k)
		return Flow{}, ErrFlowNotFound
	}
	return e.flow, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key(sessionID, kind))
	return nil
}

// RecordFailure counts against a live flow. A missing flow reports zero.
func (s *MemoryStore) RecordFailure(_ context.Context, sessionID string, kind Kind, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(sessionID, kind)
	e, ok := s.entries[k]
	if !ok || !s.now().Before(e.expiresAt) {
		return 0, nil
	}
	e.failures++
	s.entries[k] = e
	return e.failures, nil
}

// sweepLocked drops expired entries so abandoned flows do not accumulate.
func (s *MemoryStore) sweepLocked() {
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
