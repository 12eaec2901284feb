package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process ReputationStore. Used when no database is
// configured and throughout the test suite. A single mutex guards both
// maps, which makes every mark/reset atomic with respect to lookups.
type MemoryStore struct {
	mu        sync.RWMutex
	safe      map[string]time.Time
	malicious map[string]time.Time
}

// NewMemoryStore creates an empty in-memory reputation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		safe:      make(map[string]time.Time),
		malicious: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Lookup(_ context.Context, id string) (Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.safe[id]; ok {
		return Safe, nil
	}
	if _, ok := s.malicious[id]; ok {
		return Malicious, nil
	}
	return Unknown, nil
}

func (s *MemoryStore) MarkSafe(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.malicious, id)
	s.safe[id] = time.Now()
	return nil
}

func (s *MemoryStore) MarkMalicious(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.safe, id)
	s.malicious[id] = time.Now()
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.safe, id)
	delete(s.malicious, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
