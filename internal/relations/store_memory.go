package relations

import (
	"context"
	"sync"
)

type pairKey struct {
	actor  string
	kind   Kind
	target string
}

// NewMemoryStore returns a Store backed by an in-memory map.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[pairKey]Record)}
}

// MemoryStore implements Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[pairKey]Record
}

// Find retrieves the record for the pair.
func (s *MemoryStore) Find(_ context.Context, actor string, kind Kind, target string) (Record, error) {
	s.mu.RLock()
	record, ok := s.records[pairKey{actor, kind, target}]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return record, nil
}

// Create stores a record, rejecting a second record for the same pair.
func (s *MemoryStore) Create(_ context.Context, record Record) error {
	key := pairKey{record.Actor, record.Kind, record.Target}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; exists {
		return ErrDuplicateRecord
	}
	s.records[key] = record
	return nil
}

// Delete removes the record.
func (s *MemoryStore) Delete(_ context.Context, record Record) error {
	key := pairKey{record.Actor, record.Kind, record.Target}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; !exists {
		return ErrRecordNotFound
	}
	delete(s.records, key)
	return nil
}

// Count reports how many records exist for the pair. Useful for tests.
func (s *MemoryStore) Count(actor string, kind Kind, target string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.records[pairKey{actor, kind, target}]; ok {
		return 1
	}
	return 0
}

// Targets lists the targets of kind the actor relates to.
func (s *MemoryStore) Targets(actor string, kind Kind) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for key := range s.records {
		if key.actor == actor && key.kind == kind {
			out = append(out, key.target)
		}
	}
	return out
}

// Actors lists the actors relating to target.
func (s *MemoryStore) Actors(kind Kind, target string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for key := range s.records {
		if key.kind == kind && key.target == target {
			out = append(out, key.actor)
		}
	}
	return out
}
