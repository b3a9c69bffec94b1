package store

import (
	"context"
	"sync"

	stateflow "github.com/goliatone/go-stateflow"
)

type memoryEntry struct {
	value   stateflow.Value
	version int64
}

// MemoryStore is a thread-safe in-memory value store, used by tests and
// single-process hosts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[stateflow.Identifier]memoryEntry
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[stateflow.Identifier]memoryEntry),
	}
}

// Seed loads initial values without bumping versions past 1. Meant for
// default application state at startup.
func (s *MemoryStore) Seed(values ...stateflow.Value) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		s.entries[v.Identifier()] = memoryEntry{value: v, version: 1}
	}
	return s
}

func (s *MemoryStore) ReadValue(_ context.Context, id stateflow.Identifier) (stateflow.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return stateflow.Value{}, notFoundError(id)
	}
	return entry.value, nil
}

func (s *MemoryStore) Values(ctx context.Context, ids []stateflow.Identifier) ([]stateflow.Value, error) {
	out := make([]stateflow.Value, 0, len(ids))
	for _, id := range ids {
		v, err := s.ReadValue(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *MemoryStore) UpdateValue(_ context.Context, v stateflow.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[v.Identifier()]
	entry.value = v
	entry.version++
	s.entries[v.Identifier()] = entry
	return nil
}

func (s *MemoryStore) Versions(_ context.Context, ids []stateflow.Identifier) (map[stateflow.Identifier]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[stateflow.Identifier]int64, len(ids))
	for _, id := range ids {
		out[id] = s.entries[id].version
	}
	return out, nil
}

func (s *MemoryStore) UpdateValueIfFresh(_ context.Context, v stateflow.Value, expected int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[v.Identifier()]
	if entry.version != expected {
		return 0, versionConflictError(v.Identifier(), expected, entry.version)
	}
	entry.value = v
	entry.version++
	s.entries[v.Identifier()] = entry
	return entry.version, nil
}
