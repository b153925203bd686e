package dao

import (
	"context"
	"sync"
)

// StateMemory is an in-process StateStore used when no database is configured
type StateMemory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewStateMemory creates an empty in-memory state store
func NewStateMemory() *StateMemory {
	return &StateMemory{values: make(map[string][]byte)}
}

// Get returns the value stored under key
func (s *StateMemory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores value under key
func (s *StateMemory) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}
