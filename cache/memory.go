package cache

import (
	"context"
	"sync"
)

// Compile-time interface check.
var _ Cache = (*Memory)(nil)

// Memory is an in-process Cache for tests and single-node deployments.
// Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Name implements Cache.
func (m *Memory) Name() string { return "memory" }

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	proof, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(proof))
	copy(out, proof)
	return out, true, nil
}

// Put implements Cache.
func (m *Memory) Put(_ context.Context, key string, proof []byte) error {
	stored := make([]byte, len(proof))
	copy(stored, proof)
	m.mu.Lock()
	m.entries[key] = stored
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached proofs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
