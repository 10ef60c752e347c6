package store

import (
	"context"
	"sync"
)

// Memory is an in-process store for tests and dry runs
type Memory struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	saves []string
}

// NewMemory creates an empty memory store
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Save(_ context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[name] = append([]byte(nil), data...)
	m.saves = append(m.saves, name)
	return nil
}

// Seed stores a document without recording a save
func (m *Memory) Seed(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = append([]byte(nil), data...)
}

// Saves returns document names in the order they were saved
func (m *Memory) Saves() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.saves...)
}

func (m *Memory) Close() error { return nil }
