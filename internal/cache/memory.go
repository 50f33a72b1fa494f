package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process LedgerCache for single-node deployments.
// Invalidate bumps the generation and drops the live entries.
type Memory struct {
	mu         sync.Mutex
	generation int64
	entries    map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func (m *Memory) Key(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("%d:%s", m.generation, key), nil
}

func (m *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	b, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

// Set ignores keys resolved under an older generation.
func (m *Memory) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !strings.HasPrefix(key, fmt.Sprintf("%d:", m.generation)) {
		return nil
	}
	m.entries[key] = b
	return nil
}

func (m *Memory) Invalidate(context.Context) error {
	m.mu.Lock()
	m.generation++
	m.entries = make(map[string][]byte)
	m.mu.Unlock()
	return nil
}
