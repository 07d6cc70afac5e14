package records

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps records in process memory. It backs tests and the memory:// records URL.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]any)}
}

func (m *MemoryStore) Upsert(_ context.Context, target Target, key string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := target.Table + ":" + key

	row, ok := m.data[id]
	if !ok {
		row = map[string]any{target.KeyColumn: key}
		m.data[id] = row
	}

	for column, value := range fields {
		row[column] = Text(value)
	}

	return nil
}

func (m *MemoryStore) Get(_ context.Context, target Target, key string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.data[target.Table+":"+key]
	if !ok {
		return nil, ErrRecordNotFound
	}

	return maps.Clone(row), nil
}
