package registry

import (
	"context"
	"sync"

	"github.com/kart-io/legal-rag/internal/model"
)

// Memory is a process-lifetime registry.
type Memory struct {
	mu        sync.RWMutex
	resources map[string]model.Resource
	locks     *keyedMutex
}

var _ Registry = (*Memory)(nil)

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		resources: make(map[string]model.Resource),
		locks:     newKeyedMutex(),
	}
}

func (m *Memory) Put(_ context.Context, r *model.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[r.ID] = *r
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*model.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) List(_ context.Context) ([]*model.Resource, error) {
	m.mu.RLock()
	out := make([]*model.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		r := r
		out = append(out, &r)
	}
	m.mu.RUnlock()

	sortResources(out)
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[id]; !ok {
		return ErrNotFound
	}
	delete(m.resources, id)
	return nil
}

func (m *Memory) Lock(id string) func() {
	return m.locks.Lock(id)
}

func (m *Memory) Close() error {
	return nil
}
