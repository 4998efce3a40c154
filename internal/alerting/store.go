package alerting

import (
	"context"
	"sync"

	"PoscoMonitorAPI/internal/models"
)

// StatusStore persists ledger statuses. Implementations must be safe for
// concurrent use.
type StatusStore interface {
	Get(ctx context.Context, key models.AlertKey) (models.AlertStatus, bool, error)
	Set(ctx context.Context, key models.AlertKey, status models.AlertStatus) error
	Delete(ctx context.Context, keys ...models.AlertKey) error
	Keys(ctx context.Context) ([]models.AlertKey, error)
	Len(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

type MemoryStatusStore struct {
	statuses map[models.AlertKey]models.AlertStatus
	mu       sync.RWMutex
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[models.AlertKey]models.AlertStatus)}
}

func (m *MemoryStatusStore) Get(_ context.Context, key models.AlertKey) (models.AlertStatus, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[key]
	return st, ok, nil
}

func (m *MemoryStatusStore) Set(_ context.Context, key models.AlertKey, status models.AlertStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[key] = status
	return nil
}

func (m *MemoryStatusStore) Delete(_ context.Context, keys ...models.AlertKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.statuses, k)
	}
	return nil
}

func (m *MemoryStatusStore) Keys(_ context.Context) ([]models.AlertKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]models.AlertKey, 0, len(m.statuses))
	for k := range m.statuses {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *MemoryStatusStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses), nil
}

func (m *MemoryStatusStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = make(map[models.AlertKey]models.AlertStatus)
	return nil
}

func (m *MemoryStatusStore) Ping(_ context.Context) error {
	return nil
}
