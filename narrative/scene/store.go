package scene

import (
	"context"
	"slices"
	"sync"

	"github.com/BaSui01/sceneflow/persistence"
)

// Store is the authored-scene repository the catalog reads through.
type Store interface {
	// ListActive returns every active scene.
	ListActive(ctx context.Context) ([]*Scene, error)
	// GetByCode returns persistence.ErrNotFound for unknown codes.
	GetByCode(ctx context.Context, code string) (*Scene, error)
	// IncrementUsage folds one execution into the scene's usage stats.
	IncrementUsage(ctx context.Context, code string, update UsageUpdate) (UsageStats, error)
	// Save upserts a scene by code.
	Save(ctx context.Context, s *Scene) error
}

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	scenes map[string]*Scene
}

// NewMemoryStore creates a store seeded with scenes.
func NewMemoryStore(scenes ...*Scene) *MemoryStore {
	m := &MemoryStore{scenes: make(map[string]*Scene, len(scenes))}
	for _, s := range scenes {
		m.scenes[s.Code] = s.Clone()
	}
	return m
}

// ListActive returns active scenes ordered by code.
func (m *MemoryStore) ListActive(ctx context.Context) ([]*Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Scene, 0, len(m.scenes))
	for _, s := range m.scenes {
		if s.Active {
			result = append(result, s.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *Scene) int {
		if a.Code < b.Code {
			return -1
		}
		if a.Code > b.Code {
			return 1
		}
		return 0
	})
	return result, nil
}

// GetByCode retrieves a scene.
func (m *MemoryStore) GetByCode(ctx context.Context, code string) (*Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.scenes[code]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return s.Clone(), nil
}

// IncrementUsage updates usage statistics.
func (m *MemoryStore) IncrementUsage(ctx context.Context, code string, update UsageUpdate) (UsageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.scenes[code]
	if !ok {
		return UsageStats{}, persistence.ErrNotFound
	}
	s.Usage = s.Usage.Apply(update)
	return s.Usage, nil
}

// Save upserts a scene.
func (m *MemoryStore) Save(ctx context.Context, s *Scene) error {
	if s == nil || s.Code == "" {
		return persistence.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenes[s.Code] = s.Clone()
	return nil
}
