package seed

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/BaSui01/sceneflow/persistence"
)

// Filter selects seeds for listing.
type Filter struct {
	GroupID  string
	Statuses []Status
	Type     string
}

// Matches reports whether s satisfies the filter.
func (f Filter) Matches(s *Seed) bool {
	if f.GroupID != "" && s.GroupID != f.GroupID {
		return false
	}
	if f.Type != "" && s.Type != f.Type {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, s.Status) {
		return false
	}
	return true
}

// Store persists seeds.
type Store interface {
	// Create inserts a new seed. The seed must carry an ID.
	Create(ctx context.Context, s *Seed) error
	// Save overwrites an existing seed.
	Save(ctx context.Context, s *Seed) error
	// Get returns persistence.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Seed, error)
	// List returns matching seeds ordered by creation time.
	List(ctx context.Context, filter Filter) ([]*Seed, error)
	// DeleteExpired removes EXPIRED seeds last updated before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	seeds map[string]*Seed
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seeds: make(map[string]*Seed)}
}

// Create inserts a seed.
func (m *MemoryStore) Create(ctx context.Context, s *Seed) error {
	if s == nil || s.ID == "" {
		return persistence.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seeds[s.ID]; ok {
		return persistence.ErrAlreadyExists
	}
	m.seeds[s.ID] = s.Clone()
	return nil
}

// Save overwrites a seed.
func (m *MemoryStore) Save(ctx context.Context, s *Seed) error {
	if s == nil || s.ID == "" {
		return persistence.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seeds[s.ID]; !ok {
		return persistence.ErrNotFound
	}
	m.seeds[s.ID] = s.Clone()
	return nil
}

// Get retrieves a seed by ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Seed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.seeds[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return s.Clone(), nil
}

// List retrieves seeds matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter Filter) ([]*Seed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Seed, 0)
	for _, s := range m.seeds {
		if filter.Matches(s) {
			result = append(result, s.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *Seed) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return result, nil
}

// DeleteExpired removes old expired seeds.
func (m *MemoryStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.seeds {
		if s.Status == StatusExpired && s.UpdatedAt.Before(before) {
			delete(m.seeds, id)
			n++
		}
	}
	return n, nil
}
