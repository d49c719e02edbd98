package relation

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/sceneflow/persistence"
)

// Filter selects relations for listing.
type Filter struct {
	GroupID string
	// AgentID restricts to relations involving this agent.
	AgentID string
	// PositiveTension restricts to relations with tension > 0.
	PositiveTension bool
}

// Store persists relations. Get returns persistence.ErrNotFound for unknown pairs.
type Store interface {
	Get(ctx context.Context, groupID, agentA, agentB string) (*Relation, error)
	Save(ctx context.Context, r *Relation) error
	List(ctx context.Context, filter Filter) ([]*Relation, error)
}

// Matches reports whether r satisfies the filter.
func (f Filter) Matches(r *Relation) bool {
	if f.GroupID != "" && r.GroupID != f.GroupID {
		return false
	}
	if f.AgentID != "" && !r.Involves(f.AgentID) {
		return false
	}
	if f.PositiveTension && r.Tension <= 0 {
		return false
	}
	return true
}

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	relations map[string]*Relation
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{relations: make(map[string]*Relation)}
}

// Get retrieves a relation by its pair, in either order.
func (s *MemoryStore) Get(ctx context.Context, groupID, agentA, agentB string) (*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.relations[Key(groupID, agentA, agentB)]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return r.Clone(), nil
}

// Save upserts a relation.
func (s *MemoryStore) Save(ctx context.Context, r *Relation) error {
	if r == nil || r.GroupID == "" || r.AgentAID == "" || r.AgentBID == "" {
		return persistence.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations[Key(r.GroupID, r.AgentAID, r.AgentBID)] = r.Clone()
	return nil
}

// List returns matching relations ordered by group then pair.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Relation, 0)
	for _, r := range s.relations {
		if filter.Matches(r) {
			result = append(result, r.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return Key(result[i].GroupID, result[i].AgentAID, result[i].AgentBID) <
			Key(result[j].GroupID, result[j].AgentAID, result[j].AgentBID)
	})
	return result, nil
}
