package relation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/persistence"
)

// Update describes one interaction applied to a relation.
type Update struct {
	AffinityDelta  float64
	TensionDelta   float64
	AddDynamics    []string
	RemoveDynamics []string
	// SharedMoment is recorded when non-empty.
	SharedMoment string
	SceneCode    string
}

// Tracker manages pairwise relations between agents of a group.
type Tracker struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker creates a tracker over store.
func NewTracker(store Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:  store,
		logger: logger.With(zap.String("component", "relation_tracker")),
		now:    time.Now,
	}
}

// GetOrCreate returns the relation of an unordered pair, creating a neutral one on first use.
func (t *Tracker) GetOrCreate(ctx context.Context, groupID, agentA, agentB string) (*Relation, error) {
	if groupID == "" || agentA == "" || agentB == "" || agentA == agentB {
		return nil, fmt.Errorf("relation pair %q/%q: %w", agentA, agentB, persistence.ErrInvalidInput)
	}

	r, err := t.store.Get(ctx, groupID, agentA, agentB)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("get relation: %w", err)
	}

	a, b := CanonicalPair(agentA, agentB)
	now := t.now()
	r = &Relation{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		AgentAID:  a,
		AgentBID:  b,
		Type:      TypeNeutral,
		Dynamics:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("create relation: %w", err)
	}
	return r, nil
}

// Find returns the relation without creating it.
func (t *Tracker) Find(ctx context.Context, groupID, agentA, agentB string) (*Relation, bool, error) {
	r, err := t.store.Get(ctx, groupID, agentA, agentB)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// Update applies an interaction. Affinity and tension are clamped and the
// relation type is recomputed from the new affinity.
func (t *Tracker) Update(ctx context.Context, groupID, agentA, agentB string, u Update) (*Relation, error) {
	return t.mutate(ctx, groupID, agentA, agentB, func(r *Relation, now time.Time) {
		r.setAffinity(r.Affinity + u.AffinityDelta)
		r.setTension(r.Tension + u.TensionDelta)
		for _, d := range u.AddDynamics {
			r.addDynamic(d)
		}
		for _, d := range u.RemoveDynamics {
			r.removeDynamic(d)
		}
		if u.SharedMoment != "" {
			r.addMoment(Moment{Description: u.SharedMoment, SceneCode: u.SceneCode, At: now})
		}
		r.InteractionCount++
		r.LastInteractionAt = now
	})
}

// AdjustTension shifts tension by delta within [0,1].
func (t *Tracker) AdjustTension(ctx context.Context, groupID, agentA, agentB string, delta float64) (*Relation, error) {
	return t.mutate(ctx, groupID, agentA, agentB, func(r *Relation, _ time.Time) {
		r.setTension(r.Tension + delta)
	})
}

// AddDynamic adds a tag; adding an existing tag is a no-op.
func (t *Tracker) AddDynamic(ctx context.Context, groupID, agentA, agentB, tag string) (*Relation, error) {
	return t.mutate(ctx, groupID, agentA, agentB, func(r *Relation, _ time.Time) {
		r.addDynamic(tag)
	})
}

// RemoveDynamic removes a tag; removing a missing tag is a no-op.
func (t *Tracker) RemoveDynamic(ctx context.Context, groupID, agentA, agentB, tag string) (*Relation, error) {
	return t.mutate(ctx, groupID, agentA, agentB, func(r *Relation, _ time.Time) {
		r.removeDynamic(tag)
	})
}

// AddSharedMoment records a moment, keeping only the most recent MaxSharedMoments.
func (t *Tracker) AddSharedMoment(ctx context.Context, groupID, agentA, agentB, description, sceneCode string) (*Relation, error) {
	return t.mutate(ctx, groupID, agentA, agentB, func(r *Relation, now time.Time) {
		r.addMoment(Moment{Description: description, SceneCode: sceneCode, At: now})
	})
}

// DecayTension lowers tension on every relation with positive tension by
// amount, across all groups. It returns the number of relations touched.
func (t *Tracker) DecayTension(ctx context.Context, amount float64) (int, error) {
	if amount <= 0 {
		return 0, nil
	}

	rels, err := t.store.List(ctx, Filter{PositiveTension: true})
	if err != nil {
		return 0, fmt.Errorf("list tense relations: %w", err)
	}

	now := t.now()
	touched := 0
	var errs []error
	for _, r := range rels {
		r.setTension(r.Tension - amount)
		r.UpdatedAt = now
		if err := t.store.Save(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("decay %s: %w", r.ID, err))
			continue
		}
		touched++
	}

	t.logger.Debug("tension decayed", zap.Int("relations", touched), zap.Float64("amount", amount))
	return touched, errors.Join(errs...)
}

// ForAgent lists the relations of one agent within a group.
func (t *Tracker) ForAgent(ctx context.Context, groupID, agentID string) ([]*Relation, error) {
	return t.store.List(ctx, Filter{GroupID: groupID, AgentID: agentID})
}

// ForGroup lists every relation of a group.
func (t *Tracker) ForGroup(ctx context.Context, groupID string) ([]*Relation, error) {
	return t.store.List(ctx, Filter{GroupID: groupID})
}

// MeanTension averages tension over the relations among agentIDs.
// Pairs without a stored relation count as zero tension.
func (t *Tracker) MeanTension(ctx context.Context, groupID string, agentIDs []string) (float64, error) {
	if len(agentIDs) < 2 {
		return 0, nil
	}

	rels, err := t.ForGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	byKey := make(map[string]*Relation, len(rels))
	for _, r := range rels {
		byKey[Key(groupID, r.AgentAID, r.AgentBID)] = r
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(agentIDs); i++ {
		for j := i + 1; j < len(agentIDs); j++ {
			pairs++
			if r, ok := byKey[Key(groupID, agentIDs[i], agentIDs[j])]; ok {
				sum += r.Tension
			}
		}
	}
	return sum / float64(pairs), nil
}

func (t *Tracker) mutate(ctx context.Context, groupID, agentA, agentB string, fn func(*Relation, time.Time)) (*Relation, error) {
	r, err := t.GetOrCreate(ctx, groupID, agentA, agentB)
	if err != nil {
		return nil, err
	}

	now := t.now()
	fn(r, now)
	r.UpdatedAt = now

	if err := t.store.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("save relation: %w", err)
	}
	return r, nil
}
