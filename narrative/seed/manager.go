package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/persistence"
	"github.com/BaSui01/sceneflow/types"
)

// ErrBudgetExhausted is returned by Create when the group already holds the
// maximum number of non-terminal seeds. Nothing is written in that case.
var ErrBudgetExhausted = types.NewError(types.ErrSeedBudgetExhausted, "group seed budget exhausted")

// ErrTerminal is returned when operating on a RESOLVED or EXPIRED seed.
var ErrTerminal = types.NewError(types.ErrSeedTerminal, "seed is in a terminal status")

// Config tunes the seed lifecycle.
type Config struct {
	// MaxActive is the per-group cap on non-terminal seeds (default: 5)
	MaxActive int `json:"max_active" yaml:"max_active"`
	// DefaultLatencyTurns applies when a seed is created without latency (default: 5)
	DefaultLatencyTurns int `json:"default_latency_turns" yaml:"default_latency_turns"`
	// DefaultMaxTurns applies when a seed is created without a lifetime (default: 20)
	DefaultMaxTurns int `json:"default_max_turns" yaml:"default_max_turns"`
	// EscalationRatio is the share of MaxTurns after which seeds escalate (default: 0.7)
	EscalationRatio float64 `json:"escalation_ratio" yaml:"escalation_ratio"`
	// Retention keeps EXPIRED rows this long before CleanupExpired purges them (default: 7 days)
	Retention time.Duration `json:"retention" yaml:"retention"`
}

// DefaultConfig returns the default seed configuration
func DefaultConfig() Config {
	return Config{
		MaxActive:           5,
		DefaultLatencyTurns: 5,
		DefaultMaxTurns:     20,
		EscalationRatio:     0.7,
		Retention:           7 * 24 * time.Hour,
	}
}

// CreateInput describes a new seed.
type CreateInput struct {
	GroupID         string
	Type            string
	Title           string
	Content         string
	InvolvedAgents  []string
	OriginAgentID   string
	SourceSceneCode string
	LatencyTurns    int
	MaxTurns        int
}

// Transition records one status change made by AdvanceTurn.
type Transition struct {
	SeedID string `json:"seed_id"`
	From   Status `json:"from"`
	To     Status `json:"to"`
}

// AdvanceResult summarizes one AdvanceTurn pass.
type AdvanceResult struct {
	Advanced    int          `json:"advanced"`
	Transitions []Transition `json:"transitions"`
}

// Manager runs the tension seed state machine.
type Manager struct {
	store  Store
	config Config
	logger *zap.Logger
	now    func() time.Time

	// createMu keeps the count-then-insert in Create atomic within a process.
	createMu sync.Mutex
}

// NewManager creates a seed manager.
func NewManager(store Store, config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.MaxActive <= 0 {
		config.MaxActive = def.MaxActive
	}
	if config.DefaultLatencyTurns <= 0 {
		config.DefaultLatencyTurns = def.DefaultLatencyTurns
	}
	if config.DefaultMaxTurns <= 0 {
		config.DefaultMaxTurns = def.DefaultMaxTurns
	}
	if config.EscalationRatio <= 0 || config.EscalationRatio > 1 {
		config.EscalationRatio = def.EscalationRatio
	}
	if config.Retention <= 0 {
		config.Retention = def.Retention
	}
	return &Manager{
		store:  store,
		config: config,
		logger: logger.With(zap.String("component", "seed_manager")),
		now:    time.Now,
	}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Create opens a new LATENT seed, or returns ErrBudgetExhausted when the
// group is full.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*Seed, error) {
	if in.GroupID == "" || strings.TrimSpace(in.Type) == "" {
		return nil, fmt.Errorf("seed needs group and type: %w", persistence.ErrInvalidInput)
	}
	if len(in.InvolvedAgents) == 0 {
		return nil, fmt.Errorf("seed needs participants: %w", persistence.ErrInvalidInput)
	}

	latency := in.LatencyTurns
	if latency <= 0 {
		latency = m.config.DefaultLatencyTurns
	}
	maxTurns := in.MaxTurns
	if maxTurns <= 0 {
		maxTurns = m.config.DefaultMaxTurns
	}
	if latency > maxTurns {
		latency = maxTurns
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	count, err := m.CountActive(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}
	if count >= m.config.MaxActive {
		m.logger.Info("seed budget exhausted",
			zap.String("group_id", in.GroupID),
			zap.String("type", in.Type),
			zap.Int("active", count),
		)
		return nil, ErrBudgetExhausted
	}

	now := m.now()
	s := &Seed{
		ID:              uuid.New().String(),
		GroupID:         in.GroupID,
		Type:            in.Type,
		Title:           in.Title,
		Content:         in.Content,
		InvolvedAgents:  slices.Clone(in.InvolvedAgents),
		OriginAgentID:   in.OriginAgentID,
		SourceSceneCode: in.SourceSceneCode,
		LatencyTurns:    latency,
		MaxTurns:        maxTurns,
		Status:          StatusLatent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create seed: %w", err)
	}

	m.logger.Debug("seed created",
		zap.String("group_id", s.GroupID),
		zap.String("seed_id", s.ID),
		zap.String("type", s.Type),
	)
	return s, nil
}

// AdvanceTurn moves every non-terminal seed of the group forward one turn.
// Expiry wins over escalation, which wins over activation.
func (m *Manager) AdvanceTurn(ctx context.Context, groupID string) (AdvanceResult, error) {
	seeds, err := m.store.List(ctx, Filter{GroupID: groupID, Statuses: NonTerminalStatuses})
	if err != nil {
		return AdvanceResult{}, fmt.Errorf("list seeds: %w", err)
	}

	result := AdvanceResult{Transitions: make([]Transition, 0)}
	now := m.now()
	var errs []error

	for _, s := range seeds {
		from := s.Status
		m.step(s)
		s.UpdatedAt = now

		if err := m.store.Save(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("advance %s: %w", s.ID, err))
			continue
		}
		result.Advanced++
		if s.Status != from {
			result.Transitions = append(result.Transitions, Transition{SeedID: s.ID, From: from, To: s.Status})
		}
	}

	if len(result.Transitions) > 0 {
		m.logger.Debug("seeds advanced",
			zap.String("group_id", groupID),
			zap.Int("advanced", result.Advanced),
			zap.Int("transitions", len(result.Transitions)),
		)
	}
	return result, errors.Join(errs...)
}

func (m *Manager) step(s *Seed) {
	s.CurrentTurn++

	switch {
	case s.CurrentTurn >= s.MaxTurns:
		s.Status = StatusExpired
	case float64(s.CurrentTurn) >= m.escalationTurn(s) && s.Status != StatusEscalating:
		s.Status = StatusEscalating
		s.EscalationLevel = min(s.EscalationLevel+1, MaxEscalationLevel)
		s.EscalationReason = "turn threshold"
	case s.Status == StatusLatent && s.CurrentTurn >= s.LatencyTurns:
		s.Status = StatusActive
	}
}

func (m *Manager) escalationTurn(s *Seed) float64 {
	return math.Round(m.config.EscalationRatio*float64(s.MaxTurns)*1e9) / 1e9
}

// Escalate bumps the escalation level; from level 2 the seed is ESCALATING.
func (m *Manager) Escalate(ctx context.Context, id, reason string) (*Seed, error) {
	return m.mutate(ctx, id, func(s *Seed) error {
		s.EscalationLevel = min(s.EscalationLevel+1, MaxEscalationLevel)
		s.EscalationReason = reason
		if s.EscalationLevel >= 2 {
			s.Status = StatusEscalating
		}
		return nil
	})
}

// Resolve closes the seed for good.
func (m *Manager) Resolve(ctx context.Context, id, resolution string, kind ResolutionKind) (*Seed, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("resolution kind %q: %w", kind, persistence.ErrInvalidInput)
	}
	return m.mutate(ctx, id, func(s *Seed) error {
		now := m.now()
		s.Status = StatusResolved
		s.Resolution = resolution
		s.ResolutionKind = kind
		s.ResolvedAt = &now
		return nil
	})
}

// StartResolving marks the seed RESOLVING without closing it.
func (m *Manager) StartResolving(ctx context.Context, id string) (*Seed, error) {
	return m.mutate(ctx, id, func(s *Seed) error {
		s.Status = StatusResolving
		return nil
	})
}

// RecordReference notes that the conversation touched the thread.
func (m *Manager) RecordReference(ctx context.Context, id string) (*Seed, error) {
	return m.mutate(ctx, id, func(s *Seed) error {
		now := m.now()
		s.ReferenceCount++
		s.LastReferencedAt = &now
		return nil
	})
}

// CleanupExpired purges EXPIRED seeds older than the retention window.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now().Add(-m.config.Retention))
	if err != nil {
		return 0, fmt.Errorf("cleanup expired seeds: %w", err)
	}
	if n > 0 {
		m.logger.Info("expired seeds purged", zap.Int("count", n))
	}
	return n, nil
}

// Get returns one seed.
func (m *Manager) Get(ctx context.Context, id string) (*Seed, error) {
	return m.store.Get(ctx, id)
}

// List returns the group's seeds, optionally restricted to statuses.
func (m *Manager) List(ctx context.Context, groupID string, statuses ...Status) ([]*Seed, error) {
	return m.store.List(ctx, Filter{GroupID: groupID, Statuses: statuses})
}

// Active returns the group's non-terminal seeds, most pressing first.
func (m *Manager) Active(ctx context.Context, groupID string) ([]*Seed, error) {
	seeds, err := m.store.List(ctx, Filter{GroupID: groupID, Statuses: NonTerminalStatuses})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(seeds, ByPriority)
	return seeds, nil
}

// ActiveByType returns non-terminal seeds of one type, oldest first.
func (m *Manager) ActiveByType(ctx context.Context, groupID, seedType string) ([]*Seed, error) {
	return m.store.List(ctx, Filter{GroupID: groupID, Type: seedType, Statuses: NonTerminalStatuses})
}

// CountActive counts the group's non-terminal seeds.
func (m *Manager) CountActive(ctx context.Context, groupID string) (int, error) {
	seeds, err := m.store.List(ctx, Filter{GroupID: groupID, Statuses: NonTerminalStatuses})
	if err != nil {
		return 0, fmt.Errorf("count seeds: %w", err)
	}
	return len(seeds), nil
}

// MaxEscalation returns the highest escalation level among active seeds.
func (m *Manager) MaxEscalation(ctx context.Context, groupID string) (int, error) {
	seeds, err := m.store.List(ctx, Filter{GroupID: groupID, Statuses: NonTerminalStatuses})
	if err != nil {
		return 0, err
	}
	level := 0
	for _, s := range seeds {
		level = max(level, s.EscalationLevel)
	}
	return level, nil
}

func (m *Manager) mutate(ctx context.Context, id string, fn func(*Seed) error) (*Seed, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status.IsTerminal() {
		return nil, ErrTerminal
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = m.now()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save seed: %w", err)
	}
	return s, nil
}
