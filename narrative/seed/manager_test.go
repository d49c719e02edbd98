package seed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/sceneflow/persistence"
	"github.com/BaSui01/sceneflow/types"
)

func newTestManager() (*Manager, *MemoryStore) {
	store := NewMemoryStore()
	return NewManager(store, DefaultConfig(), nil), store
}

func createSeed(t *testing.T, m *Manager, group string, latency, maxTurns int) *Seed {
	t.Helper()
	s, err := m.Create(context.Background(), CreateInput{
		GroupID:        group,
		Type:           "secret",
		Title:          "A hidden letter",
		InvolvedAgents: []string{"a1", "a2"},
		LatencyTurns:   latency,
		MaxTurns:       maxTurns,
	})
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func advance(t *testing.T, m *Manager, group string, turns int) {
	t.Helper()
	for i := 0; i < turns; i++ {
		_, err := m.AdvanceTurn(context.Background(), group)
		require.NoError(t, err)
	}
}

func TestManager_LifecycleTimeline(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	s := createSeed(t, m, "g1", 3, 10)
	assert.Equal(t, StatusLatent, s.Status)

	advance(t, m, "g1", 2)
	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLatent, got.Status)

	advance(t, m, "g1", 1)
	got, _ = m.Get(ctx, s.ID)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, 3, got.CurrentTurn)

	advance(t, m, "g1", 4)
	got, _ = m.Get(ctx, s.ID)
	assert.Equal(t, StatusEscalating, got.Status)
	assert.Equal(t, 1, got.EscalationLevel)

	advance(t, m, "g1", 2)
	got, _ = m.Get(ctx, s.ID)
	assert.Equal(t, StatusEscalating, got.Status)
	assert.Equal(t, 1, got.EscalationLevel)

	advance(t, m, "g1", 1)
	got, _ = m.Get(ctx, s.ID)
	assert.Equal(t, StatusExpired, got.Status)
	assert.Equal(t, 10, got.CurrentTurn)

	// terminal seeds are no longer advanced
	advance(t, m, "g1", 3)
	got, _ = m.Get(ctx, s.ID)
	assert.Equal(t, 10, got.CurrentTurn)
}

func TestManager_AdvanceReportsTransitions(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	s := createSeed(t, m, "g1", 1, 10)

	res, err := m.AdvanceTurn(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Advanced)
	assert.Equal(t, []Transition{{SeedID: s.ID, From: StatusLatent, To: StatusActive}}, res.Transitions)

	res, err = m.AdvanceTurn(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, res.Transitions)
}

func TestManager_LatentCanEscalateDirectly(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	s := createSeed(t, m, "g1", 9, 10)

	advance(t, m, "g1", 7)
	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEscalating, got.Status)
	assert.Equal(t, 1, got.EscalationLevel)
}

func TestManager_BudgetCapsNonTerminalSeeds(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	for i := 0; i < 5; i++ {
		createSeed(t, m, "g1", 3, 10)
	}

	s, err := m.Create(ctx, CreateInput{GroupID: "g1", Type: "secret", InvolvedAgents: []string{"a1"}})
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.True(t, types.IsErrorCode(err, types.ErrSeedBudgetExhausted))

	count, err := m.CountActive(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// other groups keep their own budget
	createSeed(t, m, "g2", 3, 10)

	// resolving one frees a slot
	active, err := m.Active(ctx, "g1")
	require.NoError(t, err)
	_, err = m.Resolve(ctx, active[0].ID, "talked it out", ResolutionNatural)
	require.NoError(t, err)
	createSeed(t, m, "g1", 3, 10)
}

func TestManager_CreateDefaults(t *testing.T) {
	m, _ := newTestManager()
	s, err := m.Create(context.Background(), CreateInput{GroupID: "g1", Type: "rumor", InvolvedAgents: []string{"a1"}})
	require.NoError(t, err)
	assert.Equal(t, 5, s.LatencyTurns)
	assert.Equal(t, 20, s.MaxTurns)
	assert.NotEmpty(t, s.ID)

	_, err = m.Create(context.Background(), CreateInput{GroupID: "g1", Type: "rumor"})
	assert.ErrorIs(t, err, persistence.ErrInvalidInput)
}

func TestManager_EscalateForcesStatusFromLevelTwo(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	s := createSeed(t, m, "g1", 3, 10)

	got, err := m.Escalate(ctx, s.ID, "scene pushed it")
	require.NoError(t, err)
	assert.Equal(t, 1, got.EscalationLevel)
	assert.Equal(t, StatusLatent, got.Status)

	got, err = m.Escalate(ctx, s.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, 2, got.EscalationLevel)
	assert.Equal(t, StatusEscalating, got.Status)

	got, _ = m.Escalate(ctx, s.ID, "")
	got, _ = m.Escalate(ctx, s.ID, "")
	assert.Equal(t, MaxEscalationLevel, got.EscalationLevel)
}

func TestManager_ResolveIsTerminal(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	s := createSeed(t, m, "g1", 3, 10)

	got, err := m.StartResolving(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusResolving, got.Status)

	got, err = m.Resolve(ctx, s.ID, "they apologized", ResolutionForced)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, got.Status)
	assert.Equal(t, ResolutionForced, got.ResolutionKind)
	assert.NotNil(t, got.ResolvedAt)

	_, err = m.Escalate(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = m.Resolve(ctx, s.ID, "", ResolutionNatural)
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = m.Resolve(ctx, s.ID, "", "whatever")
	assert.ErrorIs(t, err, persistence.ErrInvalidInput)
}

func TestManager_RecordReference(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	s := createSeed(t, m, "g1", 3, 10)

	_, err := m.RecordReference(ctx, s.ID)
	require.NoError(t, err)
	got, err := m.RecordReference(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReferenceCount)
	assert.NotNil(t, got.LastReferencedAt)

	_, err = m.RecordReference(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestManager_ActiveOrdering(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first := createSeed(t, m, "g1", 3, 10)
	second := createSeed(t, m, "g1", 3, 10)
	third := createSeed(t, m, "g1", 3, 10)

	_, err := m.Escalate(ctx, third.ID, "")
	require.NoError(t, err)
	_, err = m.RecordReference(ctx, first.ID)
	require.NoError(t, err)

	active, err := m.Active(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, third.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)
	assert.Equal(t, first.ID, active[2].ID)

	level, err := m.MaxEscalation(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, level)
}

func TestManager_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	old := createSeed(t, m, "g1", 1, 2)
	advance(t, m, "g1", 2)

	m.now = func() time.Time { return now.Add(8 * 24 * time.Hour) }
	fresh := createSeed(t, m, "g1", 1, 2)
	advance(t, m, "g1", 2)

	n, err := m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	got, err := store.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestManager_ActiveByType(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	createSeed(t, m, "g1", 3, 10)
	_, err := m.Create(ctx, CreateInput{GroupID: "g1", Type: "jealousy", InvolvedAgents: []string{"a3"}})
	require.NoError(t, err)

	seeds, err := m.ActiveByType(ctx, "g1", "jealousy")
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, []string{"a3"}, seeds[0].InvolvedAgents)

	all, err := m.List(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStatus_IsTerminal(t *testing.T) {
	for _, s := range []Status{StatusLatent, StatusActive, StatusEscalating, StatusResolving, StatusResolved, StatusExpired} {
		t.Run(fmt.Sprint(s), func(t *testing.T) {
			want := s == StatusResolved || s == StatusExpired
			assert.Equal(t, want, s.IsTerminal())
			assert.True(t, s.IsValid())
		})
	}
	assert.False(t, Status("DONE").IsValid())
}
