package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/internal/database"
	"github.com/BaSui01/sceneflow/internal/migration"
	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/narrative/relation"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/narrative/seed"
	"github.com/BaSui01/sceneflow/persistence"
)

func openStores(t *testing.T) *Stores {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sceneflow.db")
	pool, err := database.Open(database.DriverSQLite, path, database.DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(pool.DB()))

	stores := New(pool)
	t.Cleanup(func() { _ = stores.Close() })
	return stores
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testScene(code string, active bool) *scene.Scene {
	energy := scene.Band{Min: 0.2, Max: 0.8}
	return &scene.Scene{
		Code:     code,
		Name:     "Scene " + code,
		Category: scene.CategoryHumor,
		MinAIs:   2,
		MaxAIs:   4,
		Roles: []scene.Role{
			{Name: "protagonist", Tag: scene.TagProtagonist},
			{Name: "jester", Tag: scene.TagComic},
		},
		Interventions: []scene.Intervention{
			{Role: "protagonist", Directive: "Tell {{jester}} a story", TargetRole: "jester", Delay: 2 * time.Second},
			{Role: "jester", Directive: "Laugh", Tone: "warm"},
		},
		Consequences: scene.Consequences{
			Seeds: []scene.SeedTemplate{{Type: "secret", Title: "A secret", InvolvedRoles: []string{"protagonist"}}},
			Effects: []scene.Effect{
				{Kind: scene.EffectAdjustTension, RoleA: "protagonist", RoleB: "jester", Delta: -0.1},
			},
		},
		Triggers: scene.Triggers{Energy: &energy},
		Active:   active,
	}
}

func TestSceneStore(t *testing.T) {
	stores := openStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Scenes.Save(ctx, testScene("B", true)))
	require.NoError(t, stores.Scenes.Save(ctx, testScene("A", true)))
	require.NoError(t, stores.Scenes.Save(ctx, testScene("OFF", false)))

	active, err := stores.Scenes.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "A", active[0].Code)
	assert.Equal(t, "B", active[1].Code)

	got, err := stores.Scenes.GetByCode(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, testScene("A", true).Interventions, got.Interventions)
	assert.Equal(t, testScene("A", true).Consequences, got.Consequences)
	require.NotNil(t, got.Triggers.Energy)
	assert.Equal(t, 0.8, got.Triggers.Energy.Max)
	assert.Nil(t, got.Triggers.Tension)

	_, err = stores.Scenes.GetByCode(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	// upsert keeps one row
	updated := testScene("A", true)
	updated.Name = "Renamed"
	require.NoError(t, stores.Scenes.Save(ctx, updated))
	got, err = stores.Scenes.GetByCode(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	assert.ErrorIs(t, stores.Scenes.Save(ctx, &scene.Scene{}), persistence.ErrInvalidInput)
}

func TestSceneStore_IncrementUsage(t *testing.T) {
	stores := openStores(t)
	ctx := context.Background()
	require.NoError(t, stores.Scenes.Save(ctx, testScene("A", true)))

	engagement := 0.5
	_, err := stores.Scenes.IncrementUsage(ctx, "A", scene.UsageUpdate{Success: true, Engagement: &engagement, At: base})
	require.NoError(t, err)
	stats, err := stores.Scenes.IncrementUsage(ctx, "A", scene.UsageUpdate{Success: false, At: base.Add(time.Minute)})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Count)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)

	got, err := stores.Scenes.GetByCode(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, stats.Count, got.Usage.Count)
	assert.InDelta(t, 0.25, got.Usage.AvgEngagement, 1e-9)
	require.NotNil(t, got.Usage.LastUsedAt)
	assert.True(t, got.Usage.LastUsedAt.Equal(base.Add(time.Minute)))

	_, err = stores.Scenes.IncrementUsage(ctx, "missing", scene.UsageUpdate{At: base})
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testSeed(id, group string, status seed.Status, created time.Time) *seed.Seed {
	return &seed.Seed{
		ID:             id,
		GroupID:        group,
		Type:           "secret",
		Title:          "Hidden letter",
		InvolvedAgents: []string{"a1", "a2"},
		LatencyTurns:   5,
		MaxTurns:       20,
		Status:         status,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestSeedStore(t *testing.T) {
	stores := openStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Seeds.Create(ctx, testSeed("s2", "g1", seed.StatusActive, base.Add(time.Second))))
	require.NoError(t, stores.Seeds.Create(ctx, testSeed("s1", "g1", seed.StatusLatent, base)))
	require.NoError(t, stores.Seeds.Create(ctx, testSeed("s3", "g2", seed.StatusActive, base)))

	assert.ErrorIs(t, stores.Seeds.Create(ctx, testSeed("s1", "g1", seed.StatusLatent, base)), persistence.ErrAlreadyExists)

	list, err := stores.Seeds.List(ctx, seed.Filter{GroupID: "g1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].ID, "ordered by creation time")
	assert.Equal(t, []string{"a1", "a2"}, list[0].InvolvedAgents)

	list, err = stores.Seeds.List(ctx, seed.Filter{Statuses: []seed.Status{seed.StatusActive}})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	s, err := stores.Seeds.Get(ctx, "s1")
	require.NoError(t, err)
	resolved := base.Add(time.Hour)
	s.Status = seed.StatusResolved
	s.ResolutionKind = seed.ResolutionNatural
	s.Resolution = "confessed"
	s.ResolvedAt = &resolved
	s.UpdatedAt = resolved
	require.NoError(t, stores.Seeds.Save(ctx, s))

	got, err := stores.Seeds.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, seed.StatusResolved, got.Status)
	assert.Equal(t, "confessed", got.Resolution)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(resolved))
	assert.True(t, got.CreatedAt.Equal(base))

	assert.ErrorIs(t, stores.Seeds.Save(ctx, testSeed("nope", "g1", seed.StatusActive, base)), persistence.ErrNotFound)
	_, err = stores.Seeds.Get(ctx, "nope")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSeedStore_DeleteExpired(t *testing.T) {
	stores := openStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Seeds.Create(ctx, testSeed("old", "g1", seed.StatusExpired, base)))
	require.NoError(t, stores.Seeds.Create(ctx, testSeed("fresh", "g1", seed.StatusExpired, base.Add(48*time.Hour))))
	require.NoError(t, stores.Seeds.Create(ctx, testSeed("live", "g1", seed.StatusActive, base)))

	n, err := stores.Seeds.DeleteExpired(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := stores.Seeds.List(ctx, seed.Filter{GroupID: "g1"})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRelationStore_WithTracker(t *testing.T) {
	stores := openStores(t)
	ctx := context.Background()
	tracker := relation.NewTracker(stores.Relations, zap.NewNop())

	_, err := tracker.Update(ctx, "g1", "zoe", "ana", relation.Update{
		AffinityDelta: 5,
		TensionDelta:  0.4,
		AddDynamics:   []string{"rivalry"},
		SharedMoment:  "the storm",
		SceneCode:     "STORM",
	})
	require.NoError(t, err)
	_, err = tracker.Update(ctx, "g1", "ana", "zoe", relation.Update{AffinityDelta: 1})
	require.NoError(t, err)
	_, err = tracker.GetOrCreate(ctx, "g1", "ana", "bob")
	require.NoError(t, err)

	r, err := stores.Relations.Get(ctx, "g1", "zoe", "ana")
	require.NoError(t, err)
	assert.Equal(t, "ana", r.AgentAID)
	assert.Equal(t, "zoe", r.AgentBID)
	assert.InDelta(t, 6.0, r.Affinity, 1e-9)
	assert.Equal(t, relation.TypeAllies, r.Type)
	assert.Equal(t, []string{"rivalry"}, r.Dynamics)
	require.Len(t, r.SharedMoments, 1)
	assert.Equal(t, "STORM", r.SharedMoments[0].SceneCode)
	assert.Equal(t, 2, r.InteractionCount)

	all, err := stores.Relations.List(ctx, relation.Filter{GroupID: "g1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "bob", all[0].AgentBID)

	tense, err := stores.Relations.List(ctx, relation.Filter{GroupID: "g1", PositiveTension: true})
	require.NoError(t, err)
	assert.Len(t, tense, 1)

	forZoe, err := stores.Relations.List(ctx, relation.Filter{AgentID: "zoe"})
	require.NoError(t, err)
	assert.Len(t, forZoe, 1)

	_, err = stores.Relations.Get(ctx, "g1", "bob", "zoe")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestExecutionStore(t *testing.T) {
	stores := openStores(t)
	ctx := context.Background()

	for i, code := range []string{"A", "B", "C"} {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, stores.Executions.Record(ctx, &executor.Execution{
			ID:           "e" + code,
			GroupID:      "g1",
			SceneCode:    code,
			Participants: []string{"a1", "a2"},
			Bindings:     map[string]string{"protagonist": "a1"},
			Completed:    i != 1,
			TotalSteps:   2,
			StartedAt:    at,
			FinishedAt:   at,
		}))
	}

	list, err := stores.Executions.List(ctx, "g1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "C", list[0].SceneCode)
	assert.Equal(t, "B", list[1].SceneCode)
	assert.False(t, list[1].Completed)
	assert.Equal(t, map[string]string{"protagonist": "a1"}, list[0].Bindings)

	all, err := stores.Executions.List(ctx, "g1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.ErrorIs(t, stores.Executions.Record(ctx, &executor.Execution{}), persistence.ErrInvalidInput)
}

func TestStateStore(t *testing.T) {
	stores := openStores(t)
	ctx := context.Background()

	_, err := stores.States.Get(ctx, "g1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	st, err := director.LoadState(ctx, stores.States, "g1")
	require.NoError(t, err)
	st.Turn = 7
	st.RememberScene("A")
	st.FinishScene(true, base)
	st.MarkProtagonist("a1", 7)
	st.UpdatedAt = base
	require.NoError(t, stores.States.Save(ctx, st))

	st.Turn = 8
	require.NoError(t, stores.States.Save(ctx, st))

	got, err := stores.States.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 8, got.Turn)
	assert.Equal(t, []string{"A"}, got.RecentScenes)
	assert.Equal(t, 7, got.LastProtagonist["a1"])
	require.NotNil(t, got.LastDramaticAt)
}

func TestStores_MigratedSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrated.db")

	m, err := migration.NewMigrator(&migration.Config{
		DatabaseType: migration.DatabaseTypeSQLite,
		DatabaseURL:  migration.BuildDatabaseURL(migration.DatabaseTypeSQLite, "", 0, path, "", "", ""),
	})
	require.NoError(t, err)
	require.NoError(t, m.Up(context.Background()))
	require.NoError(t, m.Close())

	pool, err := database.Open(database.DriverSQLite, path, database.DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)
	stores := New(pool)
	defer stores.Close()
	ctx := context.Background()

	require.NoError(t, stores.Scenes.Save(ctx, testScene("A", true)))
	require.NoError(t, stores.Seeds.Create(ctx, testSeed("s1", "g1", seed.StatusLatent, base)))
	tracker := relation.NewTracker(stores.Relations, zap.NewNop())
	_, err = tracker.Update(ctx, "g1", "a", "b", relation.Update{TensionDelta: 0.2})
	require.NoError(t, err)
	require.NoError(t, stores.Executions.Record(ctx, &executor.Execution{
		ID: "e1", GroupID: "g1", SceneCode: "A", StartedAt: base, FinishedAt: base,
	}))
	require.NoError(t, stores.States.Save(ctx, director.NewGroupSceneState("g1")))

	active, err := stores.Scenes.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
