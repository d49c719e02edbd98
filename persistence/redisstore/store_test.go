package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/sceneflow/internal/cache"
	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/persistence"
)

func newCache(t *testing.T) (*miniredis.Miniredis, *cache.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := cache.NewManager(cache.Config{Addr: mr.Addr(), KeyPrefix: "sf:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func TestStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, c := newCache(t)
	store := NewStateStore(c, time.Hour, nil)

	_, err := store.Get(ctx, "g1")
	assert.True(t, errors.Is(err, persistence.ErrNotFound))

	st := director.NewGroupSceneState("g1")
	st.Turn = 4
	require.NoError(t, st.Begin(&executor.Plan{
		GroupID:   "g1",
		SceneCode: "DUELO",
		Roles:     []string{"PROTAGONISTA"},
		Bindings:  map[string]string{"PROTAGONISTA": "a1"},
		Steps:     []executor.Step{{Index: 0, AgentID: "a1", Directive: "Habla"}},
	}, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	st.FinishScene(true, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Turn)
	assert.Equal(t, "DUELO", got.CurrentSceneCode)
	require.NotNil(t, got.Plan)
	assert.Equal(t, "Habla", got.Plan.Steps[0].Directive)
	assert.Equal(t, []string{"DUELO"}, got.RecentScenes)
	assert.NotNil(t, got.LastDramaticAt)

	assert.True(t, mr.Exists("sf:state:g1"))
	assert.Equal(t, time.Hour, mr.TTL("sf:state:g1"))

	assert.ErrorIs(t, store.Save(ctx, &director.GroupSceneState{}), persistence.ErrInvalidInput)
	assert.NoError(t, store.Ping(ctx))
}

func TestExecutionStore_Bounded(t *testing.T) {
	ctx := context.Background()
	_, c := newCache(t)
	store := NewExecutionStore(c, 3)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, &executor.Execution{ID: fmt.Sprint(i), GroupID: "g1", SceneCode: "S"}))
	}
	all, err := store.List(ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "4", all[0].ID)
	assert.Equal(t, "2", all[2].ID)

	one, err := store.List(ctx, "g1", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	none, err := store.List(ctx, "g2", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInvalidator(t *testing.T) {
	_, c := newCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv := NewInvalidator(c, nil)
	var hits atomic.Int32
	require.NoError(t, inv.Listen(ctx, func() { hits.Add(1) }))
	require.NoError(t, inv.Broadcast(ctx))

	assert.Eventually(t, func() bool { return hits.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}
