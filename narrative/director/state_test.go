package director

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/persistence"
	"github.com/BaSui01/sceneflow/types"
)

func testPlan() *executor.Plan {
	return &executor.Plan{
		GroupID:   "g1",
		SceneCode: "DUELO",
		Roles:     []string{"PROTAGONISTA", "ANTAGONISTA"},
		Bindings:  map[string]string{"PROTAGONISTA": "a1", "ANTAGONISTA": "b2"},
		Steps:     []executor.Step{{Index: 0}, {Index: 1}},
	}
}

func TestGroupSceneState_Lifecycle(t *testing.T) {
	st := NewGroupSceneState("g1")
	assert.False(t, st.InProgress())

	_, err := st.AdvanceStep()
	assert.True(t, types.IsErrorCode(err, types.ErrNoSceneInProgress))

	require.NoError(t, st.Begin(testPlan(), testNow))
	assert.True(t, st.InProgress())
	assert.Equal(t, 2, st.TotalSteps)

	err = st.Begin(testPlan(), testNow)
	assert.True(t, types.IsErrorCode(err, types.ErrSceneInProgress))

	done, err := st.AdvanceStep()
	require.NoError(t, err)
	assert.False(t, done)
	done, err = st.AdvanceStep()
	require.NoError(t, err)
	assert.True(t, done)

	st.Cancel()
	assert.False(t, st.InProgress())
	assert.Nil(t, st.Plan)
	assert.Equal(t, []string{"DUELO"}, st.RecentScenes, "started scenes stay recent after cancel")
	assert.Zero(t, st.ScenesExecuted)
	assert.Nil(t, st.LastDramaticAt)
}

func TestGroupSceneState_RecentScenesAreBounded(t *testing.T) {
	st := NewGroupSceneState("g1")
	for i := 0; i < 15; i++ {
		st.RememberScene(fmt.Sprintf("S%02d", i))
		st.FinishScene(i == 3, testNow.Add(time.Duration(i)*time.Minute))
	}
	assert.Len(t, st.RecentScenes, MaxRecentScenes)
	assert.Equal(t, "S05", st.RecentScenes[0])
	assert.Equal(t, []string{"S13", "S14"}, st.LastScenes(2))
	assert.Equal(t, 15, st.ScenesExecuted)
	require.NotNil(t, st.LastDramaticAt)
	assert.Equal(t, testNow.Add(3*time.Minute), *st.LastDramaticAt)
	assert.Nil(t, st.LastScenes(0))
}

func TestMemoryStateStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	_, err := store.Get(ctx, "g1")
	assert.True(t, errors.Is(err, persistence.ErrNotFound))

	st, err := LoadState(ctx, store, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", st.GroupID)

	require.NoError(t, st.Begin(testPlan(), testNow))
	require.NoError(t, store.Save(ctx, st))

	st.Plan.Bindings["PROTAGONISTA"] = "mutated"
	got, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.Plan.Bindings["PROTAGONISTA"])
	assert.Equal(t, "DUELO", got.CurrentSceneCode)

	assert.Error(t, store.Save(ctx, &GroupSceneState{}))
}

func TestGroupSceneState_ApplyTo(t *testing.T) {
	st := NewGroupSceneState("g1")
	st.MarkProtagonist("a1", 7)
	st.MarkProtagonist("b2", 2)
	st.MarkProtagonist("", 9)

	roster := types.Roster{
		{ID: "a1", LastProtagonistTurn: -1},
		{ID: "b2", LastProtagonistTurn: 5},
		{ID: "c3", LastProtagonistTurn: -1},
	}
	got := st.ApplyTo(roster)
	assert.Equal(t, 7, got[0].LastProtagonistTurn)
	assert.Equal(t, 5, got[1].LastProtagonistTurn)
	assert.Equal(t, -1, got[2].LastProtagonistTurn)
	assert.Equal(t, -1, roster[0].LastProtagonistTurn)
	assert.Len(t, st.LastProtagonist, 2)
}
