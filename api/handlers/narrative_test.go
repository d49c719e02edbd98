package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/api"
	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/engine"
	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/narrative/loop"
	"github.com/BaSui01/sceneflow/narrative/relation"
	"github.com/BaSui01/sceneflow/narrative/roles"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/narrative/seed"
	"github.com/BaSui01/sceneflow/testutil"
	"github.com/BaSui01/sceneflow/testutil/fixtures"
	"github.com/BaSui01/sceneflow/testutil/mocks"
	"github.com/BaSui01/sceneflow/types"
)

// =============================================================================
// 🧪 测试装配
// =============================================================================

type narrativeAPI struct {
	mux       *http.ServeMux
	seeds     *seed.Manager
	relations *relation.Tracker
	chooser   *mocks.MockChooser
	obs       *mocks.MockObserver
	reloads   []string
}

func newNarrativeAPI(t *testing.T, scenes ...*scene.Scene) *narrativeAPI {
	t.Helper()
	n := &narrativeAPI{
		mux:     http.NewServeMux(),
		chooser: mocks.NewMockChooser().WithAnswer("HUMOR_JOKE"),
		obs:     mocks.NewMockObserver(),
	}

	catalog := scene.NewCatalog(scene.NewMemoryStore(scenes...), nil)
	cfg := seed.DefaultConfig()
	cfg.MaxActive = 2
	n.seeds = seed.NewManager(seed.NewMemoryStore(), cfg, nil)
	n.relations = relation.NewTracker(relation.NewMemoryStore(), nil)
	dir := director.New(catalog, nil, n.seeds, n.relations,
		roles.NewAssigner(n.relations, roles.DefaultWeights(), nil),
		n.chooser, director.DefaultConfig(), nil)

	e, err := engine.New(engine.Components{
		Catalog:   catalog,
		Seeds:     n.seeds,
		Relations: n.relations,
		Director:  dir,
		Executor:  executor.NewExecutor(n.seeds, n.relations, executor.NewMemoryExecutionStore(10), nil),
		States:    director.NewMemoryStateStore(),
		Observer:  n.obs,
	}, engine.Config{}, nil)
	require.NoError(t, err)

	logger := zap.NewNop()
	dh := NewDirectorHandler(e, logger)
	sh := NewSeedHandler(n.seeds, logger)
	ch := NewSceneHandler(catalog, func(trigger string, err error) {
		n.reloads = append(n.reloads, trigger)
	}, logger)
	rh := NewRelationHandler(n.relations, logger)
	mh := NewMaintenanceHandler(e, logger)

	n.mux.HandleFunc("POST /api/v1/groups/{group}/turns", dh.HandleTurn)
	n.mux.HandleFunc("POST /api/v1/groups/{group}/steps/complete", dh.HandleCompleteStep)
	n.mux.HandleFunc("POST /api/v1/groups/{group}/scene/cancel", dh.HandleCancelScene)
	n.mux.HandleFunc("GET /api/v1/groups/{group}/director", dh.HandleStatus)
	n.mux.HandleFunc("GET /api/v1/groups/{group}/history", dh.HandleHistory)
	n.mux.HandleFunc("GET /api/v1/groups/{group}/seeds", sh.HandleList)
	n.mux.HandleFunc("POST /api/v1/groups/{group}/seeds", sh.HandleCreate)
	n.mux.HandleFunc("POST /api/v1/groups/{group}/seeds/{id}/escalate", sh.HandleEscalate)
	n.mux.HandleFunc("POST /api/v1/groups/{group}/seeds/{id}/resolve", sh.HandleResolve)
	n.mux.HandleFunc("POST /api/v1/groups/{group}/seeds/{id}/resolving", sh.HandleStartResolving)
	n.mux.HandleFunc("POST /api/v1/groups/{group}/seeds/{id}/reference", sh.HandleRecordReference)
	n.mux.HandleFunc("GET /api/v1/groups/{group}/relations", rh.HandleList)
	n.mux.HandleFunc("GET /api/v1/scenes", ch.HandleList)
	n.mux.HandleFunc("POST /api/v1/scenes/invalidate", ch.HandleInvalidate)
	n.mux.HandleFunc("POST /api/v1/maintenance/decay", mh.HandleDecay)
	n.mux.HandleFunc("POST /api/v1/maintenance/cleanup", mh.HandleCleanup)
	return n
}

// do 发送请求并解析统一响应；out 非 nil 时解码 data 字段
func (n *narrativeAPI) do(t *testing.T, method, path string, body any, out any) (int, Response) {
	t.Helper()
	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	n.mux.ServeHTTP(w, r)

	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return w.Code, raw.Response
}

// =============================================================================
// 🎬 Director
// =============================================================================

func TestDirectorHandler_SceneLifecycle(t *testing.T) {
	n := newNarrativeAPI(t, fixtures.Joke())

	var turn engine.TurnResult
	code, _ := n.do(t, http.MethodPost, "/api/v1/groups/familia/turns", api.TurnRequest{
		Roster:   fixtures.Roster(),
		Messages: fixtures.Conversation(),
	}, &turn)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, director.ReasonSceneSelected, turn.Decision.Reason, turn.Decision.Error)
	assert.Equal(t, "HUMOR_JOKE", turn.Decision.SceneCode)
	assert.True(t, turn.SceneInProgress)
	require.NotNil(t, turn.Step)
	assert.True(t, turn.Step.IsLast)

	var step engine.StepResult
	code, _ = n.do(t, http.MethodPost, "/api/v1/groups/familia/steps/complete", nil, &step)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, step.Finished)
	assert.Equal(t, "HUMOR_JOKE", step.SceneCode)

	var hist []executor.Execution
	code, _ = n.do(t, http.MethodGet, "/api/v1/groups/familia/history?limit=5", nil, &hist)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].Completed)

	code, _ = n.do(t, http.MethodGet, "/api/v1/groups/familia/director", nil, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestDirectorHandler_AgreementLoopPrefersCorrectiveCategories(t *testing.T) {
	n := newNarrativeAPI(t, fixtures.Catalog()...)

	msgs := append([]types.Message{
		fixtures.UserMessage("user-1", "¿Alguien opina distinto?", fixtures.BaseTime.Add(-10*time.Minute)),
	}, fixtures.AgreementLoop()...)

	var turn engine.TurnResult
	code, _ := n.do(t, http.MethodPost, "/api/v1/groups/familia/turns", api.TurnRequest{
		Roster:     fixtures.Roster(),
		Messages:   msgs,
		EnergyBand: &scene.Band{Min: 0, Max: 1},
	}, &turn)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, director.ReasonSceneSelected, turn.Decision.Reason, turn.Decision.Error)

	kinds := make([]loop.Kind, 0, len(turn.Decision.Loops))
	for _, p := range turn.Decision.Loops {
		kinds = append(kinds, p.Kind)
	}
	assert.Contains(t, kinds, loop.KindAgreement)
	assert.Equal(t, 1, n.obs.Loops[string(loop.KindAgreement)])
	assert.Empty(t, n.obs.SeedTransitions)

	// DEBATE and TENSION lead; the rest follow in code order
	assert.Equal(t, []string{"DEBATE_OPEN", "TENSION_RIVALRY", "HUMOR_JOKE", "VULN_CONFESSION"}, turn.Decision.Candidates)
	assert.Equal(t, "HUMOR_JOKE", turn.Decision.SceneCode)

	assert.Equal(t, 1, n.chooser.CallCount())
	req, ok := n.chooser.LastRequest()
	require.True(t, ok)
	require.NotNil(t, req.Corrective)
	assert.Equal(t, loop.KindAgreement, req.Corrective.Kind)
	testutil.AssertSceneCodes(t, turn.Decision.Candidates, req.Candidates)
}

func TestDirectorHandler_NoSceneInProgress(t *testing.T) {
	n := newNarrativeAPI(t, fixtures.Joke())

	for _, path := range []string{
		"/api/v1/groups/familia/steps/complete",
		"/api/v1/groups/familia/scene/cancel",
	} {
		code, resp := n.do(t, http.MethodPost, path, nil, nil)
		assert.Equal(t, http.StatusConflict, code, path)
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(types.ErrNoSceneInProgress), resp.Error.Code)
	}
}

func TestDirectorHandler_CancelScene(t *testing.T) {
	n := newNarrativeAPI(t, fixtures.Joke())

	code, _ := n.do(t, http.MethodPost, "/api/v1/groups/familia/turns", api.TurnRequest{Roster: fixtures.Roster()}, nil)
	require.Equal(t, http.StatusOK, code)

	var ex executor.Execution
	code, _ = n.do(t, http.MethodPost, "/api/v1/groups/familia/scene/cancel", nil, &ex)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, ex.Completed)
	assert.Equal(t, "HUMOR_JOKE", ex.SceneCode)
}

func TestDirectorHandler_TurnValidation(t *testing.T) {
	n := newNarrativeAPI(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty roster", api.TurnRequest{}, http.StatusBadRequest},
		{"agent without id", api.TurnRequest{Roster: types.Roster{{Name: "Sin ID"}}}, http.StatusBadRequest},
		{"unknown field", map[string]any{"roster": fixtures.Roster(), "mood": "sunny"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := n.do(t, http.MethodPost, "/api/v1/groups/familia/turns", tt.body, nil)
			assert.Equal(t, tt.want, code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/groups/familia/turns", bytes.NewBufferString(`{}`))
	r.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	n.mux.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestDirectorHandler_HistoryRejectsBadLimit(t *testing.T) {
	n := newNarrativeAPI(t)

	code, _ := n.do(t, http.MethodGet, "/api/v1/groups/familia/history?limit=-3", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

// =============================================================================
// 🌱 Seeds
// =============================================================================

func createSeed(t *testing.T, n *narrativeAPI, group string) *seed.Seed {
	t.Helper()
	var s seed.Seed
	code, _ := n.do(t, http.MethodPost, "/api/v1/groups/"+group+"/seeds", api.CreateSeedRequest{
		Type:           "jealousy",
		Title:          "Rencor pendiente",
		InvolvedAgents: []string{"ai-luna", "ai-marco"},
	}, &s)
	require.Equal(t, http.StatusCreated, code)
	return &s
}

func TestSeedHandler_CreateListResolve(t *testing.T) {
	n := newNarrativeAPI(t)
	s := createSeed(t, n, "familia")
	assert.Equal(t, seed.StatusLatent, s.Status)

	var listed []seed.Seed
	code, _ := n.do(t, http.MethodGet, "/api/v1/groups/familia/seeds?status=latent", nil, &listed)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, listed, 1)
	assert.Equal(t, s.ID, listed[0].ID)

	var escalated seed.Seed
	code, _ = n.do(t, http.MethodPost, "/api/v1/groups/familia/seeds/"+s.ID+"/escalate", nil, &escalated)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, escalated.EscalationLevel)
	assert.Equal(t, "manual", escalated.EscalationReason)

	code, _ = n.do(t, http.MethodPost, "/api/v1/groups/familia/seeds/"+s.ID+"/escalate",
		api.EscalateSeedRequest{Reason: "celos"}, &escalated)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, seed.StatusEscalating, escalated.Status)
	assert.Equal(t, "celos", escalated.EscalationReason)

	var resolved seed.Seed
	code, _ = n.do(t, http.MethodPost, "/api/v1/groups/familia/seeds/"+s.ID+"/resolve",
		api.ResolveSeedRequest{Resolution: "Se reconciliaron", Kind: "natural"}, &resolved)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, seed.StatusResolved, resolved.Status)

	code, resp := n.do(t, http.MethodPost, "/api/v1/groups/familia/seeds/"+s.ID+"/escalate", nil, nil)
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrSeedTerminal), resp.Error.Code)
}

func TestSeedHandler_ReferenceAndStartResolving(t *testing.T) {
	n := newNarrativeAPI(t)
	s := createSeed(t, n, "familia")
	base := "/api/v1/groups/familia/seeds/" + s.ID

	var referenced seed.Seed
	for i := 1; i <= 2; i++ {
		code, _ := n.do(t, http.MethodPost, base+"/reference", nil, &referenced)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, i, referenced.ReferenceCount)
	}
	assert.NotNil(t, referenced.LastReferencedAt)

	var resolving seed.Seed
	code, _ := n.do(t, http.MethodPost, base+"/resolving", nil, &resolving)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, seed.StatusResolving, resolving.Status)
	assert.Nil(t, resolving.ResolvedAt)
	assert.Equal(t, 2, resolving.ReferenceCount)

	var active []seed.Seed
	code, _ = n.do(t, http.MethodGet, "/api/v1/groups/familia/seeds?status=resolving", nil, &active)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, active, 1)

	code, _ = n.do(t, http.MethodPost, "/api/v1/groups/oficina/seeds/"+s.ID+"/reference", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = n.do(t, http.MethodPost, base+"/resolve", api.ResolveSeedRequest{Kind: "natural"}, nil)
	require.Equal(t, http.StatusOK, code)
	code, resp := n.do(t, http.MethodPost, base+"/reference", nil, nil)
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrSeedTerminal), resp.Error.Code)
}

func TestSeedHandler_BudgetExhausted(t *testing.T) {
	n := newNarrativeAPI(t)
	createSeed(t, n, "familia")
	createSeed(t, n, "familia")

	code, resp := n.do(t, http.MethodPost, "/api/v1/groups/familia/seeds", api.CreateSeedRequest{
		Type:           "secret",
		InvolvedAgents: []string{"ai-sofia"},
	}, nil)
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrSeedBudgetExhausted), resp.Error.Code)
}

func TestSeedHandler_OtherGroupIsNotFound(t *testing.T) {
	n := newNarrativeAPI(t)
	s := createSeed(t, n, "familia")

	code, _ := n.do(t, http.MethodPost, "/api/v1/groups/oficina/seeds/"+s.ID+"/resolve", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = n.do(t, http.MethodPost, "/api/v1/groups/familia/seeds/missing/escalate", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSeedHandler_Validation(t *testing.T) {
	n := newNarrativeAPI(t)

	code, _ := n.do(t, http.MethodGet, "/api/v1/groups/familia/seeds?status=DORMANT", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = n.do(t, http.MethodPost, "/api/v1/groups/familia/seeds", api.CreateSeedRequest{Type: "secret"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	s := createSeed(t, n, "familia")
	code, _ = n.do(t, http.MethodPost, "/api/v1/groups/familia/seeds/"+s.ID+"/resolve",
		api.ResolveSeedRequest{Kind: "magic"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

// =============================================================================
// 📚 Scenes / 🤝 Relations / 🧹 Maintenance
// =============================================================================

func TestSceneHandler_ListAndInvalidate(t *testing.T) {
	n := newNarrativeAPI(t, fixtures.Catalog()...)

	var list api.SceneListResponse
	code, _ := n.do(t, http.MethodGet, "/api/v1/scenes?category=tension", nil, &list)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, list.Scenes)
	for _, s := range list.Scenes {
		assert.Equal(t, scene.CategoryTension, s.Category)
	}

	var stats scene.Stats
	code, _ = n.do(t, http.MethodPost, "/api/v1/scenes/invalidate", nil, &stats)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, len(fixtures.Catalog()), stats.Total)
	assert.Equal(t, []string{"api"}, n.reloads)
}

func TestRelationHandler_List(t *testing.T) {
	n := newNarrativeAPI(t)
	ctx := context.Background()
	_, err := n.relations.AdjustTension(ctx, "familia", "ai-luna", "ai-marco", 0.4)
	require.NoError(t, err)
	_, err = n.relations.AdjustTension(ctx, "familia", "ai-sofia", "ai-marco", 0.1)
	require.NoError(t, err)

	var all []relation.Relation
	code, _ := n.do(t, http.MethodGet, "/api/v1/groups/familia/relations", nil, &all)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, all, 2)

	var luna []relation.Relation
	code, _ = n.do(t, http.MethodGet, "/api/v1/groups/familia/relations?agent=ai-luna", nil, &luna)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, luna, 1)
}

func TestMaintenanceHandler(t *testing.T) {
	n := newNarrativeAPI(t)
	_, err := n.relations.AdjustTension(context.Background(), "familia", "ai-luna", "ai-marco", 0.4)
	require.NoError(t, err)

	var out api.MaintenanceResponse
	code, _ := n.do(t, http.MethodPost, "/api/v1/maintenance/decay", nil, &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "decay", out.Task)
	assert.Equal(t, 1, out.Affected)

	code, _ = n.do(t, http.MethodPost, "/api/v1/maintenance/cleanup", nil, &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cleanup", out.Task)
	assert.Zero(t, out.Affected)
}
