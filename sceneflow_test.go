package sceneflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/engine"
	"github.com/BaSui01/sceneflow/testutil"
	"github.com/BaSui01/sceneflow/testutil/fixtures"
	"github.com/BaSui01/sceneflow/testutil/mocks"
)

func TestNew_RequiresChooser(t *testing.T) {
	_, err := New(WithScenes(fixtures.Joke()))
	assert.Error(t, err)
}

func TestNew_WithOpenAIBuildsChooser(t *testing.T) {
	e, err := New(WithOpenAI("gpt-4o-mini"), WithAPIKey("sk-test"))
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestNew_RunsASceneEndToEnd(t *testing.T) {
	ctx := context.Background()
	obs := mocks.NewMockObserver()
	e, err := New(
		WithScenes(fixtures.Joke()),
		WithChooser(mocks.NewMockChooser().WithAnswer("HUMOR_JOKE")),
		WithObserver(obs),
	)
	require.NoError(t, err)

	res, err := e.HandleTurn(ctx, engine.TurnInput{GroupID: "familia", Roster: fixtures.Roster()})
	require.NoError(t, err)
	require.Equal(t, director.ReasonSceneSelected, res.Decision.Reason, res.Decision.Error)

	step, err := e.CompleteStep(ctx, "familia")
	require.NoError(t, err)
	assert.True(t, step.Finished)
	assert.Equal(t, 1, obs.DecisionCount(string(director.ReasonSceneSelected)))
	assert.Equal(t, 1, obs.ScenesCompleted)
	assert.Zero(t, obs.ScenesCancelled)
	assert.Zero(t, obs.ConsequenceFailures)
}

func TestNew_WithSceneFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scenes.yaml")
	require.NoError(t, os.WriteFile(file, []byte(fixtures.CatalogYAML), 0o600))

	e, err := New(WithSceneFile(file), WithChooser(mocks.NewMockChooser()))
	require.NoError(t, err)

	all, err := e.Components().Catalog.All(context.Background())
	require.NoError(t, err)
	testutil.AssertSceneCodes(t, []string{"HUMOR_JOKE", "VULN_CONFESSION"}, all)

	_, err = New(WithSceneFile(filepath.Join(t.TempDir(), "missing.yaml")), WithChooser(mocks.NewMockChooser()))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNew_ChooserFailuresDegradeTheTurn(t *testing.T) {
	cfg := director.DefaultConfig()
	cfg.ChooserTimeout = 20 * time.Millisecond

	tests := []struct {
		name    string
		chooser *mocks.MockChooser
		want    director.Reason
	}{
		{"error", mocks.NewMockChooser().WithError(errors.New("upstream down")), director.ReasonError},
		{"panic", mocks.NewMockChooser().WithPanic(), director.ReasonError},
		{"timeout", mocks.NewMockChooser().WithAnswer("HUMOR_JOKE").WithDelay(time.Second), director.ReasonError},
		{"declines", mocks.NewMockChooser().WithChooseFunc(func(context.Context, director.Request) (string, error) {
			return " none ", nil
		}), director.ReasonDirectorChoseNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			obs := mocks.NewMockObserver()
			e, err := New(
				WithScenes(fixtures.Joke()),
				WithChooser(tt.chooser),
				WithDirectorConfig(cfg),
				WithObserver(obs),
			)
			require.NoError(t, err)

			res, err := e.HandleTurn(ctx, engine.TurnInput{GroupID: "familia", Roster: fixtures.Roster()})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Decision.Reason)
			assert.False(t, res.SceneInProgress)
			assert.Equal(t, 1, tt.chooser.CallCount())
			assert.Equal(t, 1, obs.DecisionCount(string(tt.want)))
		})
	}
}

func TestNew_LargeRosterBindsEveryDebateRole(t *testing.T) {
	ctx := testutil.TestContext(t)
	chooser := mocks.NewMockChooser().WithFirstCandidate()
	obs := mocks.NewMockObserver()
	e, err := New(
		WithScenes(fixtures.Debate(), fixtures.Confession()),
		WithChooser(chooser),
		WithObserver(obs),
	)
	require.NoError(t, err)

	// five agents exceed the confession's cast
	res, err := e.HandleTurn(ctx, engine.TurnInput{GroupID: "grande", Roster: fixtures.LargeRoster(5)})
	require.NoError(t, err)
	require.Equal(t, director.ReasonSceneSelected, res.Decision.Reason, res.Decision.Error)
	assert.Equal(t, []string{"DEBATE_OPEN"}, res.Decision.Candidates)

	bound := make(map[string]bool)
	for _, role := range []string{"DEFENSOR", "CRITICO", "MEDIADOR"} {
		id := res.Decision.Assignment.Bindings[role]
		require.NotEmpty(t, id, role)
		assert.False(t, bound[id], "agent %s bound twice", id)
		bound[id] = true
	}

	chooser.Reset()
	for range 3 {
		_, err = e.CompleteStep(ctx, "grande")
		require.NoError(t, err)
	}
	assert.Zero(t, chooser.CallCount())
	assert.Equal(t, 1, obs.ScenesCompleted)

	// the debate just ran, so only the confession remains
	res, err = e.HandleTurn(ctx, engine.TurnInput{GroupID: "grande", Roster: fixtures.LargeRoster(3)})
	require.NoError(t, err)
	assert.Equal(t, []string{"VULN_CONFESSION"}, res.Decision.Candidates)
	req, ok := chooser.LastRequest()
	require.True(t, ok)
	testutil.AssertSceneCodes(t, []string{"VULN_CONFESSION"}, req.Candidates)
}
