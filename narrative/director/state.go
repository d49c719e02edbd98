package director

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/persistence"
	"github.com/BaSui01/sceneflow/types"
)

// MaxRecentScenes bounds GroupSceneState.RecentScenes.
const MaxRecentScenes = 10

// GroupSceneState is the per-group scheduling state.
type GroupSceneState struct {
	GroupID string `json:"group_id"`
	Turn    int    `json:"turn"`

	CurrentSceneCode string            `json:"current_scene_code,omitempty"`
	CurrentStep      int               `json:"current_step"`
	TotalSteps       int               `json:"total_steps"`
	RoleAssignments  map[string]string `json:"role_assignments,omitempty"`
	Plan             *executor.Plan    `json:"plan,omitempty"`
	SceneStartedAt   *time.Time        `json:"scene_started_at,omitempty"`

	// RecentScenes holds the codes of started scenes, oldest first.
	RecentScenes   []string   `json:"recent_scenes"`
	LastDramaticAt *time.Time `json:"last_dramatic_at,omitempty"`
	ScenesExecuted int        `json:"scenes_executed"`

	// LastProtagonist maps agent id to the turn it last led a scene.
	LastProtagonist map[string]int `json:"last_protagonist,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewGroupSceneState returns an idle state for a group.
func NewGroupSceneState(groupID string) *GroupSceneState {
	return &GroupSceneState{GroupID: groupID, RecentScenes: []string{}}
}

// InProgress reports whether a scene is being delivered.
func (s *GroupSceneState) InProgress() bool {
	return s.CurrentSceneCode != ""
}

// Begin starts delivering plan. The code enters RecentScenes right away so
// an abandoned scene is still excluded by the next selection.
func (s *GroupSceneState) Begin(plan *executor.Plan, at time.Time) error {
	if s.InProgress() {
		return types.Errorf(types.ErrSceneInProgress, "group %q is already running scene %q", s.GroupID, s.CurrentSceneCode)
	}
	s.CurrentSceneCode = plan.SceneCode
	s.CurrentStep = 0
	s.TotalSteps = len(plan.Steps)
	s.RoleAssignments = maps.Clone(plan.Bindings)
	s.Plan = plan
	s.SceneStartedAt = &at
	s.RememberScene(plan.SceneCode)
	return nil
}

// AdvanceStep marks the current step delivered and reports whether the
// scene has finished.
func (s *GroupSceneState) AdvanceStep() (bool, error) {
	if !s.InProgress() {
		return false, types.Errorf(types.ErrNoSceneInProgress, "group %q has no scene in progress", s.GroupID)
	}
	s.CurrentStep++
	return s.CurrentStep >= s.TotalSteps, nil
}

// Cancel clears the in-progress scene.
func (s *GroupSceneState) Cancel() {
	s.CurrentSceneCode = ""
	s.CurrentStep = 0
	s.TotalSteps = 0
	s.RoleAssignments = nil
	s.Plan = nil
	s.SceneStartedAt = nil
}

// RememberScene appends code to the bounded recent list.
func (s *GroupSceneState) RememberScene(code string) {
	s.RecentScenes = append(s.RecentScenes, code)
	if len(s.RecentScenes) > MaxRecentScenes {
		s.RecentScenes = slices.Clone(s.RecentScenes[len(s.RecentScenes)-MaxRecentScenes:])
	}
}

// FinishScene counts a completed scene and tracks dramatic timing.
func (s *GroupSceneState) FinishScene(dramatic bool, at time.Time) {
	if dramatic {
		s.LastDramaticAt = &at
	}
	s.ScenesExecuted++
}

// MarkProtagonist remembers that agentID led a scene at turn.
func (s *GroupSceneState) MarkProtagonist(agentID string, turn int) {
	if agentID == "" {
		return
	}
	if s.LastProtagonist == nil {
		s.LastProtagonist = make(map[string]int)
	}
	s.LastProtagonist[agentID] = turn
}

// ApplyTo returns a copy of roster with protagonist turns the state knows
// about that are newer than what the host reported.
func (s *GroupSceneState) ApplyTo(roster types.Roster) types.Roster {
	out := slices.Clone(roster)
	for i, ag := range out {
		if turn, ok := s.LastProtagonist[ag.ID]; ok && turn > ag.LastProtagonistTurn {
			out[i].LastProtagonistTurn = turn
		}
	}
	return out
}

// LastScenes returns up to n of the most recent scene codes.
func (s *GroupSceneState) LastScenes(n int) []string {
	if n <= 0 || len(s.RecentScenes) == 0 {
		return nil
	}
	if n > len(s.RecentScenes) {
		n = len(s.RecentScenes)
	}
	return slices.Clone(s.RecentScenes[len(s.RecentScenes)-n:])
}

// Clone returns a deep copy.
func (s *GroupSceneState) Clone() *GroupSceneState {
	cp := *s
	cp.RoleAssignments = maps.Clone(s.RoleAssignments)
	cp.RecentScenes = slices.Clone(s.RecentScenes)
	cp.LastProtagonist = maps.Clone(s.LastProtagonist)
	if s.Plan != nil {
		p := *s.Plan
		p.Bindings = maps.Clone(s.Plan.Bindings)
		p.Names = maps.Clone(s.Plan.Names)
		p.Roles = slices.Clone(s.Plan.Roles)
		p.Steps = slices.Clone(s.Plan.Steps)
		cp.Plan = &p
	}
	if s.SceneStartedAt != nil {
		t := *s.SceneStartedAt
		cp.SceneStartedAt = &t
	}
	if s.LastDramaticAt != nil {
		t := *s.LastDramaticAt
		cp.LastDramaticAt = &t
	}
	return &cp
}

// StateStore persists group scene states.
type StateStore interface {
	// Get returns persistence.ErrNotFound for unknown groups.
	Get(ctx context.Context, groupID string) (*GroupSceneState, error)
	Save(ctx context.Context, s *GroupSceneState) error
}

// LoadState returns the stored state or a fresh one.
func LoadState(ctx context.Context, store StateStore, groupID string) (*GroupSceneState, error) {
	s, err := store.Get(ctx, groupID)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return NewGroupSceneState(groupID), nil
	}
	return nil, err
}

// MemoryStateStore is an in-process StateStore.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]*GroupSceneState
}

// NewMemoryStateStore creates an empty store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]*GroupSceneState)}
}

func (m *MemoryStateStore) Get(_ context.Context, groupID string) (*GroupSceneState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[groupID]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStateStore) Save(_ context.Context, s *GroupSceneState) error {
	if s == nil || s.GroupID == "" {
		return persistence.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.GroupID] = s.Clone()
	return nil
}
