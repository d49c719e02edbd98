package executor

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/persistence"
)

// Execution is the history record of one scene run.
type Execution struct {
	ID             string            `json:"id"`
	GroupID        string            `json:"group_id"`
	SceneCode      string            `json:"scene_code"`
	Participants   []string          `json:"participants"`
	Bindings       map[string]string `json:"bindings"`
	Completed      bool              `json:"completed"`
	CompletedSteps int               `json:"completed_steps"`
	TotalSteps     int               `json:"total_steps"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// ExecutionStore persists execution history.
type ExecutionStore interface {
	Record(ctx context.Context, e *Execution) error
	// List returns the group's executions, newest first, at most limit (0 = all).
	List(ctx context.Context, groupID string, limit int) ([]*Execution, error)
}

// RecordExecution writes the outcome of a finished or cancelled plan.
func (e *Executor) RecordExecution(ctx context.Context, plan *Plan, completedSteps int, completed bool, startedAt time.Time) (*Execution, error) {
	ex := &Execution{
		ID:             uuid.New().String(),
		GroupID:        plan.GroupID,
		SceneCode:      plan.SceneCode,
		Participants:   plan.Participants(),
		Bindings:       maps.Clone(plan.Bindings),
		Completed:      completed,
		CompletedSteps: completedSteps,
		TotalSteps:     len(plan.Steps),
		StartedAt:      startedAt,
		FinishedAt:     e.now(),
	}
	if err := e.history.Record(ctx, ex); err != nil {
		return nil, err
	}
	e.logger.Debug("execution recorded",
		zap.String("group_id", ex.GroupID),
		zap.String("scene", ex.SceneCode),
		zap.Bool("completed", completed),
	)
	return ex, nil
}

// History returns the group's most recent executions.
func (e *Executor) History(ctx context.Context, groupID string, limit int) ([]*Execution, error) {
	return e.history.List(ctx, groupID, limit)
}

// MemoryExecutionStore keeps a bounded per-group history in memory.
type MemoryExecutionStore struct {
	mu       sync.RWMutex
	perGroup int
	byGroup  map[string][]*Execution
}

// NewMemoryExecutionStore keeps at most perGroup records per group (0 = unbounded).
func NewMemoryExecutionStore(perGroup int) *MemoryExecutionStore {
	return &MemoryExecutionStore{perGroup: perGroup, byGroup: make(map[string][]*Execution)}
}

func (s *MemoryExecutionStore) Record(_ context.Context, e *Execution) error {
	if e == nil || e.GroupID == "" {
		return persistence.ErrInvalidInput
	}
	cp := *e
	cp.Participants = slices.Clone(e.Participants)
	cp.Bindings = maps.Clone(e.Bindings)

	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.byGroup[e.GroupID], &cp)
	if s.perGroup > 0 && len(list) > s.perGroup {
		list = list[len(list)-s.perGroup:]
	}
	s.byGroup[e.GroupID] = list
	return nil
}

func (s *MemoryExecutionStore) List(_ context.Context, groupID string, limit int) ([]*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byGroup[groupID]
	out := make([]*Execution, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}
