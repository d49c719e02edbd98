package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/narrative/relation"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/narrative/seed"
	"github.com/BaSui01/sceneflow/types"
)

// Config tunes the engine.
type Config struct {
	// TensionDecay is subtracted from every positive tension by DecayTension.
	TensionDecay float64 `json:"tension_decay" yaml:"tension_decay"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{TensionDecay: 0.05}
}

// Components are the services the engine drives. All except Observer are
// required.
type Components struct {
	Catalog   *scene.Catalog
	Seeds     *seed.Manager
	Relations *relation.Tracker
	Director  *director.Director
	Executor  *executor.Executor
	States    director.StateStore
	Observer  Observer
}

// TurnInput is one incoming group message as seen by the engine.
type TurnInput struct {
	GroupID  string          `json:"group_id"`
	Roster   types.Roster    `json:"roster"`
	Messages []types.Message `json:"messages"`

	EnergyBand    *scene.Band `json:"energy_band,omitempty"`
	TensionBand   *scene.Band `json:"tension_band,omitempty"`
	RequiredRoles []string    `json:"required_roles,omitempty"`
}

// TurnResult is the outcome of HandleTurn.
type TurnResult struct {
	GroupID  string            `json:"group_id"`
	Turn     int               `json:"turn"`
	Decision director.Decision `json:"decision"`
	Plan     *executor.Plan    `json:"plan,omitempty"`
	// Step is the step to deliver now, when a scene is running.
	Step            *executor.StepView `json:"step,omitempty"`
	SceneInProgress bool               `json:"scene_in_progress"`
	SeedTransitions []seed.Transition  `json:"seed_transitions,omitempty"`
}

// StepResult is the outcome of CompleteStep.
type StepResult struct {
	GroupID   string              `json:"group_id"`
	SceneCode string              `json:"scene_code"`
	Finished  bool                `json:"finished"`
	Next      *executor.StepView  `json:"next,omitempty"`
	Report    *executor.Report    `json:"report,omitempty"`
	Execution *executor.Execution `json:"execution,omitempty"`
}

// Status is an admin snapshot of a group.
type Status struct {
	State       *director.GroupSceneState `json:"state"`
	ActiveSeeds []*seed.Seed              `json:"active_seeds"`
	HistorySize int                       `json:"history_size"`
}

// Engine serializes decision cycles per group and persists their effects.
type Engine struct {
	c        Components
	config   Config
	locks    *groupLocks
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an engine.
func New(c Components, config Config, logger *zap.Logger) (*Engine, error) {
	if c.Catalog == nil || c.Seeds == nil || c.Relations == nil || c.Director == nil || c.Executor == nil || c.States == nil {
		return nil, fmt.Errorf("engine: missing component")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TensionDecay <= 0 {
		config.TensionDecay = DefaultConfig().TensionDecay
	}
	obs := c.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Engine{
		c:        c,
		config:   config,
		locks:    newGroupLocks(),
		observer: obs,
		logger:   logger.With(zap.String("component", "engine")),
		now:      time.Now,
	}, nil
}

// HandleTurn advances the group one turn and, when no scene is running,
// asks the director for one. It only fails on state persistence errors;
// everything else degrades to a decision without a scene.
func (e *Engine) HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	if in.GroupID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "group id is required")
	}
	unlock := e.locks.lock(in.GroupID)
	defer unlock()

	log := e.logger.With(zap.String("group_id", in.GroupID))
	st, err := director.LoadState(ctx, e.c.States, in.GroupID)
	if err != nil {
		return nil, storeError("load group state", err)
	}
	st.Turn++
	res := &TurnResult{GroupID: in.GroupID, Turn: st.Turn}

	adv, err := e.c.Seeds.AdvanceTurn(ctx, in.GroupID)
	if err != nil {
		log.Warn("seed advance failed", zap.Error(err))
	}
	res.SeedTransitions = adv.Transitions
	for _, tr := range adv.Transitions {
		e.observer.RecordSeedTransition(string(tr.From), string(tr.To))
	}

	if st.InProgress() {
		res.SceneInProgress = true
		res.Plan = st.Plan
		if v, ok := executor.NextStep(st.Plan, st.CurrentStep); ok {
			res.Step = &v
		}
		if err := e.saveState(ctx, st); err != nil {
			return nil, err
		}
		return res, nil
	}

	start := e.now()
	dec := e.c.Director.SelectScene(ctx, director.Input{
		GroupID:       in.GroupID,
		Roster:        st.ApplyTo(in.Roster),
		Messages:      in.Messages,
		State:         st,
		Turn:          st.Turn,
		EnergyBand:    in.EnergyBand,
		TensionBand:   in.TensionBand,
		RequiredRoles: in.RequiredRoles,
	})
	for _, p := range dec.Loops {
		e.observer.RecordLoopDetected(string(p.Kind))
	}

	if dec.Selected() {
		plan, err := e.c.Executor.PreparePlan(in.GroupID, dec.Scene, dec.Assignment.Bindings, in.Roster)
		if err == nil {
			err = st.Begin(plan, e.now())
		}
		if err != nil {
			log.Warn("plan preparation failed", zap.String("scene", dec.SceneCode), zap.Error(err))
			dec.Reason = director.ReasonError
			dec.Error = err.Error()
			dec.SceneCode = ""
			dec.Scene = nil
		} else {
			st.MarkProtagonist(plan.Bindings[dec.Scene.LeadRole()], st.Turn)
			res.Plan = plan
			res.SceneInProgress = true
			if v, ok := executor.NextStep(plan, 0); ok {
				res.Step = &v
			}
		}
	}
	res.Decision = dec
	e.observer.RecordDecision(string(dec.Reason), e.now().Sub(start))

	if err := e.saveState(ctx, st); err != nil {
		return nil, err
	}
	return res, nil
}

// CompleteStep marks the current step delivered. After the last step the
// scene's consequences are applied and the execution is recorded.
func (e *Engine) CompleteStep(ctx context.Context, groupID string) (*StepResult, error) {
	unlock := e.locks.lock(groupID)
	defer unlock()

	st, err := director.LoadState(ctx, e.c.States, groupID)
	if err != nil {
		return nil, storeError("load group state", err)
	}
	plan := st.Plan
	finished, err := st.AdvanceStep()
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, types.Errorf(types.ErrInternalError, "group %q is running %q without a plan", groupID, st.CurrentSceneCode)
	}
	res := &StepResult{GroupID: groupID, SceneCode: plan.SceneCode, Finished: finished}

	if !finished {
		if v, ok := executor.NextStep(plan, st.CurrentStep); ok {
			res.Next = &v
		}
		if err := e.saveState(ctx, st); err != nil {
			return nil, err
		}
		return res, nil
	}

	log := e.logger.With(zap.String("group_id", groupID), zap.String("scene", plan.SceneCode))
	now := e.now()
	sc, err := e.c.Catalog.GetByCode(ctx, plan.SceneCode)
	if err != nil {
		log.Warn("scene vanished before consequences", zap.Error(err))
	} else {
		rep := e.c.Executor.ProcessConsequences(ctx, plan, sc)
		res.Report = &rep
		if len(rep.Failures) > 0 {
			e.observer.RecordConsequenceFailures(len(rep.Failures))
		}
	}
	if err := e.c.Catalog.IncrementUsage(ctx, plan.SceneCode, scene.UsageUpdate{Success: true, At: now}); err != nil {
		log.Warn("usage update failed", zap.Error(err))
	}
	ex, err := e.c.Executor.RecordExecution(ctx, plan, st.CurrentStep, true, startedAt(st, now))
	if err != nil {
		log.Warn("execution record failed", zap.Error(err))
	}
	res.Execution = ex

	st.FinishScene(e.c.Director.IsDramatic(plan.Category), now)
	st.Cancel()
	e.observer.RecordSceneFinished(string(plan.Category), true)
	if err := e.saveState(ctx, st); err != nil {
		return nil, err
	}
	return res, nil
}

// CancelScene abandons the running scene without applying consequences.
func (e *Engine) CancelScene(ctx context.Context, groupID string) (*executor.Execution, error) {
	unlock := e.locks.lock(groupID)
	defer unlock()

	st, err := director.LoadState(ctx, e.c.States, groupID)
	if err != nil {
		return nil, storeError("load group state", err)
	}
	if !st.InProgress() {
		return nil, types.Errorf(types.ErrNoSceneInProgress, "group %q has no scene in progress", groupID)
	}
	plan := st.Plan
	now := e.now()
	log := e.logger.With(zap.String("group_id", groupID), zap.String("scene", plan.SceneCode))

	if err := e.c.Catalog.IncrementUsage(ctx, plan.SceneCode, scene.UsageUpdate{Success: false, At: now}); err != nil {
		log.Warn("usage update failed", zap.Error(err))
	}
	ex, err := e.c.Executor.RecordExecution(ctx, plan, st.CurrentStep, false, startedAt(st, now))
	if err != nil {
		log.Warn("execution record failed", zap.Error(err))
	}

	st.Cancel()
	e.observer.RecordSceneFinished(string(plan.Category), false)
	if err := e.saveState(ctx, st); err != nil {
		return nil, err
	}
	log.Info("scene cancelled")
	return ex, nil
}

// DecayTension runs one decay pass over every relation.
func (e *Engine) DecayTension(ctx context.Context) (int, error) {
	return e.c.Relations.DecayTension(ctx, e.config.TensionDecay)
}

// CleanupSeeds purges expired seeds past retention.
func (e *Engine) CleanupSeeds(ctx context.Context) (int, error) {
	return e.c.Seeds.CleanupExpired(ctx)
}

// Status returns an admin snapshot of a group.
func (e *Engine) Status(ctx context.Context, groupID string) (*Status, error) {
	st, err := director.LoadState(ctx, e.c.States, groupID)
	if err != nil {
		return nil, storeError("load group state", err)
	}
	active, err := e.c.Seeds.Active(ctx, groupID)
	if err != nil {
		return nil, storeError("list seeds", err)
	}
	hist, err := e.c.Executor.History(ctx, groupID, 0)
	if err != nil {
		return nil, storeError("list history", err)
	}
	return &Status{State: st, ActiveSeeds: active, HistorySize: len(hist)}, nil
}

// Components exposes the engine's services to transport layers.
func (e *Engine) Components() Components {
	return e.c
}

func (e *Engine) saveState(ctx context.Context, st *director.GroupSceneState) error {
	st.UpdatedAt = e.now()
	if err := e.c.States.Save(ctx, st); err != nil {
		return storeError("save group state", err)
	}
	return nil
}

func startedAt(st *director.GroupSceneState, fallback time.Time) time.Time {
	if st.SceneStartedAt != nil {
		return *st.SceneStartedAt
	}
	return fallback
}

func storeError(op string, err error) error {
	if _, ok := types.AsError(err); ok {
		return err
	}
	return types.NewError(types.ErrStoreUnavailable, op).WithCause(err).WithRetryable(true)
}
