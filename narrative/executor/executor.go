package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/narrative/relation"
	"github.com/BaSui01/sceneflow/narrative/roles"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/narrative/seed"
	"github.com/BaSui01/sceneflow/types"
)

const instrumentationName = "github.com/BaSui01/sceneflow/narrative/executor"

// SeedService is the part of the seed manager consequences write through.
type SeedService interface {
	Create(ctx context.Context, in seed.CreateInput) (*seed.Seed, error)
	Escalate(ctx context.Context, id, reason string) (*seed.Seed, error)
	Resolve(ctx context.Context, id, resolution string, kind seed.ResolutionKind) (*seed.Seed, error)
	Active(ctx context.Context, groupID string) ([]*seed.Seed, error)
	ActiveByType(ctx context.Context, groupID, seedType string) ([]*seed.Seed, error)
}

// RelationService is the part of the relation tracker consequences write through.
type RelationService interface {
	Update(ctx context.Context, groupID, agentA, agentB string, u relation.Update) (*relation.Relation, error)
	AdjustTension(ctx context.Context, groupID, agentA, agentB string, delta float64) (*relation.Relation, error)
}

// Report summarizes one consequence pass.
type Report struct {
	SeedsCreated     []string `json:"seeds_created,omitempty"`
	SeedsSkipped     int      `json:"seeds_skipped"`
	RelationsUpdated int      `json:"relations_updated"`
	RelationsSkipped int      `json:"relations_skipped"`
	EffectsApplied   int      `json:"effects_applied"`
	EffectsIgnored   int      `json:"effects_ignored"`
	Failures         []string `json:"failures,omitempty"`
}

// Executor turns chosen scenes into plans and applies their consequences.
type Executor struct {
	seeds     SeedService
	relations RelationService
	history   ExecutionStore
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewExecutor creates an executor. history may be nil, in which case
// executions are kept in memory.
func NewExecutor(seeds SeedService, relations RelationService, history ExecutionStore, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if history == nil {
		history = NewMemoryExecutionStore(0)
	}
	return &Executor{
		seeds:     seeds,
		relations: relations,
		history:   history,
		logger:    logger.With(zap.String("component", "scene_executor")),
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
	}
}

// PreparePlan resolves the scene's interventions against a complete binding.
func (e *Executor) PreparePlan(groupID string, sc *scene.Scene, bindings map[string]string, roster types.Roster) (*Plan, error) {
	if missing := roles.Validate(sc, bindings); len(missing) > 0 {
		return nil, types.Errorf(types.ErrIncompleteBinding,
			"scene %q has unbound roles: %s", sc.Code, strings.Join(missing, ", "))
	}

	names := roster.Names()
	plan := &Plan{
		GroupID:   groupID,
		SceneCode: sc.Code,
		SceneName: sc.Name,
		Category:  sc.Category,
		Bindings:  make(map[string]string, len(bindings)),
		Names:     make(map[string]string, len(bindings)),
		Steps:     make([]Step, 0, len(sc.Interventions)),
		Roles:     sc.RoleNames(),
		CreatedAt: e.now(),
	}
	for role, id := range bindings {
		plan.Bindings[role] = id
		if name := names[id]; name != "" {
			plan.Names[id] = name
		}
	}

	for i, iv := range sc.Interventions {
		agentID := bindings[iv.Role]
		step := Step{
			Index:     i,
			Role:      iv.Role,
			AgentID:   agentID,
			AgentName: names[agentID],
			Directive: resolveVariables(iv.Directive, bindings, names),
			Delay:     iv.Delay,
			Tone:      iv.Tone,
		}
		if step.AgentName == "" {
			step.AgentName = agentID
		}
		if target := bindings[iv.TargetRole]; iv.TargetRole != "" && target != "" {
			step.TargetAgentIDs = []string{target}
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

// ProcessConsequences applies seeds, then relation deltas, then effects.
// A failing record is logged and counted; the rest of the batch still runs.
func (e *Executor) ProcessConsequences(ctx context.Context, plan *Plan, sc *scene.Scene) Report {
	ctx, span := e.tracer.Start(ctx, "executor.process_consequences",
		trace.WithAttributes(
			attribute.String("group.id", plan.GroupID),
			attribute.String("scene.code", sc.Code),
		))
	defer span.End()

	var rep Report
	log := e.logger.With(zap.String("group_id", plan.GroupID), zap.String("scene", sc.Code))
	fail := func(what string, err error) {
		rep.Failures = append(rep.Failures, fmt.Sprintf("%s: %v", what, err))
		log.Warn("consequence failed", zap.String("record", what), zap.Error(err))
	}

	for _, tpl := range sc.Consequences.Seeds {
		agents := resolveRoles(tpl.InvolvedRoles, plan.Bindings)
		if len(agents) == 0 {
			rep.SeedsSkipped++
			log.Debug("seed skipped: no participants", zap.String("type", tpl.Type))
			continue
		}
		s, err := e.seeds.Create(ctx, seed.CreateInput{
			GroupID:         plan.GroupID,
			Type:            tpl.Type,
			Title:           plan.Resolve(tpl.Title),
			Content:         plan.Resolve(tpl.Content),
			InvolvedAgents:  agents,
			OriginAgentID:   agents[0],
			SourceSceneCode: sc.Code,
			LatencyTurns:    tpl.LatencyTurns,
			MaxTurns:        tpl.MaxTurns,
		})
		switch {
		case errors.Is(err, seed.ErrBudgetExhausted):
			rep.SeedsSkipped++
		case err != nil:
			fail("seed "+tpl.Type, err)
		default:
			rep.SeedsCreated = append(rep.SeedsCreated, s.ID)
		}
	}

	for _, rd := range sc.Consequences.Relations {
		a, b := plan.Bindings[rd.RoleA], plan.Bindings[rd.RoleB]
		if a == "" || b == "" || a == b {
			rep.RelationsSkipped++
			continue
		}
		_, err := e.relations.Update(ctx, plan.GroupID, a, b, relation.Update{
			AffinityDelta:  rd.AffinityDelta,
			TensionDelta:   rd.TensionDelta,
			AddDynamics:    rd.AddDynamics,
			RemoveDynamics: rd.RemoveDynamics,
			SharedMoment:   plan.Resolve(rd.SharedMoment),
			SceneCode:      sc.Code,
		})
		if err != nil {
			fail(fmt.Sprintf("relation %s/%s", rd.RoleA, rd.RoleB), err)
			continue
		}
		rep.RelationsUpdated++
	}

	for _, eff := range sc.Consequences.Effects {
		applied, err := e.applyEffect(ctx, plan, eff)
		switch {
		case err != nil:
			fail("effect "+string(eff.Kind), err)
		case applied:
			rep.EffectsApplied++
		default:
			rep.EffectsIgnored++
		}
	}

	log.Info("consequences applied",
		zap.Int("seeds_created", len(rep.SeedsCreated)),
		zap.Int("relations_updated", rep.RelationsUpdated),
		zap.Int("effects_applied", rep.EffectsApplied),
		zap.Int("failures", len(rep.Failures)),
	)
	span.SetAttributes(
		attribute.Int("consequences.seeds_created", len(rep.SeedsCreated)),
		attribute.Int("consequences.failures", len(rep.Failures)),
	)
	if len(rep.Failures) > 0 {
		span.SetStatus(codes.Error, rep.Failures[0])
	}
	return rep
}

func (e *Executor) applyEffect(ctx context.Context, plan *Plan, eff scene.Effect) (bool, error) {
	switch eff.Kind {
	case scene.EffectAdjustTension:
		a, b := plan.Bindings[eff.RoleA], plan.Bindings[eff.RoleB]
		if a == "" || b == "" || a == b {
			return false, nil
		}
		_, err := e.relations.AdjustTension(ctx, plan.GroupID, a, b, eff.Delta)
		return err == nil, err

	case scene.EffectEscalateSeed:
		target, err := e.firstSeed(ctx, plan.GroupID, eff.SeedType)
		if err != nil || target == nil {
			return false, err
		}
		reason := eff.Reason
		if reason == "" {
			reason = "scene " + plan.SceneCode
		}
		_, err = e.seeds.Escalate(ctx, target.ID, reason)
		return err == nil, err

	case scene.EffectResolveSeed:
		target, err := e.firstSeed(ctx, plan.GroupID, eff.SeedType)
		if err != nil || target == nil {
			return false, err
		}
		_, err = e.seeds.Resolve(ctx, target.ID, plan.Resolve(eff.Resolution), seed.ResolutionNatural)
		return err == nil, err

	default:
		e.logger.Warn("unknown effect ignored",
			zap.String("scene", plan.SceneCode),
			zap.String("type", eff.RawType),
		)
		return false, nil
	}
}

// firstSeed picks the oldest seed of seedType, or the most pressing seed
// when no type is given.
func (e *Executor) firstSeed(ctx context.Context, groupID, seedType string) (*seed.Seed, error) {
	var (
		seeds []*seed.Seed
		err   error
	)
	if seedType == "" {
		seeds, err = e.seeds.Active(ctx, groupID)
	} else {
		seeds, err = e.seeds.ActiveByType(ctx, groupID, seedType)
	}
	if err != nil || len(seeds) == 0 {
		return nil, err
	}
	return seeds[0], nil
}

func resolveRoles(roleNames []string, bindings map[string]string) []string {
	seen := make(map[string]bool, len(roleNames))
	var out []string
	for _, r := range roleNames {
		id := bindings[r]
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
