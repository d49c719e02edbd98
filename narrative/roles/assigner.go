package roles

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/narrative/relation"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/types"
)

// RelationLookup reads pairwise relations without creating them.
type RelationLookup interface {
	Find(ctx context.Context, groupID, agentA, agentB string) (*relation.Relation, bool, error)
}

// Weights tune the five scoring factors.
type Weights struct {
	// RotationPerTurn is the protagonist bonus per turn since the agent last led.
	RotationPerTurn float64 `json:"rotation_per_turn" yaml:"rotation_per_turn"`

	// RotationCapTurns caps the turns counted by the rotation bonus.
	RotationCapTurns int `json:"rotation_cap_turns" yaml:"rotation_cap_turns"`

	// RecentProtagonistTurns is the window in which leading again is penalized.
	RecentProtagonistTurns   int     `json:"recent_protagonist_turns" yaml:"recent_protagonist_turns"`
	RecentProtagonistPenalty float64 `json:"recent_protagonist_penalty" yaml:"recent_protagonist_penalty"`

	Participation float64 `json:"participation" yaml:"participation"`
	Trait         float64 `json:"trait" yaml:"trait"`
	CategoryBonus float64 `json:"category_bonus" yaml:"category_bonus"`
	Relation      float64 `json:"relation" yaml:"relation"`

	// RomanticMaxTension is the highest tension at which romantic bonuses apply.
	RomanticMaxTension float64 `json:"romantic_max_tension" yaml:"romantic_max_tension"`

	Mention       float64 `json:"mention" yaml:"mention"`
	MentionWindow int     `json:"mention_window" yaml:"mention_window"`
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		RotationPerTurn:          3,
		RotationCapTurns:         10,
		RecentProtagonistTurns:   3,
		RecentProtagonistPenalty: 40,
		Participation:            10,
		Trait:                    10,
		CategoryBonus:            5,
		Relation:                 15,
		RomanticMaxTension:       0.3,
		Mention:                  8,
		MentionWindow:            5,
	}
}

// Input is everything needed to bind a scene's roles.
type Input struct {
	GroupID     string
	Scene       *scene.Scene
	Roster      types.Roster
	Messages    []types.Message
	CurrentTurn int
}

// Score is the per-factor breakdown of one (agent, role) pair.
type Score struct {
	AgentID       string  `json:"agent_id"`
	Role          string  `json:"role"`
	Rotation      float64 `json:"rotation"`
	Participation float64 `json:"participation"`
	Personality   float64 `json:"personality"`
	Relational    float64 `json:"relational"`
	Mention       float64 `json:"mention"`
}

// Total sums the factors.
func (s Score) Total() float64 {
	return s.Rotation + s.Participation + s.Personality + s.Relational + s.Mention
}

// Assignment is the result of binding a scene's roles.
type Assignment struct {
	// Bindings maps role name to agent id.
	Bindings map[string]string `json:"bindings"`
	// Scores holds the winning score per role in declaration order.
	Scores []Score `json:"scores"`
	// Missing lists roles left unbound.
	Missing []string `json:"missing,omitempty"`
}

// Complete reports whether every role was bound.
func (a Assignment) Complete() bool {
	return len(a.Missing) == 0
}

// Assigner greedily binds roles to agents.
type Assigner struct {
	relations RelationLookup
	weights   Weights
	logger    *zap.Logger
}

// NewAssigner creates an assigner. relations may be nil, which disables the
// relational factor.
func NewAssigner(relations RelationLookup, weights Weights, logger *zap.Logger) *Assigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Assigner{
		relations: relations,
		weights:   weights,
		logger:    logger.With(zap.String("component", "role_assigner")),
	}
}

// Assign binds every role in declaration order. Agents are used once unless
// the roster is smaller than the role list.
func (a *Assigner) Assign(ctx context.Context, in Input) (Assignment, error) {
	result := Assignment{Bindings: make(map[string]string, len(in.Scene.Roles))}
	if len(in.Roster) == 0 {
		result.Missing = in.Scene.RoleNames()
		return result, nil
	}

	sc := a.newScorer(in)
	lead := in.Scene.LeadRole()
	used := make(map[string]bool, len(in.Roster))
	reuse := len(in.Roster) < len(in.Scene.Roles)

	for _, role := range in.Scene.Roles {
		pool := make([]types.Agent, 0, len(in.Roster))
		for _, ag := range in.Roster {
			if !used[ag.ID] {
				pool = append(pool, ag)
			}
		}
		if len(pool) == 0 && reuse {
			pool = in.Roster
		}
		if len(pool) == 0 {
			result.Missing = append(result.Missing, role.Name)
			continue
		}

		protagonist := result.Bindings[lead]
		var best Score
		bestTotal := 0.0
		for i, ag := range pool {
			s, err := sc.score(ctx, ag, role, role.Name == lead, protagonist)
			if err != nil {
				return Assignment{}, err
			}
			if i == 0 || s.Total() > bestTotal {
				best, bestTotal = s, s.Total()
			}
		}

		result.Bindings[role.Name] = best.AgentID
		result.Scores = append(result.Scores, best)
		used[best.AgentID] = true
	}

	a.logger.Debug("roles assigned",
		zap.String("group_id", in.GroupID),
		zap.String("scene", in.Scene.Code),
		zap.Any("bindings", result.Bindings),
		zap.Strings("missing", result.Missing),
	)
	return result, nil
}

// ScoreCandidates scores every roster agent for one role, given the current
// protagonist binding. It exposes the same scoring Assign uses.
func (a *Assigner) ScoreCandidates(ctx context.Context, in Input, roleName, protagonistID string) ([]Score, error) {
	role, ok := in.Scene.Role(roleName)
	if !ok {
		return nil, types.Errorf(types.ErrInvalidRequest, "scene %q has no role %q", in.Scene.Code, roleName)
	}
	sc := a.newScorer(in)
	out := make([]Score, 0, len(in.Roster))
	for _, ag := range in.Roster {
		s, err := sc.score(ctx, ag, role, roleName == in.Scene.LeadRole(), protagonistID)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Validate lists declared roles with no binding.
func Validate(s *scene.Scene, bindings map[string]string) []string {
	var missing []string
	for _, r := range s.Roles {
		if bindings[r.Name] == "" {
			missing = append(missing, r.Name)
		}
	}
	return missing
}

type scorer struct {
	a        *Assigner
	in       Input
	avg      float64
	counts   map[string]int
	mentions map[string]bool
}

func (a *Assigner) newScorer(in Input) *scorer {
	sc := &scorer{a: a, in: in, counts: make(map[string]int, len(in.Roster))}

	total := 0
	for _, ag := range in.Roster {
		sc.counts[ag.ID] = ag.RecentMessages
		total += ag.RecentMessages
	}
	if total == 0 {
		for _, m := range types.AgentMessages(in.Messages) {
			if _, ok := sc.counts[m.SpeakerID]; ok {
				sc.counts[m.SpeakerID]++
				total++
			}
		}
	}
	sc.avg = float64(total) / float64(len(in.Roster))

	sc.mentions = make(map[string]bool, len(in.Roster))
	for _, m := range types.Tail(in.Messages, a.weights.MentionWindow) {
		content := strings.ToLower(m.Content)
		for _, ag := range in.Roster {
			if ag.ID != m.SpeakerID && strings.Contains(content, strings.ToLower(ag.DisplayName())) {
				sc.mentions[ag.ID] = true
			}
		}
	}
	return sc
}

func (sc *scorer) score(ctx context.Context, ag types.Agent, role scene.Role, isLead bool, protagonistID string) (Score, error) {
	w := sc.a.weights
	s := Score{AgentID: ag.ID, Role: role.Name}

	if isLead || role.Tag == scene.TagProtagonist {
		s.Rotation = sc.rotation(ag)
	}

	if sc.avg > 0 {
		s.Participation = clamp((sc.avg-float64(sc.counts[ag.ID]))/sc.avg, -1, 1) * w.Participation
	}

	s.Personality = personalityFit(ag, role.Tag, w.Trait)
	if s.Personality > 0 && themeMatches(role.Tag, sc.in.Scene.Category) {
		s.Personality += w.CategoryBonus
	}

	if protagonistID != "" && protagonistID != ag.ID && sc.a.relations != nil {
		rel, ok, err := sc.a.relations.Find(ctx, sc.in.GroupID, protagonistID, ag.ID)
		if err != nil {
			return Score{}, err
		}
		if ok {
			s.Relational = relationalFit(role.Tag, rel, w)
		}
	}

	if sc.mentions[ag.ID] {
		s.Mention = w.Mention
	}
	return s, nil
}

func (sc *scorer) rotation(ag types.Agent) float64 {
	w := sc.a.weights
	turns := w.RotationCapTurns
	last, led := ag.LastLedTurn()
	if led {
		turns = sc.in.CurrentTurn - last
	}
	if led && turns <= w.RecentProtagonistTurns {
		return -w.RecentProtagonistPenalty
	}
	return float64(min(turns, w.RotationCapTurns)) * w.RotationPerTurn
}

// relationalFit rewards antagonists who dislike the protagonist and
// allies or romantic partners who like them. The reward saturates at
// |affinity| = 4, the allies/tense cut point.
func relationalFit(tag scene.RoleTag, rel *relation.Relation, w Weights) float64 {
	lean := clamp(rel.Affinity/4, -1, 1)
	switch tag {
	case scene.TagAntagonist:
		return -lean * w.Relation
	case scene.TagAlly:
		return lean * w.Relation
	case scene.TagRomantic:
		if lean > 0 && rel.Tension > w.RomanticMaxTension {
			return 0
		}
		return lean * w.Relation
	default:
		return 0
	}
}
