package director

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/narrative/loop"
	"github.com/BaSui01/sceneflow/narrative/roles"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/narrative/seed"
	"github.com/BaSui01/sceneflow/types"
)

const instrumentationName = "github.com/BaSui01/sceneflow/narrative/director"

// NoScene is the chooser answer for "inject nothing this turn".
const NoScene = "none"

// Reason explains a decision.
type Reason string

const (
	ReasonNoCandidates      Reason = "no_candidates"
	ReasonDirectorChoseNone Reason = "director_chose_none"
	ReasonSceneNotFound     Reason = "scene_not_found"
	ReasonSceneSelected     Reason = "scene_selected"
	ReasonError             Reason = "error"
)

// Request is what the chooser sees.
type Request struct {
	GroupID    string          `json:"group_id"`
	Roster     types.Roster    `json:"roster"`
	Messages   []types.Message `json:"messages"`
	Candidates []*scene.Scene  `json:"candidates"`
	Loops      []loop.Pattern  `json:"loops,omitempty"`
	// Corrective is the most urgent loop correction, if any.
	Corrective *loop.Corrective `json:"corrective,omitempty"`
}

// Chooser makes the final pick among candidates. It returns a scene code or
// NoScene, and may fail or time out.
type Chooser interface {
	ChooseScene(ctx context.Context, req Request) (string, error)
}

// ChooserFunc adapts a function to Chooser.
type ChooserFunc func(ctx context.Context, req Request) (string, error)

func (f ChooserFunc) ChooseScene(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// CandidateSource finds candidate scenes.
type CandidateSource interface {
	FindCandidates(ctx context.Context, filter scene.Filter) ([]*scene.Scene, error)
}

// SeedReader exposes the seed counts the filter needs.
type SeedReader interface {
	CountActive(ctx context.Context, groupID string) (int, error)
	MaxEscalation(ctx context.Context, groupID string) (int, error)
}

// TensionReader reports mean pairwise tension for a set of agents.
type TensionReader interface {
	MeanTension(ctx context.Context, groupID string, agentIDs []string) (float64, error)
}

// Config tunes the director.
type Config struct {
	DramaticCooldown time.Duration `json:"dramatic_cooldown" yaml:"dramatic_cooldown"`
	RecentExclusion  int           `json:"recent_exclusion" yaml:"recent_exclusion"`
	MaxActiveSeeds   int           `json:"max_active_seeds" yaml:"max_active_seeds"`
	CandidateLimit   int           `json:"candidate_limit" yaml:"candidate_limit"`
	ChooserTimeout   time.Duration `json:"chooser_timeout" yaml:"chooser_timeout"`
	// BandTolerance is the radius of the energy and tension bands built
	// around the measured values.
	BandTolerance float64 `json:"band_tolerance" yaml:"band_tolerance"`
	// DramaticCategories are excluded during the dramatic cool-down.
	DramaticCategories []scene.Category `json:"dramatic_categories" yaml:"dramatic_categories"`
}

// DefaultConfig returns the default director configuration.
func DefaultConfig() Config {
	return Config{
		DramaticCooldown: 10 * time.Minute,
		RecentExclusion:  5,
		MaxActiveSeeds:   seed.DefaultConfig().MaxActive,
		CandidateLimit:   10,
		ChooserTimeout:   8 * time.Second,
		BandTolerance:    0.3,

		DramaticCategories: scene.DefaultDramaticCategories(),
	}
}

// Input is one decision cycle's view of a group.
type Input struct {
	GroupID  string
	Roster   types.Roster
	Messages []types.Message
	State    *GroupSceneState
	Turn     int
	// EnergyBand and TensionBand override the measured bands when set.
	EnergyBand  *scene.Band
	TensionBand *scene.Band
	// RequiredRoles restricts candidates to scenes declaring these roles or tags.
	RequiredRoles []string
}

// Decision is the outcome of SelectScene. A decision without a scene is a
// normal outcome, never an error.
type Decision struct {
	Reason     Reason           `json:"reason"`
	SceneCode  string           `json:"scene_code,omitempty"`
	Scene      *scene.Scene     `json:"-"`
	Assignment roles.Assignment `json:"assignment"`
	// MissingRoles is set when role binding was incomplete.
	MissingRoles []string       `json:"missing_roles,omitempty"`
	Candidates   []string       `json:"candidates"`
	Loops        []loop.Pattern `json:"loops,omitempty"`
	Monotony     float64        `json:"monotony"`
	Analysis     Analysis       `json:"analysis"`
	Error        string         `json:"error,omitempty"`
}

// Selected reports whether a scene was chosen and fully bound.
func (d Decision) Selected() bool {
	return d.Reason == ReasonSceneSelected
}

// Director picks at most one scene per turn.
type Director struct {
	catalog  CandidateSource
	detector *loop.Detector
	seeds    SeedReader
	tension  TensionReader
	assigner *roles.Assigner
	chooser  Chooser
	config   Config
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a director.
func New(catalog CandidateSource, detector *loop.Detector, seeds SeedReader, tension TensionReader,
	assigner *roles.Assigner, chooser Chooser, config Config, logger *zap.Logger) *Director {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.DramaticCooldown <= 0 {
		config.DramaticCooldown = def.DramaticCooldown
	}
	if config.RecentExclusion <= 0 {
		config.RecentExclusion = def.RecentExclusion
	}
	if config.MaxActiveSeeds <= 0 {
		config.MaxActiveSeeds = def.MaxActiveSeeds
	}
	if config.CandidateLimit <= 0 {
		config.CandidateLimit = def.CandidateLimit
	}
	if config.ChooserTimeout <= 0 {
		config.ChooserTimeout = def.ChooserTimeout
	}
	if config.BandTolerance <= 0 {
		config.BandTolerance = def.BandTolerance
	}
	if len(config.DramaticCategories) == 0 {
		config.DramaticCategories = def.DramaticCategories
	} else {
		config.DramaticCategories = slices.Clone(config.DramaticCategories)
	}
	if detector == nil {
		detector = loop.NewDetector(loop.DefaultConfig(), logger)
	}
	return &Director{
		catalog:  catalog,
		detector: detector,
		seeds:    seeds,
		tension:  tension,
		assigner: assigner,
		chooser:  chooser,
		config:   config,
		logger:   logger.With(zap.String("component", "director")),
		tracer:   otel.Tracer(instrumentationName),
		now:      time.Now,
	}
}

// Config returns the effective configuration.
func (d *Director) Config() Config {
	cfg := d.config
	cfg.DramaticCategories = slices.Clone(d.config.DramaticCategories)
	return cfg
}

// IsDramatic reports whether scenes of category c start the dramatic
// cool-down.
func (d *Director) IsDramatic(c scene.Category) bool {
	return slices.Contains(d.config.DramaticCategories, c)
}

// SelectScene runs one decision cycle. Failures of any collaborator
// degrade to a decision with ReasonError; the chooser is never retried.
func (d *Director) SelectScene(ctx context.Context, in Input) (dec Decision) {
	ctx, span := d.tracer.Start(ctx, "director.select_scene",
		trace.WithAttributes(
			attribute.String("group.id", in.GroupID),
			attribute.Int("roster.size", len(in.Roster)),
			attribute.Int("turn", in.Turn),
		))
	defer func() {
		span.SetAttributes(
			attribute.String("decision.reason", string(dec.Reason)),
			attribute.String("decision.scene", dec.SceneCode),
			attribute.Int("decision.candidates", len(dec.Candidates)),
		)
		if dec.Reason == ReasonError {
			span.SetStatus(codes.Error, dec.Error)
		}
		span.End()
	}()

	log := d.logger.With(zap.String("group_id", in.GroupID), zap.Int("turn", in.Turn))

	dec.Loops = d.detector.Detect(in.Messages)
	dec.Monotony = loop.MonotonyScore(dec.Loops)

	filter, analysis, err := d.BuildFilter(ctx, in, dec.Loops)
	dec.Analysis = analysis
	if err != nil {
		return d.fail(log, dec, "build filter", err)
	}

	candidates, err := d.catalog.FindCandidates(ctx, filter)
	if err != nil {
		return d.fail(log, dec, "find candidates", err)
	}
	dec.Candidates = make([]string, len(candidates))
	for i, c := range candidates {
		dec.Candidates[i] = c.Code
	}
	if len(candidates) == 0 {
		dec.Reason = ReasonNoCandidates
		log.Debug("no candidates")
		return dec
	}

	req := Request{
		GroupID:    in.GroupID,
		Roster:     in.Roster,
		Messages:   in.Messages,
		Candidates: candidates,
		Loops:      dec.Loops,
	}
	if c, ok := loop.MostUrgent(dec.Loops); ok {
		req.Corrective = &c
	}

	answer, err := d.choose(ctx, req)
	if err != nil {
		return d.fail(log, dec, "chooser", err)
	}

	code := normalizeAnswer(answer)
	if code == "" || strings.EqualFold(code, NoScene) {
		dec.Reason = ReasonDirectorChoseNone
		log.Debug("chooser declined")
		return dec
	}

	chosen := matchCandidate(candidates, code)
	if chosen == nil {
		dec.Reason = ReasonSceneNotFound
		log.Warn("chooser returned a code outside the candidate set", zap.String("code", code))
		return dec
	}

	assignment, err := d.assigner.Assign(ctx, roles.Input{
		GroupID:     in.GroupID,
		Scene:       chosen,
		Roster:      in.Roster,
		Messages:    in.Messages,
		CurrentTurn: in.Turn,
	})
	if err != nil {
		return d.fail(log, dec, "assign roles", err)
	}
	dec.Assignment = assignment
	if missing := roles.Validate(chosen, assignment.Bindings); len(missing) > 0 {
		dec.MissingRoles = missing
		return d.fail(log, dec, "assign roles",
			types.Errorf(types.ErrIncompleteBinding, "scene %q has unbound roles: %s", chosen.Code, strings.Join(missing, ", ")))
	}

	dec.Reason = ReasonSceneSelected
	dec.SceneCode = chosen.Code
	dec.Scene = chosen
	log.Info("scene selected",
		zap.String("scene", chosen.Code),
		zap.String("category", string(chosen.Category)),
		zap.Any("bindings", assignment.Bindings),
	)
	return dec
}

// BuildFilter derives the candidate filter from the group's state, seeds,
// relations and loop findings.
func (d *Director) BuildFilter(ctx context.Context, in Input, loops []loop.Pattern) (scene.Filter, Analysis, error) {
	now := d.now()
	analysis := Analyze(in.Roster, in.Messages, now)

	f := scene.Filter{
		AICount:       len(in.Roster),
		RequiredRoles: in.RequiredRoles,
		Limit:         d.config.CandidateLimit,
	}

	if st := in.State; st != nil {
		if st.LastDramaticAt != nil && now.Sub(*st.LastDramaticAt) < d.config.DramaticCooldown {
			f.ExcludeCategories = append(f.ExcludeCategories, d.config.DramaticCategories...)
		}
		f.ExcludeCodes = st.LastScenes(d.config.RecentExclusion)
	}

	if d.seeds != nil {
		active, err := d.seeds.CountActive(ctx, in.GroupID)
		if err != nil {
			return f, analysis, fmt.Errorf("count seeds: %w", err)
		}
		f.ExcludeSeedSpawning = active >= d.config.MaxActiveSeeds
	}

	tension, err := d.narrativeTension(ctx, in)
	if err != nil {
		return f, analysis, err
	}
	analysis.Tension = tension

	if in.EnergyBand != nil {
		b := *in.EnergyBand
		f.EnergyBand = &b
	} else {
		b := scene.Around(analysis.Energy, d.config.BandTolerance)
		f.EnergyBand = &b
	}
	if in.TensionBand != nil {
		b := *in.TensionBand
		f.TensionBand = &b
	} else {
		b := scene.Around(tension, d.config.BandTolerance)
		f.TensionBand = &b
	}

	if c, ok := loop.MostUrgent(loops); ok {
		f.PreferredCategories = c.Categories
	}
	return f, analysis, nil
}

// narrativeTension is the larger of the mean pairwise tension and the
// highest seed escalation scaled to [0,1].
func (d *Director) narrativeTension(ctx context.Context, in Input) (float64, error) {
	var rel, esc float64
	if d.tension != nil && len(in.Roster) > 1 {
		t, err := d.tension.MeanTension(ctx, in.GroupID, in.Roster.IDs())
		if err != nil {
			return 0, fmt.Errorf("mean tension: %w", err)
		}
		rel = t
	}
	if d.seeds != nil {
		lvl, err := d.seeds.MaxEscalation(ctx, in.GroupID)
		if err != nil {
			return 0, fmt.Errorf("max escalation: %w", err)
		}
		esc = float64(lvl) / seed.MaxEscalationLevel
	}
	return max(rel, esc), nil
}

type chooseResult struct {
	code string
	err  error
}

// choose runs the chooser under the hard timeout. A chooser that ignores
// its context is abandoned, not awaited.
func (d *Director) choose(ctx context.Context, req Request) (string, error) {
	if d.chooser == nil {
		return "", types.NewError(types.ErrChooserFailed, "no chooser configured")
	}
	ctx, cancel := context.WithTimeout(ctx, d.config.ChooserTimeout)
	defer cancel()

	done := make(chan chooseResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- chooseResult{err: types.Errorf(types.ErrChooserFailed, "chooser panicked: %v", r)}
			}
		}()
		code, err := d.chooser.ChooseScene(ctx, req)
		done <- chooseResult{code: code, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return "", types.NewError(types.ErrChooserTimeout, "chooser timed out").WithCause(res.err)
			}
			return "", res.err
		}
		return res.code, nil
	case <-ctx.Done():
		return "", types.NewError(types.ErrChooserTimeout, "chooser timed out").WithCause(ctx.Err())
	}
}

func (d *Director) fail(log *zap.Logger, dec Decision, stage string, err error) Decision {
	dec.Reason = ReasonError
	dec.SceneCode = ""
	dec.Scene = nil
	dec.Error = fmt.Sprintf("%s: %v", stage, err)
	log.Warn("scene selection failed", zap.String("stage", stage), zap.Error(err))
	return dec
}

// normalizeAnswer trims whitespace, quotes and backticks around a code.
// matchCandidate prefers an exact code match and falls back to a
// case-insensitive one only when it is unambiguous.
func matchCandidate(candidates []*scene.Scene, code string) *scene.Scene {
	var folded *scene.Scene
	n := 0
	for _, c := range candidates {
		if c.Code == code {
			return c
		}
		if strings.EqualFold(c.Code, code) {
			folded = c
			n++
		}
	}
	if n != 1 {
		return nil
	}
	return folded
}

func normalizeAnswer(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`\"' \t\n.")
}
