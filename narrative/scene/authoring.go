package scene

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the authoring format of a scene catalog file.
type File struct {
	Scenes []SceneDoc `yaml:"scenes"`
}

// SceneDoc is one authored scene before compilation.
type SceneDoc struct {
	Code          string            `yaml:"code"`
	Name          string            `yaml:"name"`
	Description   string            `yaml:"description"`
	Category      string            `yaml:"category"`
	MinAIs        int               `yaml:"min_ais"`
	MaxAIs        int               `yaml:"max_ais"`
	Roles         []RoleDoc         `yaml:"roles"`
	Interventions []InterventionDoc `yaml:"interventions"`
	Consequences  ConsequencesDoc   `yaml:"consequences"`
	Triggers      Triggers          `yaml:"triggers"`
	Active        *bool             `yaml:"active"`
}

// RoleDoc accepts either a bare role name or a {name, tag} mapping.
type RoleDoc struct {
	Name string `yaml:"name"`
	Tag  string `yaml:"tag"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *RoleDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Name = node.Value
		return nil
	}
	type plain RoleDoc
	return node.Decode((*plain)(r))
}

// InterventionDoc is one authored step.
type InterventionDoc struct {
	Role       string `yaml:"role"`
	Directive  string `yaml:"directive"`
	TargetRole string `yaml:"target_role"`
	DelayMS    int    `yaml:"delay_ms"`
	Tone       string `yaml:"tone"`
}

// ConsequencesDoc is the authored consequence block.
type ConsequencesDoc struct {
	Seeds     []SeedDoc     `yaml:"seeds"`
	Relations []RelationDoc `yaml:"relations"`
	Effects   []EffectDoc   `yaml:"effects"`
}

// SeedDoc is an authored seed template.
type SeedDoc struct {
	Type          string   `yaml:"type"`
	Title         string   `yaml:"title"`
	Content       string   `yaml:"content"`
	InvolvedRoles []string `yaml:"involved_roles"`
	LatencyTurns  int      `yaml:"latency_turns"`
	MaxTurns      int      `yaml:"max_turns"`
}

// RelationDoc is an authored relation delta.
type RelationDoc struct {
	Roles          []string `yaml:"roles"`
	Affinity       float64  `yaml:"affinity"`
	Tension        float64  `yaml:"tension"`
	AddDynamics    []string `yaml:"add_dynamics"`
	RemoveDynamics []string `yaml:"remove_dynamics"`
	Moment         string   `yaml:"moment"`
}

// EffectDoc is the loosely typed authored effect {type, target, value}.
type EffectDoc struct {
	Type   string `yaml:"type"`
	Target string `yaml:"target"`
	Value  any    `yaml:"value"`
}

// LoadFile reads and compiles a YAML (or JSON) catalog file.
func LoadFile(path string) ([]*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	return Parse(data)
}

// Parse compiles a catalog document and validates every scene.
func Parse(data []byte) ([]*Scene, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scene file: %w", err)
	}

	scenes := make([]*Scene, 0, len(f.Scenes))
	var errs []error
	for i, doc := range f.Scenes {
		s, err := doc.Compile()
		if err != nil {
			errs = append(errs, fmt.Errorf("scene #%d (%q): %w", i, doc.Code, err))
			continue
		}
		scenes = append(scenes, s)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := ValidateAll(scenes); err != nil {
		return nil, err
	}
	return scenes, nil
}

// Compile converts an authored scene into its typed form.
func (d SceneDoc) Compile() (*Scene, error) {
	s := &Scene{
		Code:        strings.TrimSpace(d.Code),
		Name:        d.Name,
		Description: d.Description,
		Category:    Category(strings.ToUpper(strings.TrimSpace(d.Category))),
		MinAIs:      d.MinAIs,
		MaxAIs:      d.MaxAIs,
		Triggers:    d.Triggers,
		Active:      d.Active == nil || *d.Active,
	}
	if s.Name == "" {
		s.Name = s.Code
	}

	for _, r := range d.Roles {
		tag := RoleTag(strings.ToLower(strings.TrimSpace(r.Tag)))
		if tag == "" {
			tag = ResolveTag(r.Name)
		}
		s.Roles = append(s.Roles, Role{Name: strings.TrimSpace(r.Name), Tag: tag})
	}

	for _, in := range d.Interventions {
		s.Interventions = append(s.Interventions, Intervention{
			Role:       in.Role,
			Directive:  in.Directive,
			TargetRole: in.TargetRole,
			Delay:      time.Duration(in.DelayMS) * time.Millisecond,
			Tone:       in.Tone,
		})
	}

	for _, sd := range d.Consequences.Seeds {
		s.Consequences.Seeds = append(s.Consequences.Seeds, SeedTemplate(sd))
	}

	for i, rd := range d.Consequences.Relations {
		if len(rd.Roles) != 2 {
			return nil, fmt.Errorf("relation consequence %d needs exactly two roles, got %d", i, len(rd.Roles))
		}
		s.Consequences.Relations = append(s.Consequences.Relations, RelationDelta{
			RoleA:          rd.Roles[0],
			RoleB:          rd.Roles[1],
			AffinityDelta:  rd.Affinity,
			TensionDelta:   rd.Tension,
			AddDynamics:    rd.AddDynamics,
			RemoveDynamics: rd.RemoveDynamics,
			SharedMoment:   rd.Moment,
		})
	}

	for i, ed := range d.Consequences.Effects {
		e, err := ed.Compile()
		if err != nil {
			return nil, fmt.Errorf("effect %d: %w", i, err)
		}
		s.Consequences.Effects = append(s.Consequences.Effects, e)
	}

	return s, nil
}

// Compile turns the loose {type, target, value} triple into a typed Effect.
func (d EffectDoc) Compile() (Effect, error) {
	kind := EffectKind(strings.ToLower(strings.TrimSpace(d.Type)))
	switch kind {
	case EffectAdjustTension:
		roles := strings.Split(d.Target, ",")
		if len(roles) != 2 {
			return Effect{}, fmt.Errorf("adjust_tension target must be \"ROLE_A,ROLE_B\", got %q", d.Target)
		}
		delta, err := toFloat(d.Value)
		if err != nil {
			return Effect{}, fmt.Errorf("adjust_tension value: %w", err)
		}
		return Effect{
			Kind:  kind,
			RoleA: strings.TrimSpace(roles[0]),
			RoleB: strings.TrimSpace(roles[1]),
			Delta: delta,
		}, nil
	case EffectEscalateSeed:
		return Effect{Kind: kind, SeedType: strings.TrimSpace(d.Target), Reason: toString(d.Value)}, nil
	case EffectResolveSeed:
		return Effect{Kind: kind, SeedType: strings.TrimSpace(d.Target), Resolution: toString(d.Value)}, nil
	default:
		return Effect{Kind: EffectUnknown, RawType: d.Type}, nil
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
