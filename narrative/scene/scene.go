package scene

import (
	"slices"
	"strings"
	"time"
)

// Category is the thematic tag of a scene.
type Category string

const (
	CategoryTension        Category = "TENSION"
	CategoryHumor          Category = "HUMOR"
	CategoryVulnerability  Category = "VULNERABILIDAD"
	CategoryDebate         Category = "DEBATE"
	CategoryRomance        Category = "ROMANCE"
	CategoryEveryday       Category = "COTIDIANO"
	CategoryDiscovery      Category = "DESCUBRIMIENTO"
	CategoryReconciliation Category = "RECONCILIACION"
	CategoryMystery        Category = "MISTERIO"
	CategoryProactivity    Category = "PROACTIVIDAD"
)

// DefaultDramaticCategories returns the categories subject to the dramatic
// cool-down when none are configured.
func DefaultDramaticCategories() []Category {
	return []Category{CategoryTension, CategoryVulnerability}
}

// ParseCategories normalizes configured category names. Blank names are
// dropped.
func ParseCategories(names []string) []Category {
	var out []Category
	for _, n := range names {
		if n = strings.ToUpper(strings.TrimSpace(n)); n != "" {
			out = append(out, Category(n))
		}
	}
	return out
}

// Role is a named slot of a scene. Tag drives scoring in role assignment.
type Role struct {
	Name string  `json:"name" yaml:"name"`
	Tag  RoleTag `json:"tag" yaml:"tag"`
}

// Intervention is one step of a scene's sequence.
type Intervention struct {
	Role       string        `json:"role"`
	Directive  string        `json:"directive"`
	TargetRole string        `json:"target_role,omitempty"`
	Delay      time.Duration `json:"delay"`
	Tone       string        `json:"tone,omitempty"`
}

// SeedTemplate declares a tension seed spawned when the scene completes.
type SeedTemplate struct {
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	InvolvedRoles []string `json:"involved_roles"`
	LatencyTurns  int      `json:"latency_turns,omitempty"`
	MaxTurns      int      `json:"max_turns,omitempty"`
}

// RelationDelta declares a relation change between two roles.
type RelationDelta struct {
	RoleA          string   `json:"role_a"`
	RoleB          string   `json:"role_b"`
	AffinityDelta  float64  `json:"affinity_delta"`
	TensionDelta   float64  `json:"tension_delta"`
	AddDynamics    []string `json:"add_dynamics,omitempty"`
	RemoveDynamics []string `json:"remove_dynamics,omitempty"`
	SharedMoment   string   `json:"shared_moment,omitempty"`
}

// EffectKind tags an ad-hoc effect.
type EffectKind string

const (
	EffectAdjustTension EffectKind = "adjust_tension"
	EffectEscalateSeed  EffectKind = "escalate_seed"
	EffectResolveSeed   EffectKind = "resolve_seed"
	EffectUnknown       EffectKind = "unknown"
)

// Effect is a tagged union over the supported ad-hoc effects. Only the
// fields of its Kind are meaningful. Unknown effects keep their raw type
// so they can be reported and skipped at run time.
type Effect struct {
	Kind    EffectKind `json:"kind"`
	RawType string     `json:"raw_type,omitempty"`

	// adjust_tension
	RoleA string  `json:"role_a,omitempty"`
	RoleB string  `json:"role_b,omitempty"`
	Delta float64 `json:"delta,omitempty"`

	// escalate_seed and resolve_seed. Escalation without a seed type targets
	// the group's most pressing seed.
	SeedType   string `json:"seed_type,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// Consequences are applied once a scene completes.
type Consequences struct {
	Seeds     []SeedTemplate  `json:"seeds,omitempty"`
	Relations []RelationDelta `json:"relations,omitempty"`
	Effects   []Effect        `json:"effects,omitempty"`
}

// IsEmpty reports whether nothing is declared.
func (c Consequences) IsEmpty() bool {
	return len(c.Seeds) == 0 && len(c.Relations) == 0 && len(c.Effects) == 0
}

// Band is an inclusive [Min, Max] range over a 0-1 signal.
type Band struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether inner lies fully inside b.
func (b Band) Contains(inner Band) bool {
	return inner.Min >= b.Min && inner.Max <= b.Max
}

// Around builds a band of the given radius around v, clipped to [0,1].
func Around(v, radius float64) Band {
	return Band{Min: max(0, v-radius), Max: min(1, v+radius)}
}

// Triggers are the optional bands a scene is designed for.
type Triggers struct {
	Energy  *Band `json:"energy,omitempty"`
	Tension *Band `json:"tension,omitempty"`
}

// UsageStats tracks how a scene has performed.
type UsageStats struct {
	Count         int        `json:"count"`
	SuccessRate   float64    `json:"success_rate"`
	AvgEngagement float64    `json:"avg_engagement"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}

// UsageUpdate is one completed (or abandoned) execution.
type UsageUpdate struct {
	Success bool
	// Engagement is an optional 0-1 engagement observation.
	Engagement *float64
	At         time.Time
}

// Apply folds u into running averages.
func (s UsageStats) Apply(u UsageUpdate) UsageStats {
	n := float64(s.Count)
	outcome := 0.0
	if u.Success {
		outcome = 1
	}
	s.SuccessRate = (s.SuccessRate*n + outcome) / (n + 1)
	if u.Engagement != nil {
		s.AvgEngagement = (s.AvgEngagement*n + *u.Engagement) / (n + 1)
	}
	s.Count++
	at := u.At
	if at.IsZero() {
		at = time.Now()
	}
	s.LastUsedAt = &at
	return s
}

// Scene is an authored micro-event. Scenes loaded by a Catalog are shared
// and must be treated as read-only.
type Scene struct {
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Category      Category       `json:"category"`
	MinAIs        int            `json:"min_ais"`
	MaxAIs        int            `json:"max_ais"`
	Roles         []Role         `json:"roles"`
	Interventions []Intervention `json:"interventions"`
	Consequences  Consequences   `json:"consequences"`
	Triggers      Triggers       `json:"triggers"`
	Usage         UsageStats     `json:"usage"`
	Active        bool           `json:"active"`
}

// RoleNames returns role names in declaration order.
func (s *Scene) RoleNames() []string {
	names := make([]string, len(s.Roles))
	for i, r := range s.Roles {
		names[i] = r.Name
	}
	return names
}

// Role looks up a role by name.
func (s *Scene) Role(name string) (Role, bool) {
	for _, r := range s.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

// HasRole matches a role by name (case-insensitive) or by tag.
func (s *Scene) HasRole(nameOrTag string) bool {
	for _, r := range s.Roles {
		if strings.EqualFold(r.Name, nameOrTag) || string(r.Tag) == strings.ToLower(nameOrTag) {
			return true
		}
	}
	return false
}

// LeadRole is the first protagonist-tagged role, else the first role.
func (s *Scene) LeadRole() string {
	for _, r := range s.Roles {
		if r.Tag == TagProtagonist {
			return r.Name
		}
	}
	if len(s.Roles) > 0 {
		return s.Roles[0].Name
	}
	return ""
}

// SpawnsSeeds reports whether completing the scene can create seeds.
func (s *Scene) SpawnsSeeds() bool {
	return len(s.Consequences.Seeds) > 0
}

// Clone returns a deep copy.
func (s *Scene) Clone() *Scene {
	c := *s
	c.Roles = slices.Clone(s.Roles)
	c.Interventions = slices.Clone(s.Interventions)
	c.Consequences.Seeds = make([]SeedTemplate, len(s.Consequences.Seeds))
	for i, st := range s.Consequences.Seeds {
		st.InvolvedRoles = slices.Clone(st.InvolvedRoles)
		c.Consequences.Seeds[i] = st
	}
	c.Consequences.Relations = make([]RelationDelta, len(s.Consequences.Relations))
	for i, rd := range s.Consequences.Relations {
		rd.AddDynamics = slices.Clone(rd.AddDynamics)
		rd.RemoveDynamics = slices.Clone(rd.RemoveDynamics)
		c.Consequences.Relations[i] = rd
	}
	c.Consequences.Effects = slices.Clone(s.Consequences.Effects)
	if s.Triggers.Energy != nil {
		b := *s.Triggers.Energy
		c.Triggers.Energy = &b
	}
	if s.Triggers.Tension != nil {
		b := *s.Triggers.Tension
		c.Triggers.Tension = &b
	}
	if s.Usage.LastUsedAt != nil {
		t := *s.Usage.LastUsedAt
		c.Usage.LastUsedAt = &t
	}
	return &c
}
