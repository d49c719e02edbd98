package relation

import (
	"slices"
	"time"
)

// Type classifies a relation. It is always derived from affinity.
type Type string

const (
	TypeNeutral Type = "neutral"
	TypeFriends Type = "friends"
	TypeAllies  Type = "allies"
	TypeTense   Type = "tense"
	TypeRivals  Type = "rivals"
)

const (
	MinAffinity      = -10.0
	MaxAffinity      = 10.0
	MaxSharedMoments = 10
)

// TypeForAffinity maps affinity onto the fixed cut points.
func TypeForAffinity(affinity float64) Type {
	switch {
	case affinity >= 7:
		return TypeFriends
	case affinity >= 4:
		return TypeAllies
	case affinity <= -7:
		return TypeRivals
	case affinity <= -4:
		return TypeTense
	default:
		return TypeNeutral
	}
}

// Moment is a shared memory between the two agents of a relation.
type Moment struct {
	Description string    `json:"description"`
	SceneCode   string    `json:"scene_code,omitempty"`
	At          time.Time `json:"at"`
}

// Relation is the pairwise state between two agents of a group.
// AgentAID is always lexicographically smaller than AgentBID.
type Relation struct {
	ID                string    `json:"id"`
	GroupID           string    `json:"group_id"`
	AgentAID          string    `json:"agent_a_id"`
	AgentBID          string    `json:"agent_b_id"`
	Affinity          float64   `json:"affinity"`
	Tension           float64   `json:"tension"`
	Type              Type      `json:"relation_type"`
	Dynamics          []string  `json:"dynamics"`
	SharedMoments     []Moment  `json:"shared_moments"`
	InteractionCount  int       `json:"interaction_count"`
	LastInteractionAt time.Time `json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CanonicalPair orders two agent ids so an unordered pair has one key.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Key returns the storage key of the pair within a group.
func Key(groupID, a, b string) string {
	a, b = CanonicalPair(a, b)
	return groupID + "|" + a + "|" + b
}

// Involves reports whether agentID is one side of the relation.
func (r *Relation) Involves(agentID string) bool {
	return r.AgentAID == agentID || r.AgentBID == agentID
}

// Other returns the counterpart of agentID.
func (r *Relation) Other(agentID string) string {
	if r.AgentAID == agentID {
		return r.AgentBID
	}
	return r.AgentAID
}

// HasDynamic reports whether tag is in the dynamics set.
func (r *Relation) HasDynamic(tag string) bool {
	return slices.Contains(r.Dynamics, tag)
}

// Clone returns a deep copy.
func (r *Relation) Clone() *Relation {
	c := *r
	c.Dynamics = slices.Clone(r.Dynamics)
	c.SharedMoments = slices.Clone(r.SharedMoments)
	return &c
}

func (r *Relation) setAffinity(v float64) {
	r.Affinity = clamp(v, MinAffinity, MaxAffinity)
	r.Type = TypeForAffinity(r.Affinity)
}

func (r *Relation) setTension(v float64) {
	r.Tension = clamp(v, 0, 1)
}

func (r *Relation) addDynamic(tag string) {
	if tag == "" || r.HasDynamic(tag) {
		return
	}
	r.Dynamics = append(r.Dynamics, tag)
}

func (r *Relation) removeDynamic(tag string) {
	r.Dynamics = slices.DeleteFunc(r.Dynamics, func(d string) bool { return d == tag })
}

func (r *Relation) addMoment(m Moment) {
	r.SharedMoments = append(r.SharedMoments, m)
	if n := len(r.SharedMoments); n > MaxSharedMoments {
		r.SharedMoments = slices.Clone(r.SharedMoments[n-MaxSharedMoments:])
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
