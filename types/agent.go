package types

import "strings"

// Trait is one of the Big Five personality dimensions, scored 0-100.
type Trait string

const (
	TraitOpenness          Trait = "openness"
	TraitConscientiousness Trait = "conscientiousness"
	TraitExtraversion      Trait = "extraversion"
	TraitAgreeableness     Trait = "agreeableness"
	TraitNeuroticism       Trait = "neuroticism"
)

// NeutralTraitScore is assumed for traits an agent does not declare.
const NeutralTraitScore = 50.0

// Agent is a conversational AI member of a group as seen by the scheduler.
// The roster itself is owned by the host; the scheduler only reads it.
type Agent struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Personality map[Trait]float64 `json:"personality,omitempty"`

	// RecentMessages is the participation metric over the host's recent window.
	RecentMessages int `json:"recent_messages"`

	// LastProtagonistTurn is the group turn at which the agent last held a
	// protagonist role. Group turns start at 1, so zero (the field omitted)
	// and negative values mean it never has.
	LastProtagonistTurn int `json:"last_protagonist_turn,omitempty"`
}

// LastLedTurn returns the turn the agent last led a scene and whether it
// ever has.
func (a Agent) LastLedTurn() (int, bool) {
	if a.LastProtagonistTurn < 1 {
		return 0, false
	}
	return a.LastProtagonistTurn, true
}

// DisplayName returns the name used in directives, falling back to the ID.
func (a Agent) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// TraitScore returns the agent's score for t, or NeutralTraitScore.
func (a Agent) TraitScore(t Trait) float64 {
	if v, ok := a.Personality[t]; ok {
		return v
	}
	return NeutralTraitScore
}

// Roster is the ordered list of agents participating in a group.
type Roster []Agent

// ByID returns the agent with the given id.
func (r Roster) ByID(id string) (Agent, bool) {
	for _, a := range r {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

// IDs returns agent ids in roster order.
func (r Roster) IDs() []string {
	ids := make([]string, len(r))
	for i, a := range r {
		ids[i] = a.ID
	}
	return ids
}

// Names maps agent ids to display names.
func (r Roster) Names() map[string]string {
	names := make(map[string]string, len(r))
	for _, a := range r {
		names[a.ID] = a.DisplayName()
	}
	return names
}

// FindByName performs a case-insensitive lookup by display name.
func (r Roster) FindByName(name string) (Agent, bool) {
	for _, a := range r {
		if strings.EqualFold(a.DisplayName(), name) {
			return a, true
		}
	}
	return Agent{}, false
}
