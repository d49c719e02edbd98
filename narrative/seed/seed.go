package seed

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a tension seed.
type Status string

const (
	StatusLatent     Status = "LATENT"
	StatusActive     Status = "ACTIVE"
	StatusEscalating Status = "ESCALATING"
	StatusResolving  Status = "RESOLVING"
	StatusResolved   Status = "RESOLVED"
	StatusExpired    Status = "EXPIRED"
)

// IsTerminal returns true if the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusExpired
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusLatent, StatusActive, StatusEscalating, StatusResolving, StatusResolved, StatusExpired:
		return true
	}
	return false
}

// NonTerminalStatuses lists every status that counts against the group budget.
var NonTerminalStatuses = []Status{StatusLatent, StatusActive, StatusEscalating, StatusResolving}

// ResolutionKind records how a seed was closed.
type ResolutionKind string

const (
	ResolutionNatural   ResolutionKind = "natural"
	ResolutionForced    ResolutionKind = "forced"
	ResolutionAbandoned ResolutionKind = "abandoned"
)

// IsValid reports whether k is a known resolution kind.
func (k ResolutionKind) IsValid() bool {
	return k == ResolutionNatural || k == ResolutionForced || k == ResolutionAbandoned
}

// MaxEscalationLevel caps Seed.EscalationLevel.
const MaxEscalationLevel = 3

// Seed is a pending narrative thread of a group.
type Seed struct {
	ID              string   `json:"id"`
	GroupID         string   `json:"group_id"`
	Type            string   `json:"type"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	InvolvedAgents  []string `json:"involved_agents"`
	OriginAgentID   string   `json:"origin_agent_id,omitempty"`
	SourceSceneCode string   `json:"source_scene_code,omitempty"`

	LatencyTurns int    `json:"latency_turns"`
	MaxTurns     int    `json:"max_turns"`
	CurrentTurn  int    `json:"current_turn"`
	Status       Status `json:"status"`

	EscalationLevel  int    `json:"escalation_level"`
	EscalationReason string `json:"escalation_reason,omitempty"`

	ReferenceCount   int        `json:"reference_count"`
	LastReferencedAt *time.Time `json:"last_referenced_at,omitempty"`

	Resolution     string         `json:"resolution,omitempty"`
	ResolutionKind ResolutionKind `json:"resolution_kind,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (s *Seed) Clone() *Seed {
	c := *s
	c.InvolvedAgents = slices.Clone(s.InvolvedAgents)
	if s.LastReferencedAt != nil {
		t := *s.LastReferencedAt
		c.LastReferencedAt = &t
	}
	if s.ResolvedAt != nil {
		t := *s.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// Involves reports whether agentID takes part in the thread.
func (s *Seed) Involves(agentID string) bool {
	return slices.Contains(s.InvolvedAgents, agentID)
}

// priorityRank orders non-terminal statuses for prioritization.
func (s Status) priorityRank() int {
	switch s {
	case StatusEscalating:
		return 0
	case StatusActive:
		return 1
	case StatusResolving:
		return 2
	case StatusLatent:
		return 3
	default:
		return 4
	}
}

// ByPriority orders seeds most pressing first: higher escalation, then
// livelier status, then fewer references, then older.
func ByPriority(a, b *Seed) int {
	if a.EscalationLevel != b.EscalationLevel {
		return b.EscalationLevel - a.EscalationLevel
	}
	if ra, rb := a.Status.priorityRank(), b.Status.priorityRank(); ra != rb {
		return ra - rb
	}
	if a.ReferenceCount != b.ReferenceCount {
		return a.ReferenceCount - b.ReferenceCount
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}
