// Package sqlstore persists the narrative records with GORM over postgres,
// mysql or sqlite. The schema is owned by internal/migration; AutoMigrate is
// kept for tests and throwaway sqlite files.
package sqlstore

import (
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/narrative/relation"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/narrative/seed"
)

// Timestamps are written by the domain layer, so GORM's auto time tracking
// is switched off on every model.

type sceneModel struct {
	Code          string               `gorm:"primaryKey;size:100"`
	Name          string               `gorm:"size:255;not null"`
	Description   string               `gorm:"type:text;not null;default:''"`
	Category      string               `gorm:"size:32;not null;index:idx_scenes_active_category,priority:2"`
	MinAIs        int                  `gorm:"column:min_ais;not null"`
	MaxAIs        int                  `gorm:"column:max_ais;not null"`
	Roles         []scene.Role         `gorm:"serializer:json;type:text;not null"`
	Interventions []scene.Intervention `gorm:"serializer:json;type:text;not null"`
	Consequences  scene.Consequences   `gorm:"serializer:json;type:text;not null"`
	Triggers      scene.Triggers       `gorm:"serializer:json;type:text;not null"`
	UsageCount    int                  `gorm:"not null;default:0"`
	SuccessRate   float64              `gorm:"not null;default:0"`
	AvgEngagement float64              `gorm:"not null;default:0"`
	LastUsedAt    *time.Time
	Active        bool      `gorm:"not null;index:idx_scenes_active_category,priority:1"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
}

func (sceneModel) TableName() string { return "scenes" }

func sceneToModel(s *scene.Scene, now time.Time) *sceneModel {
	return &sceneModel{
		Code:          s.Code,
		Name:          s.Name,
		Description:   s.Description,
		Category:      string(s.Category),
		MinAIs:        s.MinAIs,
		MaxAIs:        s.MaxAIs,
		Roles:         s.Roles,
		Interventions: s.Interventions,
		Consequences:  s.Consequences,
		Triggers:      s.Triggers,
		UsageCount:    s.Usage.Count,
		SuccessRate:   s.Usage.SuccessRate,
		AvgEngagement: s.Usage.AvgEngagement,
		LastUsedAt:    utcPtr(s.Usage.LastUsedAt),
		Active:        s.Active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (m *sceneModel) toDomain() *scene.Scene {
	return &scene.Scene{
		Code:          m.Code,
		Name:          m.Name,
		Description:   m.Description,
		Category:      scene.Category(m.Category),
		MinAIs:        m.MinAIs,
		MaxAIs:        m.MaxAIs,
		Roles:         m.Roles,
		Interventions: m.Interventions,
		Consequences:  m.Consequences,
		Triggers:      m.Triggers,
		Usage: scene.UsageStats{
			Count:         m.UsageCount,
			SuccessRate:   m.SuccessRate,
			AvgEngagement: m.AvgEngagement,
			LastUsedAt:    m.LastUsedAt,
		},
		Active: m.Active,
	}
}

type seedModel struct {
	ID               string   `gorm:"primaryKey;size:64"`
	GroupID          string   `gorm:"size:128;not null;index:idx_tension_seeds_group_status,priority:1"`
	Type             string   `gorm:"size:64;not null"`
	Title            string   `gorm:"size:255;not null"`
	Content          string   `gorm:"type:text;not null;default:''"`
	InvolvedAgents   []string `gorm:"serializer:json;type:text;not null"`
	OriginAgentID    string   `gorm:"size:128;not null;default:''"`
	SourceSceneCode  string   `gorm:"size:100;not null;default:''"`
	LatencyTurns     int      `gorm:"not null"`
	MaxTurns         int      `gorm:"not null"`
	CurrentTurn      int      `gorm:"not null;default:0"`
	Status           string   `gorm:"size:16;not null;index:idx_tension_seeds_group_status,priority:2;index:idx_tension_seeds_status_updated,priority:1"`
	EscalationLevel  int      `gorm:"not null;default:0"`
	EscalationReason string   `gorm:"type:text;not null;default:''"`
	ReferenceCount   int      `gorm:"not null;default:0"`
	LastReferencedAt *time.Time
	Resolution       string `gorm:"type:text;not null;default:''"`
	ResolutionKind   string `gorm:"size:16;not null;default:''"`
	ResolvedAt       *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false;index:idx_tension_seeds_status_updated,priority:2"`
}

func (seedModel) TableName() string { return "tension_seeds" }

func seedToModel(s *seed.Seed) *seedModel {
	return &seedModel{
		ID:               s.ID,
		GroupID:          s.GroupID,
		Type:             s.Type,
		Title:            s.Title,
		Content:          s.Content,
		InvolvedAgents:   nonNil(s.InvolvedAgents),
		OriginAgentID:    s.OriginAgentID,
		SourceSceneCode:  s.SourceSceneCode,
		LatencyTurns:     s.LatencyTurns,
		MaxTurns:         s.MaxTurns,
		CurrentTurn:      s.CurrentTurn,
		Status:           string(s.Status),
		EscalationLevel:  s.EscalationLevel,
		EscalationReason: s.EscalationReason,
		ReferenceCount:   s.ReferenceCount,
		LastReferencedAt: utcPtr(s.LastReferencedAt),
		Resolution:       s.Resolution,
		ResolutionKind:   string(s.ResolutionKind),
		ResolvedAt:       utcPtr(s.ResolvedAt),
		CreatedAt:        s.CreatedAt.UTC(),
		UpdatedAt:        s.UpdatedAt.UTC(),
	}
}

func (m *seedModel) toDomain() *seed.Seed {
	return &seed.Seed{
		ID:               m.ID,
		GroupID:          m.GroupID,
		Type:             m.Type,
		Title:            m.Title,
		Content:          m.Content,
		InvolvedAgents:   nonNil(m.InvolvedAgents),
		OriginAgentID:    m.OriginAgentID,
		SourceSceneCode:  m.SourceSceneCode,
		LatencyTurns:     m.LatencyTurns,
		MaxTurns:         m.MaxTurns,
		CurrentTurn:      m.CurrentTurn,
		Status:           seed.Status(m.Status),
		EscalationLevel:  m.EscalationLevel,
		EscalationReason: m.EscalationReason,
		ReferenceCount:   m.ReferenceCount,
		LastReferencedAt: m.LastReferencedAt,
		Resolution:       m.Resolution,
		ResolutionKind:   seed.ResolutionKind(m.ResolutionKind),
		ResolvedAt:       m.ResolvedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

type relationModel struct {
	ID                string            `gorm:"primaryKey;size:64"`
	GroupID           string            `gorm:"size:128;not null;uniqueIndex:uq_ai_relations_pair,priority:1"`
	AgentAID          string            `gorm:"column:agent_a_id;size:128;not null;uniqueIndex:uq_ai_relations_pair,priority:2"`
	AgentBID          string            `gorm:"column:agent_b_id;size:128;not null;uniqueIndex:uq_ai_relations_pair,priority:3"`
	Affinity          float64           `gorm:"not null;default:0"`
	Tension           float64           `gorm:"not null;default:0;index:idx_ai_relations_tension"`
	RelationType      string            `gorm:"size:32;not null"`
	Dynamics          []string          `gorm:"serializer:json;type:text;not null"`
	SharedMoments     []relation.Moment `gorm:"serializer:json;type:text;not null"`
	InteractionCount  int               `gorm:"not null;default:0"`
	LastInteractionAt *time.Time
	CreatedAt         time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
}

func (relationModel) TableName() string { return "ai_relations" }

func relationToModel(r *relation.Relation) *relationModel {
	var last *time.Time
	if !r.LastInteractionAt.IsZero() {
		last = utcPtr(&r.LastInteractionAt)
	}
	moments := r.SharedMoments
	if moments == nil {
		moments = []relation.Moment{}
	}
	return &relationModel{
		ID:                r.ID,
		GroupID:           r.GroupID,
		AgentAID:          r.AgentAID,
		AgentBID:          r.AgentBID,
		Affinity:          r.Affinity,
		Tension:           r.Tension,
		RelationType:      string(r.Type),
		Dynamics:          nonNil(r.Dynamics),
		SharedMoments:     moments,
		InteractionCount:  r.InteractionCount,
		LastInteractionAt: last,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func (m *relationModel) toDomain() *relation.Relation {
	r := &relation.Relation{
		ID:               m.ID,
		GroupID:          m.GroupID,
		AgentAID:         m.AgentAID,
		AgentBID:         m.AgentBID,
		Affinity:         m.Affinity,
		Tension:          m.Tension,
		Type:             relation.Type(m.RelationType),
		Dynamics:         nonNil(m.Dynamics),
		SharedMoments:    m.SharedMoments,
		InteractionCount: m.InteractionCount,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.LastInteractionAt != nil {
		r.LastInteractionAt = *m.LastInteractionAt
	}
	return r
}

type executionModel struct {
	ID             string            `gorm:"primaryKey;size:64"`
	GroupID        string            `gorm:"size:128;not null;index:idx_scene_executions_group_finished,priority:1"`
	SceneCode      string            `gorm:"size:100;not null"`
	Participants   []string          `gorm:"serializer:json;type:text;not null"`
	Bindings       map[string]string `gorm:"serializer:json;type:text;not null"`
	Completed      bool              `gorm:"not null"`
	CompletedSteps int               `gorm:"not null"`
	TotalSteps     int               `gorm:"not null"`
	StartedAt      time.Time         `gorm:"not null"`
	FinishedAt     time.Time         `gorm:"not null;index:idx_scene_executions_group_finished,priority:2"`
}

func (executionModel) TableName() string { return "scene_executions" }

func executionToModel(e *executor.Execution) *executionModel {
	bindings := e.Bindings
	if bindings == nil {
		bindings = map[string]string{}
	}
	return &executionModel{
		ID:             e.ID,
		GroupID:        e.GroupID,
		SceneCode:      e.SceneCode,
		Participants:   nonNil(e.Participants),
		Bindings:       bindings,
		Completed:      e.Completed,
		CompletedSteps: e.CompletedSteps,
		TotalSteps:     e.TotalSteps,
		StartedAt:      e.StartedAt.UTC(),
		FinishedAt:     e.FinishedAt.UTC(),
	}
}

func (m *executionModel) toDomain() *executor.Execution {
	return &executor.Execution{
		ID:             m.ID,
		GroupID:        m.GroupID,
		SceneCode:      m.SceneCode,
		Participants:   m.Participants,
		Bindings:       m.Bindings,
		Completed:      m.Completed,
		CompletedSteps: m.CompletedSteps,
		TotalSteps:     m.TotalSteps,
		StartedAt:      m.StartedAt,
		FinishedAt:     m.FinishedAt,
	}
}

// stateModel stores the whole group state as one JSON document; it is only
// ever read and written by group id.
type stateModel struct {
	GroupID   string                    `gorm:"primaryKey;size:128"`
	State     *director.GroupSceneState `gorm:"serializer:json;type:text;not null"`
	UpdatedAt time.Time                 `gorm:"autoUpdateTime:false"`
}

func (stateModel) TableName() string { return "group_scene_states" }

// AutoMigrate creates the tables from the models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&sceneModel{},
		&seedModel{},
		&relationModel{},
		&executionModel{},
		&stateModel{},
	)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
