package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/sceneflow/internal/database"
	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/narrative/relation"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/narrative/seed"
	"github.com/BaSui01/sceneflow/persistence"
)

// Stores bundles the SQL implementations of every narrative store.
type Stores struct {
	Scenes     *SceneStore
	Seeds      *SeedStore
	Relations  *RelationStore
	Executions *ExecutionStore
	States     *StateStore

	pool *database.PoolManager
}

// New wires all stores on one connection pool.
func New(pool *database.PoolManager) *Stores {
	return &Stores{
		Scenes:     &SceneStore{pool: pool, now: time.Now},
		Seeds:      &SeedStore{pool: pool},
		Relations:  &RelationStore{pool: pool},
		Executions: &ExecutionStore{pool: pool},
		States:     &StateStore{pool: pool},
		pool:       pool,
	}
}

// Ping checks the database.
func (s *Stores) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close closes the pool.
func (s *Stores) Close() error { return s.pool.Close() }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return persistence.ErrNotFound
	}
	return err
}

// forUpdate adds a row lock where the dialect has one; sqlite serializes
// writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == database.DriverSQLite {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// =============================================================================
// Scenes
// =============================================================================

// SceneStore implements scene.Store.
type SceneStore struct {
	pool *database.PoolManager
	now  func() time.Time
}

func (s *SceneStore) ListActive(ctx context.Context) ([]*scene.Scene, error) {
	var rows []sceneModel
	if err := s.pool.DB().WithContext(ctx).Where("active = ?", true).Order("code").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	out := make([]*scene.Scene, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

func (s *SceneStore) GetByCode(ctx context.Context, code string) (*scene.Scene, error) {
	var row sceneModel
	if err := s.pool.DB().WithContext(ctx).Where("code = ?", code).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toDomain(), nil
}

// IncrementUsage reads and rewrites the usage columns in one transaction.
func (s *SceneStore) IncrementUsage(ctx context.Context, code string, update scene.UsageUpdate) (scene.UsageStats, error) {
	var stats scene.UsageStats
	err := s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var row sceneModel
		if err := forUpdate(tx).Where("code = ?", code).First(&row).Error; err != nil {
			return notFound(err)
		}
		stats = row.toDomain().Usage.Apply(update)
		return tx.Model(&sceneModel{}).Where("code = ?", code).Updates(map[string]any{
			"usage_count":    stats.Count,
			"success_rate":   stats.SuccessRate,
			"avg_engagement": stats.AvgEngagement,
			"last_used_at":   utcPtr(stats.LastUsedAt),
			"updated_at":     s.now().UTC(),
		}).Error
	})
	if err != nil {
		return scene.UsageStats{}, err
	}
	return stats, nil
}

// Save upserts by code. The creation time of an existing row is kept.
func (s *SceneStore) Save(ctx context.Context, sc *scene.Scene) error {
	if sc == nil || sc.Code == "" {
		return persistence.ErrInvalidInput
	}
	row := sceneToModel(sc, s.now().UTC())
	return s.pool.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "category", "min_ais", "max_ais", "roles",
			"interventions", "consequences", "triggers", "usage_count",
			"success_rate", "avg_engagement", "last_used_at", "active", "updated_at",
		}),
	}).Create(row).Error
}

// =============================================================================
// Seeds
// =============================================================================

// SeedStore implements seed.Store.
type SeedStore struct {
	pool *database.PoolManager
}

// Create inserts a seed, failing with persistence.ErrAlreadyExists on a
// duplicate id.
func (s *SeedStore) Create(ctx context.Context, sd *seed.Seed) error {
	if sd == nil || sd.ID == "" {
		return persistence.ErrInvalidInput
	}
	return s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&seedModel{}).Where("id = ?", sd.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return persistence.ErrAlreadyExists
		}
		return tx.Create(seedToModel(sd)).Error
	})
}

// Save overwrites every column but the creation time.
func (s *SeedStore) Save(ctx context.Context, sd *seed.Seed) error {
	if sd == nil || sd.ID == "" {
		return persistence.ErrInvalidInput
	}
	return s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&seedModel{}).Where("id = ?", sd.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return persistence.ErrNotFound
		}
		return tx.Model(&seedModel{}).Where("id = ?", sd.ID).
			Select("*").Omit("id", "created_at").
			Updates(seedToModel(sd)).Error
	})
}

func (s *SeedStore) Get(ctx context.Context, id string) (*seed.Seed, error) {
	var row seedModel
	if err := s.pool.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toDomain(), nil
}

func (s *SeedStore) List(ctx context.Context, filter seed.Filter) ([]*seed.Seed, error) {
	q := s.pool.DB().WithContext(ctx).Model(&seedModel{})
	if filter.GroupID != "" {
		q = q.Where("group_id = ?", filter.GroupID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}

	var rows []seedModel
	if err := q.Order("created_at").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list seeds: %w", err)
	}
	out := make([]*seed.Seed, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

func (s *SeedStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	res := s.pool.DB().WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(seed.StatusExpired), before.UTC()).
		Delete(&seedModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// =============================================================================
// Relations
// =============================================================================

// RelationStore implements relation.Store.
type RelationStore struct {
	pool *database.PoolManager
}

func (s *RelationStore) Get(ctx context.Context, groupID, agentA, agentB string) (*relation.Relation, error) {
	a, b := relation.CanonicalPair(agentA, agentB)
	var row relationModel
	err := s.pool.DB().WithContext(ctx).
		Where("group_id = ? AND agent_a_id = ? AND agent_b_id = ?", groupID, a, b).
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.toDomain(), nil
}

// Save upserts on the canonical pair.
func (s *RelationStore) Save(ctx context.Context, r *relation.Relation) error {
	if r == nil || r.GroupID == "" || r.AgentAID == "" || r.AgentBID == "" {
		return persistence.ErrInvalidInput
	}
	return s.pool.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "group_id"}, {Name: "agent_a_id"}, {Name: "agent_b_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"affinity", "tension", "relation_type", "dynamics", "shared_moments",
			"interaction_count", "last_interaction_at", "updated_at",
		}),
	}).Create(relationToModel(r)).Error
}

func (s *RelationStore) List(ctx context.Context, filter relation.Filter) ([]*relation.Relation, error) {
	q := s.pool.DB().WithContext(ctx).Model(&relationModel{})
	if filter.GroupID != "" {
		q = q.Where("group_id = ?", filter.GroupID)
	}
	if filter.AgentID != "" {
		q = q.Where("agent_a_id = ? OR agent_b_id = ?", filter.AgentID, filter.AgentID)
	}
	if filter.PositiveTension {
		q = q.Where("tension > ?", 0)
	}

	var rows []relationModel
	if err := q.Order("group_id").Order("agent_a_id").Order("agent_b_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	out := make([]*relation.Relation, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// =============================================================================
// Executions
// =============================================================================

// ExecutionStore implements executor.ExecutionStore.
type ExecutionStore struct {
	pool *database.PoolManager
}

func (s *ExecutionStore) Record(ctx context.Context, e *executor.Execution) error {
	if e == nil || e.ID == "" || e.GroupID == "" {
		return persistence.ErrInvalidInput
	}
	return s.pool.DB().WithContext(ctx).Create(executionToModel(e)).Error
}

func (s *ExecutionStore) List(ctx context.Context, groupID string, limit int) ([]*executor.Execution, error) {
	q := s.pool.DB().WithContext(ctx).Where("group_id = ?", groupID).
		Order("finished_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []executionModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	out := make([]*executor.Execution, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// =============================================================================
// Group state
// =============================================================================

// StateStore implements director.StateStore.
type StateStore struct {
	pool *database.PoolManager
}

func (s *StateStore) Get(ctx context.Context, groupID string) (*director.GroupSceneState, error) {
	var row stateModel
	if err := s.pool.DB().WithContext(ctx).Where("group_id = ?", groupID).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	if row.State == nil {
		return nil, persistence.ErrNotFound
	}
	return row.State, nil
}

func (s *StateStore) Save(ctx context.Context, st *director.GroupSceneState) error {
	if st == nil || st.GroupID == "" {
		return persistence.ErrInvalidInput
	}
	return s.pool.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(&stateModel{GroupID: st.GroupID, State: st, UpdatedAt: st.UpdatedAt.UTC()}).Error
}
