// Package redisstore keeps hot per-group scheduling state in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/internal/cache"
	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/persistence"
)

// CatalogChannel is the pub/sub channel for catalog invalidation.
const CatalogChannel = "catalog:invalidate"

// DefaultHistoryLength bounds the execution list kept per group.
const DefaultHistoryLength = 200

// StateStore implements director.StateStore on Redis.
type StateStore struct {
	cache  *cache.Manager
	ttl    time.Duration
	logger *zap.Logger
}

// NewStateStore creates a state store. ttl 0 uses the cache default.
func NewStateStore(c *cache.Manager, ttl time.Duration, logger *zap.Logger) *StateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStore{cache: c, ttl: ttl, logger: logger.With(zap.String("component", "redis_state_store"))}
}

func (s *StateStore) key(groupID string) string {
	return s.cache.Key("state", groupID)
}

// Get returns persistence.ErrNotFound when the group has no state.
func (s *StateStore) Get(ctx context.Context, groupID string) (*director.GroupSceneState, error) {
	var st director.GroupSceneState
	err := s.cache.GetJSON(ctx, s.key(groupID), &st)
	if cache.IsCacheMiss(err) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Save writes the state and refreshes its TTL.
func (s *StateStore) Save(ctx context.Context, st *director.GroupSceneState) error {
	if st == nil || st.GroupID == "" {
		return persistence.ErrInvalidInput
	}
	return s.cache.SetJSON(ctx, s.key(st.GroupID), st, s.ttl)
}

// Close is a no-op; the cache manager is owned by the caller.
func (s *StateStore) Close() error { return nil }

// Ping checks Redis.
func (s *StateStore) Ping(ctx context.Context) error { return s.cache.Ping(ctx) }

// ExecutionStore implements executor.ExecutionStore as a bounded Redis list
// per group, newest first.
type ExecutionStore struct {
	cache  *cache.Manager
	maxLen int64
}

// NewExecutionStore creates an execution store. maxLen <= 0 uses
// DefaultHistoryLength.
func NewExecutionStore(c *cache.Manager, maxLen int) *ExecutionStore {
	if maxLen <= 0 {
		maxLen = DefaultHistoryLength
	}
	return &ExecutionStore{cache: c, maxLen: int64(maxLen)}
}

func (s *ExecutionStore) Record(ctx context.Context, e *executor.Execution) error {
	if e == nil || e.GroupID == "" {
		return persistence.ErrInvalidInput
	}
	return s.cache.PushJSON(ctx, s.cache.Key("history", e.GroupID), e, s.maxLen)
}

func (s *ExecutionStore) List(ctx context.Context, groupID string, limit int) ([]*executor.Execution, error) {
	raw, err := s.cache.Range(ctx, s.cache.Key("history", groupID), int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]*executor.Execution, 0, len(raw))
	for _, r := range raw {
		var e executor.Execution
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("decode execution: %w", err)
		}
		out = append(out, &e)
	}
	return out, nil
}

// Invalidator broadcasts catalog invalidation to every replica.
type Invalidator struct {
	cache  *cache.Manager
	logger *zap.Logger
}

// NewInvalidator creates an invalidator.
func NewInvalidator(c *cache.Manager, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{cache: c, logger: logger.With(zap.String("component", "catalog_invalidator"))}
}

// Broadcast asks all replicas to drop their catalog cache.
func (i *Invalidator) Broadcast(ctx context.Context) error {
	return i.cache.Publish(ctx, i.cache.Key(CatalogChannel), "invalidate")
}

// Listen calls invalidate for every broadcast until ctx is cancelled.
func (i *Invalidator) Listen(ctx context.Context, invalidate func()) error {
	return i.cache.Subscribe(ctx, i.cache.Key(CatalogChannel), func(string) {
		i.logger.Info("catalog invalidation received")
		invalidate()
	})
}
