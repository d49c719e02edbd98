// Package persistence defines the storage contracts shared by the narrative
// packages and the backends that implement them.
//
// The narrative packages own their models and declare narrow store interfaces
// (scene.Store, seed.Store, relation.Store, director.StateStore,
// executor.ExecutionStore). Each ships an in-memory implementation for
// development and testing; durable backends live in subpackages:
// - sqlstore: GORM over postgres, mysql or sqlite
// - redisstore: Redis for hot per-group scene state
package persistence

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrStoreClosed   = errors.New("store is closed")
	ErrInvalidInput  = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQL    StoreType = "sql"
	StoreTypeRedis  StoreType = "redis"
)

// IsValid reports whether t names a known backend.
func (t StoreType) IsValid() bool {
	switch t {
	case StoreTypeMemory, StoreTypeSQL, StoreTypeRedis:
		return true
	}
	return false
}

// Store is the base interface for all backends
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// StoreConfig selects backends for durable records and hot group state.
type StoreConfig struct {
	// Type is the backend for scenes, seeds, relations and executions (memory or sql)
	Type StoreType `json:"type" yaml:"type"`

	// StateType is the backend for per-group scene state (memory, redis or sql)
	StateType StoreType `json:"state_type" yaml:"state_type"`

	// KeyPrefix namespaces redis keys (default: "sceneflow:")
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`

	// StateTTL bounds how long idle group state is kept in redis (default: 24h)
	StateTTL time.Duration `json:"state_ttl" yaml:"state_ttl"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:      StoreTypeMemory,
		StateType: StoreTypeMemory,
		KeyPrefix: "sceneflow:",
		StateTTL:  24 * time.Hour,
	}
}

// Validate checks the backend combination.
func (c StoreConfig) Validate() error {
	if c.Type != StoreTypeMemory && c.Type != StoreTypeSQL {
		return errors.New("store type must be memory or sql")
	}
	if !c.StateType.IsValid() {
		return errors.New("state store type must be memory, redis or sql")
	}
	return nil
}
