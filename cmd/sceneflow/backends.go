package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/api/handlers"
	"github.com/BaSui01/sceneflow/config"
	"github.com/BaSui01/sceneflow/internal/cache"
	"github.com/BaSui01/sceneflow/internal/database"
	"github.com/BaSui01/sceneflow/internal/metrics"
	"github.com/BaSui01/sceneflow/internal/migration"
	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/narrative/relation"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/narrative/seed"
	"github.com/BaSui01/sceneflow/persistence"
	"github.com/BaSui01/sceneflow/persistence/redisstore"
	"github.com/BaSui01/sceneflow/persistence/sqlstore"
)

// =============================================================================
// 🗄️ 存储后端装配
// =============================================================================

// backends 汇总按配置选出的存储实现
type backends struct {
	scenes     scene.Store
	seeds      seed.Store
	relations  relation.Store
	executions executor.ExecutionStore
	states     director.StateStore

	pool   *database.PoolManager
	cache  *cache.Manager
	checks []handlers.HealthCheck
}

// storeConfig 把应用配置映射为 persistence 的后端选择
func storeConfig(cfg *config.Config) persistence.StoreConfig {
	sc := persistence.DefaultStoreConfig()
	if cfg.Store.Type != "" {
		sc.Type = persistence.StoreType(cfg.Store.Type)
	}
	if cfg.Store.StateType != "" {
		sc.StateType = persistence.StoreType(cfg.Store.StateType)
	}
	if cfg.Redis.KeyPrefix != "" {
		sc.KeyPrefix = cfg.Redis.KeyPrefix
	}
	if cfg.Store.StateTTL > 0 {
		sc.StateTTL = cfg.Store.StateTTL
	}
	return sc
}

// openBackends 连接配置中的数据库与 Redis，并组装各叙事存储
func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	sc := storeConfig(cfg)
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	b := &backends{}

	if sc.Type == persistence.StoreTypeSQL || sc.StateType == persistence.StoreTypeSQL {
		if cfg.Database.AutoMigrate {
			if err := autoMigrate(ctx, cfg.Database, logger); err != nil {
				return nil, err
			}
		}
		pool, err := database.Open(cfg.Database.Driver, cfg.Database.DSN(), database.PoolConfig{
			MaxOpenConns:        cfg.Database.MaxOpenConns,
			MaxIdleConns:        cfg.Database.MaxIdleConns,
			ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime:     database.DefaultPoolConfig().ConnMaxIdleTime,
			HealthCheckInterval: database.DefaultPoolConfig().HealthCheckInterval,
		}, logger)
		if err != nil {
			return nil, err
		}
		b.pool = pool
		b.checks = append(b.checks, handlers.NewPingCheck("database", pool.Ping))
	}

	if sc.StateType == persistence.StoreTypeRedis {
		cc := cache.DefaultConfig()
		cc.Addr = cfg.Redis.Addr
		cc.Password = cfg.Redis.Password
		cc.DB = cfg.Redis.DB
		cc.KeyPrefix = sc.KeyPrefix
		cc.TLSEnabled = cfg.Redis.TLSEnabled
		cc.DefaultTTL = sc.StateTTL
		if cfg.Redis.PoolSize > 0 {
			cc.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.MinIdleConns > 0 {
			cc.MinIdleConns = cfg.Redis.MinIdleConns
		}
		cm, err := cache.NewManager(cc, logger)
		if err != nil {
			return nil, errors.Join(err, b.close())
		}
		b.cache = cm
		b.checks = append(b.checks, handlers.NewPingCheck("redis", cm.Ping))
	}

	var sql *sqlstore.Stores
	if b.pool != nil {
		sql = sqlstore.New(b.pool)
	}

	if sc.Type == persistence.StoreTypeSQL {
		b.scenes = sql.Scenes
		b.seeds = sql.Seeds
		b.relations = sql.Relations
		b.executions = sql.Executions
	} else {
		b.scenes = scene.NewMemoryStore()
		b.seeds = seed.NewMemoryStore()
		b.relations = relation.NewMemoryStore()
		if b.cache != nil {
			b.executions = redisstore.NewExecutionStore(b.cache, cfg.Store.HistoryLength)
		} else {
			b.executions = executor.NewMemoryExecutionStore(cfg.Store.HistoryLength)
		}
	}

	switch sc.StateType {
	case persistence.StoreTypeSQL:
		b.states = sql.States
	case persistence.StoreTypeRedis:
		b.states = redisstore.NewStateStore(b.cache, sc.StateTTL, logger)
	default:
		b.states = director.NewMemoryStateStore()
	}

	logger.Info("storage backends ready",
		zap.String("store", string(sc.Type)),
		zap.String("state_store", string(sc.StateType)),
	)
	return b, nil
}

// autoMigrate 在启动时执行内嵌迁移
func autoMigrate(ctx context.Context, dbCfg config.DatabaseConfig, logger *zap.Logger) error {
	m, err := migration.NewMigratorFromDatabaseConfig(dbCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(ctx); err != nil {
		return err
	}
	if err := m.Verify(ctx); err != nil {
		return err
	}
	version, dirty, err := m.Version(ctx)
	if err != nil {
		return err
	}
	logger.Info("database migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// samplePoolStats 定期把连接池状态写入指标，直到 ctx 取消
func (b *backends) samplePoolStats(ctx context.Context, driver string, collector *metrics.Collector, every time.Duration) {
	if b.pool == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		st := b.pool.Stats()
		collector.RecordDBConnections(driver, st.OpenConnections, st.Idle, st.InUse)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *backends) close() error {
	var errs []error
	if b.pool != nil {
		if err := b.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if b.cache != nil {
		if err := b.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
