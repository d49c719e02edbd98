// =============================================================================
// 📦 SceneFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Director:  DefaultDirectorConfig(),
		Seeds:     DefaultSeedsConfig(),
		Relations: DefaultRelationsConfig(),
		Catalog:   DefaultCatalogConfig(),
		Store:     DefaultStoreConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		LLM:       DefaultLLMConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Auth:      DefaultAuthConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

// DefaultDirectorConfig 返回默认选场配置
func DefaultDirectorConfig() DirectorConfig {
	return DirectorConfig{
		DramaticCooldown:   10 * time.Minute,
		RecentExclusion:    5,
		MaxActiveSeeds:     5,
		CandidateLimit:     10,
		DecisionTimeout:    8 * time.Second,
		BandTolerance:      0.3,
		DramaticCategories: []string{"TENSION", "VULNERABILIDAD"},
	}
}

// DefaultSeedsConfig 返回默认种子配置
func DefaultSeedsConfig() SeedsConfig {
	return SeedsConfig{
		DefaultLatency:  5,
		DefaultMaxTurns: 20,
		EscalationRatio: 0.7,
		Retention:       7 * 24 * time.Hour,
	}
}

// DefaultRelationsConfig 返回默认关系配置
func DefaultRelationsConfig() RelationsConfig {
	return RelationsConfig{DecayRate: 0.05}
}

// DefaultCatalogConfig 返回默认目录配置
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		File:          "scenes.yaml",
		ImportOnStart: false,
		Watch:         false,
		WatchInterval: 2 * time.Second,
	}
}

// DefaultStoreConfig 返回默认存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:          "memory",
		StateType:     "memory",
		StateTTL:      24 * time.Hour,
		HistoryLength: 200,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "sceneflow:",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "sceneflow",
		Password:        "",
		Name:            "sceneflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     false,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:          "openai",
		APIKey:            "",
		BaseURL:           "",
		Model:             "gpt-4o-mini",
		Temperature:       0.7,
		MaxTokens:         50,
		RateLimitRPS:      5,
		RateLimitBurst:    10,
		PromptTokenBudget: 3000,
		PromptMessages:    15,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		Insecure:     true,
		ServiceName:  "sceneflow",
		SampleRate:   0.1,
	}
}

// DefaultAuthConfig 返回默认认证配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		SkipPaths: []string{"/health", "/ready", "/version", "/metrics"},
	}
}
