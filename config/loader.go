// =============================================================================
// 📦 SceneFlow 配置加载器
// =============================================================================
// 统一的配置加载，支持 YAML 文件与环境变量
// 优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config SceneFlow 完整配置
type Config struct {
	// 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// 导演（选场）配置
	Director DirectorConfig `yaml:"director" env:"DIRECTOR"`

	// 张力种子配置
	Seeds SeedsConfig `yaml:"seeds" env:"SEEDS"`

	// 关系配置
	Relations RelationsConfig `yaml:"relations" env:"RELATIONS"`

	// 场景目录配置
	Catalog CatalogConfig `yaml:"catalog" env:"CATALOG"`

	// 存储后端选择
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Redis 配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// LLM 选场器配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// 认证配置
	Auth AuthConfig `yaml:"auth" env:"AUTH"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口，0 表示在 HTTP 端口上暴露 /metrics
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每客户端限流（请求/秒）
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// TLS 证书文件，与 TLSKeyFile 同时设置时 API 端口使用 HTTPS
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	// TLS 私钥文件
	TLSKeyFile string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// DirectorConfig 选场配置
type DirectorConfig struct {
	// 戏剧类场景冷却时间
	DramaticCooldown time.Duration `yaml:"dramatic_cooldown" env:"DRAMATIC_COOLDOWN"`
	// 排除最近使用的场景数量
	RecentExclusion int `yaml:"recent_exclusion" env:"RECENT_EXCLUSION"`
	// 活跃种子上限（达到后排除会生成种子的场景）
	MaxActiveSeeds int `yaml:"max_active_seeds" env:"MAX_ACTIVE_SEEDS"`
	// 候选场景数量上限
	CandidateLimit int `yaml:"candidate_limit" env:"CANDIDATE_LIMIT"`
	// 选场决策超时
	DecisionTimeout time.Duration `yaml:"decision_timeout" env:"DECISION_TIMEOUT"`
	// 能量/张力区间半径
	BandTolerance float64 `yaml:"band_tolerance" env:"BAND_TOLERANCE"`
	// 受冷却约束的分类
	DramaticCategories []string `yaml:"dramatic_categories" env:"DRAMATIC_CATEGORIES"`
}

// SeedsConfig 张力种子配置
type SeedsConfig struct {
	// 默认潜伏回合数
	DefaultLatency int `yaml:"default_latency" env:"DEFAULT_LATENCY"`
	// 默认最大存活回合数
	DefaultMaxTurns int `yaml:"default_max_turns" env:"DEFAULT_MAX_TURNS"`
	// 升级阈值（占最大回合数的比例）
	EscalationRatio float64 `yaml:"escalation_ratio" env:"ESCALATION_RATIO"`
	// 过期种子保留时长
	Retention time.Duration `yaml:"retention" env:"RETENTION"`
}

// RelationsConfig 关系配置
type RelationsConfig struct {
	// 每次衰减降低的张力
	DecayRate float64 `yaml:"decay_rate" env:"DECAY_RATE"`
}

// CatalogConfig 场景目录配置
type CatalogConfig struct {
	// 场景编写文件（YAML）
	File string `yaml:"file" env:"FILE"`
	// 启动时导入场景文件
	ImportOnStart bool `yaml:"import_on_start" env:"IMPORT_ON_START"`
	// 监听场景文件变更并重新导入
	Watch bool `yaml:"watch" env:"WATCH"`
	// 轮询间隔
	WatchInterval time.Duration `yaml:"watch_interval" env:"WATCH_INTERVAL"`
}

// StoreConfig 存储后端选择
type StoreConfig struct {
	// 场景、种子、关系与执行历史的后端: memory, sql
	Type string `yaml:"type" env:"TYPE"`
	// 群组场景状态的后端: memory, redis, sql
	StateType string `yaml:"state_type" env:"STATE_TYPE"`
	// Redis 状态过期时间
	StateTTL time.Duration `yaml:"state_ttl" env:"STATE_TTL"`
	// 每个群组保留的执行历史条数（memory 与 redis）
	HistoryLength int `yaml:"history_length" env:"HISTORY_LENGTH"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 启用 TLS
	TLSEnabled bool `yaml:"tls_enabled" env:"TLS_ENABLED"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 启动时执行内嵌迁移
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// LLMConfig LLM 选场器配置
type LLMConfig struct {
	// 选场器: openai（任意 OpenAI 兼容端点）, first（离线，取第一个候选）
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型
	Model string `yaml:"model" env:"MODEL"`
	// 温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大输出 token
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 每秒请求数上限
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 提示词 token 预算
	PromptTokenBudget int `yaml:"prompt_token_budget" env:"PROMPT_TOKEN_BUDGET"`
	// 提示词中保留的最近消息条数
	PromptMessages int `yaml:"prompt_messages" env:"PROMPT_MESSAGES"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 是否使用明文连接
	Insecure bool `yaml:"insecure" env:"INSECURE"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// AuthConfig API Key 认证配置
type AuthConfig struct {
	// 允许的 API Key，为空时关闭认证
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// 免认证路径前缀
	SkipPaths []string `yaml:"skip_paths" env:"SKIP_PATHS"`
}

// Enabled 是否启用认证
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SCENEFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置，文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段，键名为 PREFIX_SECTION_FIELD
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).WithValidator((*Config).Validate).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置，一次返回全部问题
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		add("server.http_port %d out of range", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		add("server.metrics_port %d out of range", c.Server.MetricsPort)
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		add("server.tls_cert_file and server.tls_key_file must be set together")
	}

	d := c.Director
	if d.DramaticCooldown < 0 {
		add("director.dramatic_cooldown must not be negative")
	}
	if d.RecentExclusion < 0 {
		add("director.recent_exclusion must not be negative")
	}
	if d.MaxActiveSeeds <= 0 {
		add("director.max_active_seeds must be positive")
	}
	if d.CandidateLimit <= 0 {
		add("director.candidate_limit must be positive")
	}
	if d.DecisionTimeout <= 0 {
		add("director.decision_timeout must be positive")
	}
	if d.BandTolerance < 0 || d.BandTolerance > 1 {
		add("director.band_tolerance must be between 0 and 1")
	}

	if c.Seeds.DefaultLatency < 0 {
		add("seeds.default_latency must not be negative")
	}
	if c.Seeds.DefaultMaxTurns <= c.Seeds.DefaultLatency {
		add("seeds.default_max_turns must exceed seeds.default_latency")
	}
	if c.Seeds.EscalationRatio <= 0 || c.Seeds.EscalationRatio > 1 {
		add("seeds.escalation_ratio must be in (0, 1]")
	}
	if c.Relations.DecayRate < 0 || c.Relations.DecayRate > 1 {
		add("relations.decay_rate must be between 0 and 1")
	}

	if c.Catalog.ImportOnStart && c.Catalog.File == "" {
		add("catalog.file is required when catalog.import_on_start is set")
	}

	switch c.Store.Type {
	case "memory", "sql":
	default:
		add("store.type %q must be memory or sql", c.Store.Type)
	}
	switch c.Store.StateType {
	case "memory", "redis", "sql":
	default:
		add("store.state_type %q must be memory, redis or sql", c.Store.StateType)
	}
	if c.Store.Type == "sql" || c.Store.StateType == "sql" {
		switch c.Database.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			add("database.driver %q must be postgres, mysql or sqlite", c.Database.Driver)
		}
		if c.Database.Name == "" {
			add("database.name is required")
		}
	}
	if c.Store.StateType == "redis" && c.Redis.Addr == "" {
		add("redis.addr is required for the redis state store")
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.Model == "" {
			add("llm.model is required")
		}
	case "first":
	default:
		add("llm.provider %q must be openai or first", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature must be between 0 and 2")
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		add("log.format %q must be json or console", c.Log.Format)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		add("telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %w", errors.Join(errs...))
	}
	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	default:
		return ""
	}
}
