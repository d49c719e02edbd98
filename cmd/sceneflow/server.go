package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/api/handlers"
	"github.com/BaSui01/sceneflow/config"
	"github.com/BaSui01/sceneflow/internal/metrics"
	"github.com/BaSui01/sceneflow/internal/server"
	"github.com/BaSui01/sceneflow/internal/telemetry"
	"github.com/BaSui01/sceneflow/internal/tlsutil"
	"github.com/BaSui01/sceneflow/llm"
	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/engine"
	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/narrative/loop"
	"github.com/BaSui01/sceneflow/narrative/relation"
	"github.com/BaSui01/sceneflow/narrative/roles"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/narrative/seed"
	"github.com/BaSui01/sceneflow/persistence/redisstore"
)

// poolSampleInterval 连接池指标的采样周期
const poolSampleInterval = 15 * time.Second

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 持有服务进程的全部组件
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	telemetry *telemetry.Providers

	backends    *backends
	catalog     *scene.Catalog
	seeds       *seed.Manager
	relations   *relation.Tracker
	engine      *engine.Engine
	health      *handlers.HealthHandler
	invalidator *redisstore.Invalidator
	watcher     *config.FileWatcher
}

// NewServer 按配置装配存储、叙事组件与 HTTP 处理器
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		collector: metrics.NewCollector("sceneflow", logger),
		health:    handlers.NewHealthHandler(logger),
	}

	tp, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry, continuing without export", zap.Error(err))
		tp = &telemetry.Providers{}
	}
	s.telemetry = tp

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx))
	}
	s.backends = b
	for _, c := range b.checks {
		s.health.RegisterCheck(c)
	}
	if b.cache != nil {
		s.invalidator = redisstore.NewInvalidator(b.cache, logger)
	}

	if err := s.initNarrative(ctx); err != nil {
		return nil, errors.Join(err, s.Close(ctx))
	}
	return s, nil
}

// initNarrative 创建场景目录、种子、关系、导演与执行器，并组装引擎
func (s *Server) initNarrative(ctx context.Context) error {
	cfg := s.cfg

	s.catalog = scene.NewCatalog(s.backends.scenes, s.logger)
	if cfg.Catalog.File != "" && (cfg.Catalog.ImportOnStart || cfg.Store.Type != "sql") {
		n, err := importScenes(ctx, cfg.Catalog.File, s.backends.scenes)
		switch {
		case err == nil:
			s.logger.Info("scene file imported", zap.String("file", cfg.Catalog.File), zap.Int("scenes", n))
		case errors.Is(err, os.ErrNotExist) && !cfg.Catalog.ImportOnStart:
			s.logger.Warn("scene file not found, catalog starts empty", zap.String("file", cfg.Catalog.File))
		default:
			return err
		}
	}
	if err := s.catalog.Load(ctx); err != nil {
		return fmt.Errorf("failed to load scene catalog: %w", err)
	}
	s.health.RegisterCheck(handlers.NewPingCheck("catalog", func(ctx context.Context) error {
		_, err := s.catalog.All(ctx)
		return err
	}))

	s.seeds = seed.NewManager(s.backends.seeds, seed.Config{
		MaxActive:           cfg.Director.MaxActiveSeeds,
		DefaultLatencyTurns: cfg.Seeds.DefaultLatency,
		DefaultMaxTurns:     cfg.Seeds.DefaultMaxTurns,
		EscalationRatio:     cfg.Seeds.EscalationRatio,
		Retention:           cfg.Seeds.Retention,
	}, s.logger)
	s.relations = relation.NewTracker(s.backends.relations, s.logger)

	chooser, err := buildChooser(cfg.LLM, s.collector, s.logger)
	if err != nil {
		return err
	}

	dir := director.New(
		s.catalog,
		loop.NewDetector(loop.DefaultConfig(), s.logger),
		s.seeds,
		s.relations,
		roles.NewAssigner(s.relations, roles.DefaultWeights(), s.logger),
		chooser,
		director.Config{
			DramaticCooldown: cfg.Director.DramaticCooldown,
			RecentExclusion:  cfg.Director.RecentExclusion,
			MaxActiveSeeds:   cfg.Director.MaxActiveSeeds,
			CandidateLimit:   cfg.Director.CandidateLimit,
			ChooserTimeout:   cfg.Director.DecisionTimeout,
			BandTolerance:    cfg.Director.BandTolerance,

			DramaticCategories: scene.ParseCategories(cfg.Director.DramaticCategories),
		},
		s.logger,
	)

	e, err := engine.New(engine.Components{
		Catalog:   s.catalog,
		Seeds:     s.seeds,
		Relations: s.relations,
		Director:  dir,
		Executor:  executor.NewExecutor(s.seeds, s.relations, s.backends.executions, s.logger),
		States:    s.backends.states,
		Observer:  s.collector,
	}, engine.Config{TensionDecay: cfg.Relations.DecayRate}, s.logger)
	if err != nil {
		return err
	}
	s.engine = e
	return nil
}

// buildChooser 根据 llm.provider 选择选场器
func buildChooser(cfg config.LLMConfig, collector *metrics.Collector, logger *zap.Logger) (director.Chooser, error) {
	switch strings.ToLower(cfg.Provider) {
	case "first":
		logger.Info("using offline first-candidate chooser")
		return llm.FirstCandidate{}, nil
	case "openai", "":
		return llm.NewChooser(llm.Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Temperature:       cfg.Temperature,
			MaxTokens:         cfg.MaxTokens,
			RateLimit:         cfg.RateLimitRPS,
			RateBurst:         cfg.RateLimitBurst,
			PromptTokenBudget: cfg.PromptTokenBudget,
			PromptMessages:    cfg.PromptMessages,
		}, logger, llm.WithMetrics(collector))
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// =============================================================================
// 🌐 路由
// =============================================================================

// routes 注册全部 HTTP 路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health.HandleHealth)
	mux.HandleFunc("GET /ready", s.health.HandleReady)
	mux.HandleFunc("GET /version", s.health.HandleVersion(handlers.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}))
	if s.cfg.Server.MetricsPort == 0 {
		mux.Handle("GET /metrics", s.collector.Handler())
	}

	dir := handlers.NewDirectorHandler(s.engine, s.logger)
	mux.HandleFunc("POST /api/v1/groups/{group}/turns", dir.HandleTurn)
	mux.HandleFunc("POST /api/v1/groups/{group}/steps/complete", dir.HandleCompleteStep)
	mux.HandleFunc("POST /api/v1/groups/{group}/scene/cancel", dir.HandleCancelScene)
	mux.HandleFunc("GET /api/v1/groups/{group}/director", dir.HandleStatus)
	mux.HandleFunc("GET /api/v1/groups/{group}/history", dir.HandleHistory)

	seeds := handlers.NewSeedHandler(s.seeds, s.logger)
	mux.HandleFunc("GET /api/v1/groups/{group}/seeds", seeds.HandleList)
	mux.HandleFunc("POST /api/v1/groups/{group}/seeds", seeds.HandleCreate)
	mux.HandleFunc("POST /api/v1/groups/{group}/seeds/{id}/escalate", seeds.HandleEscalate)
	mux.HandleFunc("POST /api/v1/groups/{group}/seeds/{id}/resolve", seeds.HandleResolve)
	mux.HandleFunc("POST /api/v1/groups/{group}/seeds/{id}/resolving", seeds.HandleStartResolving)
	mux.HandleFunc("POST /api/v1/groups/{group}/seeds/{id}/reference", seeds.HandleRecordReference)

	rels := handlers.NewRelationHandler(s.relations, s.logger)
	mux.HandleFunc("GET /api/v1/groups/{group}/relations", rels.HandleList)

	scenes := handlers.NewSceneHandler(s.catalog, s.onCatalogReload, s.logger)
	mux.HandleFunc("GET /api/v1/scenes", scenes.HandleList)
	mux.HandleFunc("POST /api/v1/scenes/invalidate", scenes.HandleInvalidate)

	maint := handlers.NewMaintenanceHandler(s.engine, s.logger)
	mux.HandleFunc("POST /api/v1/maintenance/decay", maint.HandleDecay)
	mux.HandleFunc("POST /api/v1/maintenance/cleanup", maint.HandleCleanup)

	return mux
}

// Handler 返回带完整中间件链的 API 处理器。ctx 约束限流器的后台清理。
func (s *Server) Handler(ctx context.Context) http.Handler {
	cfg := s.cfg
	skip := append([]string{"/health", "/ready", "/version", "/metrics"}, cfg.Auth.SkipPaths...)
	return Chain(s.routes(),
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		RequestLogger(s.logger),
		CORS(cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(cfg.Auth.APIKeys, skip, s.logger),
		MetricsMiddleware(s.collector),
	)
}

// onCatalogReload 记录目录重载，并通知其他副本丢弃缓存
func (s *Server) onCatalogReload(trigger string, err error) {
	s.collector.RecordCatalogReload(trigger, err)
	if err != nil {
		s.logger.Warn("scene catalog reload failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	if s.invalidator != nil && trigger != "broadcast" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.invalidator.Broadcast(ctx); err != nil {
			s.logger.Warn("catalog invalidation broadcast failed", zap.Error(err))
		}
	}
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 启动 HTTP 服务与后台任务，阻塞直到 ctx 取消
func (s *Server) Run(ctx context.Context) error {
	cfg := s.cfg

	sc := server.DefaultConfig()
	if cfg.Server.ReadTimeout > 0 {
		sc.ReadTimeout = cfg.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout > 0 {
		sc.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.ShutdownTimeout > 0 {
		sc.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	tlsCfg, err := tlsutil.ServerTLSConfig(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
	if err != nil {
		return err
	}
	mgr := server.NewManager(sc, s.logger)
	mgr.HandleTLS("api", fmt.Sprintf(":%d", cfg.Server.HTTPPort), s.Handler(ctx), tlsCfg)
	if cfg.Server.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", s.collector.Handler())
		mgr.Handle("metrics", fmt.Sprintf(":%d", cfg.Server.MetricsPort), metricsMux)
	}

	if err := s.startCatalogWatcher(ctx); err != nil {
		return err
	}
	if s.invalidator != nil {
		go func() {
			err := s.invalidator.Listen(ctx, func() {
				s.catalog.Invalidate()
				s.collector.RecordCatalogReload("broadcast", nil)
			})
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("catalog invalidation listener stopped", zap.Error(err))
			}
		}()
	}
	go s.backends.samplePoolStats(ctx, cfg.Database.Driver, s.collector, poolSampleInterval)

	return mgr.Run(ctx)
}

// startCatalogWatcher 在场景文件变化时重新导入并刷新目录
func (s *Server) startCatalogWatcher(ctx context.Context) error {
	cfg := s.cfg.Catalog
	if !cfg.Watch || cfg.File == "" {
		return nil
	}
	w, err := config.NewFileWatcher([]string{cfg.File},
		config.WithPollInterval(cfg.WatchInterval),
		config.WithWatcherLogger(s.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to watch scene file: %w", err)
	}
	w.OnChange(func(evt config.FileEvent) {
		if evt.Op == config.FileOpRemove {
			s.logger.Warn("scene file removed, keeping current catalog", zap.String("file", evt.Path))
			return
		}
		n, err := importScenes(ctx, evt.Path, s.backends.scenes)
		if err == nil {
			err = s.catalog.Reload(ctx)
		}
		if err == nil {
			s.logger.Info("scene file reimported", zap.String("file", evt.Path), zap.Int("scenes", n))
		}
		s.onCatalogReload("watch", err)
	})
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scene file watcher: %w", err)
	}
	s.watcher = w
	return nil
}

// Close 释放全部资源
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.backends != nil {
		if err := s.backends.close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
