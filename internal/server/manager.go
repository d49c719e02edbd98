package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🌐 HTTP 服务器管理器
// =============================================================================

// ErrAlreadyStarted 重复运行
var ErrAlreadyStarted = errors.New("server: already started")

// Manager 管理一组 HTTP 服务器（API 与 metrics），统一启动与优雅关闭
type Manager struct {
	config  Config
	logger  *zap.Logger
	servers []*namedServer

	mu      sync.Mutex
	started bool
	ready   chan struct{}
	addrs   map[string]string
}

type namedServer struct {
	name   string
	addr   string
	server *http.Server
}

// Config 服务器配置
type Config struct {
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// 读取请求头超时
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout"`

	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// 空闲超时
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// 最大请求头大小
	MaxHeaderBytes int `yaml:"max_header_bytes" json:"max_header_bytes"`

	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig 返回默认服务器配置
func DefaultConfig() Config {
	return Config{
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
		ShutdownTimeout:   30 * time.Second,
	}
}

// NewManager 创建服务器管理器
func NewManager(config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config: config,
		logger: logger.With(zap.String("component", "http_server")),
		ready:  make(chan struct{}),
		addrs:  make(map[string]string),
	}
}

// Handle 注册一个待启动的明文服务器。必须在 Run 之前调用。
func (m *Manager) Handle(name, addr string, handler http.Handler) {
	m.HandleTLS(name, addr, handler, nil)
}

// HandleTLS 注册一个服务器；tlsConfig 非 nil 时以 HTTPS 服务（需包含证书）
func (m *Manager) HandleTLS(name, addr string, handler http.Handler, tlsConfig *tls.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.servers = append(m.servers, &namedServer{
		name: name,
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       m.config.ReadTimeout,
			ReadHeaderTimeout: m.config.ReadHeaderTimeout,
			WriteTimeout:      m.config.WriteTimeout,
			IdleTimeout:       m.config.IdleTimeout,
			MaxHeaderBytes:    m.config.MaxHeaderBytes,
			TLSConfig:         tlsConfig,
			ErrorLog:          zap.NewStdLog(m.logger.With(zap.String("server", name))),
		},
	})
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Run 绑定全部监听地址并阻塞服务，直到 ctx 取消或任一服务器失败。
// ctx 取消时在 ShutdownTimeout 内优雅关闭所有服务器并返回 nil。
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	servers := append([]*namedServer(nil), m.servers...)

	listeners := make([]net.Listener, 0, len(servers))
	for _, s := range servers {
		ln, err := net.Listen("tcp", s.addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			m.mu.Unlock()
			return fmt.Errorf("failed to listen on %s for %s: %w", s.addr, s.name, err)
		}
		listeners = append(listeners, ln)
		m.addrs[s.name] = ln.Addr().String()
		m.logger.Info("starting HTTP server",
			zap.String("server", s.name),
			zap.String("addr", ln.Addr().String()),
			zap.Bool("tls", s.server.TLSConfig != nil))
	}
	close(m.ready)
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range servers {
		ln := listeners[i]
		g.Go(func() error {
			var err error
			if s.server.TLSConfig != nil {
				err = s.server.ServeTLS(ln, "", "")
			} else {
				err = s.server.Serve(ln)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.logger.Error("HTTP server failed", zap.String("server", s.name), zap.Error(err))
				return fmt.Errorf("%s server: %w", s.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return m.shutdown(servers)
	})

	return g.Wait()
}

func (m *Manager) shutdown(servers []*namedServer) error {
	m.logger.Info("shutting down HTTP servers")

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, s := range servers {
		if err := s.server.Shutdown(ctx); err != nil {
			m.logger.Error("HTTP server shutdown failed", zap.String("server", s.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown %s: %w", s.name, err))
		}
	}

	m.logger.Info("HTTP servers stopped")
	return errors.Join(errs...)
}

// =============================================================================
// 🔧 辅助方法
// =============================================================================

// Ready 在所有监听地址绑定后关闭
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Addr 返回指定服务器的实际监听地址，未启动时返回空串
func (m *Manager) Addr(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addrs[name]
}
