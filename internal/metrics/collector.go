// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。每个 Collector 持有独立的 Registry。
type Collector struct {
	registry *prometheus.Registry

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 选场指标
	decisionsTotal      *prometheus.CounterVec
	decisionDuration    *prometheus.HistogramVec
	loopsDetected       *prometheus.CounterVec
	seedTransitions     *prometheus.CounterVec
	scenesFinished      *prometheus.CounterVec
	consequenceFailures prometheus.Counter
	catalogReloads      *prometheus.CounterVec

	// 选场器（LLM）指标
	chooserRequestsTotal   *prometheus.CounterVec
	chooserRequestDuration *prometheus.HistogramVec
	chooserTokensUsed      *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbConnectionsUsed *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，并注册 Go 运行时与进程指标
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 选场指标
	c.decisionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "director_decisions_total",
			Help:      "Scene selection decisions by reason",
		},
		[]string{"reason"},
	)

	c.decisionDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "director_decision_duration_seconds",
			Help:      "Scene selection duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"reason"},
	)

	c.loopsDetected = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loops_detected_total",
			Help:      "Conversation loop patterns detected by kind",
		},
		[]string{"kind"},
	)

	c.seedTransitions = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seed_transitions_total",
			Help:      "Tension seed status transitions",
		},
		[]string{"from", "to"},
	)

	c.scenesFinished = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenes_finished_total",
			Help:      "Scenes that ended, by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	c.consequenceFailures = f.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consequence_failures_total",
			Help:      "Scene consequences that failed to apply",
		},
	)

	c.catalogReloads = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Scene catalog reloads by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	// 选场器指标
	c.chooserRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chooser_requests_total",
			Help:      "Total number of scene chooser requests",
		},
		[]string{"model", "status"},
	)

	c.chooserRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chooser_request_duration_seconds",
			Help:      "Scene chooser request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"model"},
	)

	c.chooserTokensUsed = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chooser_tokens_used_total",
			Help:      "Tokens used by the scene chooser",
		},
		[]string{"model", "type"}, // type: prompt, completion
	)

	// 数据库指标
	c.dbConnectionsOpen = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsUsed = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Number of database connections in use",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry 返回底层 Registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🎬 选场指标记录（实现 engine.Observer）
// =============================================================================

// RecordDecision 记录一次选场决策
func (c *Collector) RecordDecision(reason string, duration time.Duration) {
	c.decisionsTotal.WithLabelValues(reason).Inc()
	c.decisionDuration.WithLabelValues(reason).Observe(duration.Seconds())
}

// RecordLoopDetected 记录检测到的循环模式
func (c *Collector) RecordLoopDetected(kind string) {
	c.loopsDetected.WithLabelValues(kind).Inc()
}

// RecordSeedTransition 记录种子状态转换
func (c *Collector) RecordSeedTransition(from, to string) {
	c.seedTransitions.WithLabelValues(from, to).Inc()
}

// RecordSceneFinished 记录场景结束
func (c *Collector) RecordSceneFinished(category string, completed bool) {
	outcome := "cancelled"
	if completed {
		outcome = "completed"
	}
	c.scenesFinished.WithLabelValues(category, outcome).Inc()
}

// RecordConsequenceFailures 记录后果应用失败数
func (c *Collector) RecordConsequenceFailures(count int) {
	if count > 0 {
		c.consequenceFailures.Add(float64(count))
	}
}

// RecordCatalogReload 记录场景目录重新加载
func (c *Collector) RecordCatalogReload(trigger string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.catalogReloads.WithLabelValues(trigger, status).Inc()
}

// =============================================================================
// 🤖 选场器指标记录
// =============================================================================

// RecordChooserRequest 记录选场器请求
func (c *Collector) RecordChooserRequest(model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.chooserRequestsTotal.WithLabelValues(model, status).Inc()
	c.chooserRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	c.chooserTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	c.chooserTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle, inUse int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
	c.dbConnectionsUsed.WithLabelValues(database).Set(float64(inUse))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
