package metrics

import (
	"time"

	"github.com/frogteam/frogteam/llm/budget"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	// 工具与编排指标
	toolCallsTotal        *prometheus.CounterVec
	toolCallDuration      *prometheus.HistogramVec
	assignmentTransitions *prometheus.CounterVec

	// 队列指标
	queueJobsTotal   *prometheus.CounterVec
	queueJobDuration *prometheus.HistogramVec
	queuePending     prometheus.Gauge

	// 窗口指标
	windowRequests prometheus.Gauge
	windowTokens   prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建注册到默认 Registry 的指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegisterer(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegisterer 创建注册到 reg 的指标收集器
func NewCollectorWithRegisterer(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LLM 指标
	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of model calls",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Model call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// 工具与编排指标
	c.toolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool", "status"},
	)

	c.toolCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"tool"},
	)

	c.assignmentTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_state_transitions_total",
			Help:      "Total number of assignment state transitions",
		},
		[]string{"member", "from_state", "to_state"},
	)

	// 队列指标
	c.queueJobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_jobs_total",
			Help:      "Total number of processed jobs",
		},
		[]string{"type", "status"},
	)

	c.queueJobDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_job_duration_seconds",
			Help:      "Job processing duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	c.queuePending = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_pending_jobs",
		Help:      "Number of jobs waiting or running",
	})

	// 窗口指标
	c.windowRequests = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "window_requests",
		Help:      "Requests recorded in the current rate window",
	})

	c.windowTokens = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "window_tokens",
		Help:      "Tokens recorded in the current rate window",
	})

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🤖 编排指标记录
// =============================================================================

// RecordLLMRequest 记录模型调用
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordToolCall 记录工具调用
func (c *Collector) RecordToolCall(tool, status string, duration time.Duration) {
	c.toolCallsTotal.WithLabelValues(tool, status).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordStateTransition 记录编排状态转换
func (c *Collector) RecordStateTransition(member, from, to string) {
	c.assignmentTransitions.WithLabelValues(member, from, to).Inc()
}

// =============================================================================
// 📬 队列指标记录
// =============================================================================

// RecordJob 记录作业完成
func (c *Collector) RecordJob(jobType, status string, duration time.Duration) {
	c.queueJobsTotal.WithLabelValues(jobType, status).Inc()
	c.queueJobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// SetPending 更新待处理作业数
func (c *Collector) SetPending(n int) {
	c.queuePending.Set(float64(n))
}

// ObserveWindow 更新窗口负载, 可直接作为 budget.Observer 使用
func (c *Collector) ObserveWindow(load budget.Load) {
	c.windowRequests.Set(float64(load.RequestCount))
	c.windowTokens.Set(float64(load.TokenSum))
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
