package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tempmail_gateway"

// 缓存查询结果标签
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// 网关拦截原因标签
const (
	BlockRateLimit = "rate_limit"
	BlockAttack    = "attack"
	BlockBanned    = "banned"
)

// Metrics 网关监控指标
//
// 每个实例持有独立的注册表，测试中可以并行创建多个路由。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 上游调用指标
	UpstreamDuration *prometheus.HistogramVec

	// 缓存指标
	CacheLookups *prometheus.CounterVec

	// 防护指标
	AttackDetections *prometheus.CounterVec
	GatewayBlocks    *prometheus.CounterVec

	// 推荐指标
	ReferralClaims *prometheus.CounterVec

	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标并注册到新的注册表
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Upstream provider call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"op", "outcome"},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of response cache lookups",
			},
			[]string{"key", "result"},
		),

		AttackDetections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attack_detections_total",
				Help:      "Total number of requests matching an attack rule",
			},
			[]string{"category"},
		),

		GatewayBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_blocks_total",
				Help:      "Total number of requests rejected by the gateway guards",
			},
			[]string{"reason"},
		),

		ReferralClaims: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "referral_claims_total",
				Help:      "Total number of referral claim attempts",
			},
			[]string{"outcome"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "panics_total",
				Help:      "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// ObserveUpstream 记录上游调用耗时
func (m *Metrics) ObserveUpstream(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamDuration.WithLabelValues(op, outcome).Observe(duration.Seconds())
}

// RecordCacheLookup 记录缓存查询结果
func (m *Metrics) RecordCacheLookup(key, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(key, result).Inc()
}

// RecordAttack 记录攻击检测
func (m *Metrics) RecordAttack(category string) {
	if m == nil {
		return
	}
	m.AttackDetections.WithLabelValues(category).Inc()
}

// RecordBlock 记录网关拦截
func (m *Metrics) RecordBlock(reason string) {
	if m == nil {
		return
	}
	m.GatewayBlocks.WithLabelValues(reason).Inc()
}

// RecordReferralClaim 记录推荐码领取
func (m *Metrics) RecordReferralClaim(outcome string) {
	if m == nil {
		return
	}
	m.ReferralClaims.WithLabelValues(outcome).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
