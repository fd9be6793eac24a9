// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
type Metrics struct {
	registry             *prometheus.Registry
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	ordersTotal          *prometheus.CounterVec
	settlementsTotal     *prometheus.CounterVec
	refundsTotal         *prometheus.CounterVec
	rechargesTotal       *prometheus.CounterVec
	redemptionsTotal     *prometheus.CounterVec
	notifyFailuresTotal  *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// New 创建独立注册表上的指标收集器
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "storefront"
	}
	reg := prometheus.NewRegistry()
	f := func(c prometheus.Collector) { reg.MustRegister(c) }

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		ordersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_total",
				Help:      "Total number of order lifecycle events",
			},
			[]string{"event"},
		),
		settlementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_settlements_total",
				Help:      "Total number of payment settlements",
			},
			[]string{"kind", "result"},
		),
		refundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refunds_total",
				Help:      "Total number of refund state transitions",
			},
			[]string{"status"},
		),
		rechargesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recharges_total",
				Help:      "Total number of settled recharges",
			},
			[]string{"level"},
		),
		redemptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redemptions_total",
				Help:      "Total number of redemption events",
			},
			[]string{"event"},
		),
		notifyFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_failures_total",
				Help:      "Total number of notifications no consumer accepted",
			},
			[]string{"kind"},
		),
	}

	f(m.httpRequestsTotal)
	f(m.httpRequestDuration)
	f(m.httpRequestsInFlight)
	f(m.ordersTotal)
	f(m.settlementsTotal)
	f(m.refundsTotal)
	f(m.rechargesTotal)
	f(m.redemptionsTotal)
	f(m.notifyFailuresTotal)
	return m
}

// Init 初始化默认指标收集器
func Init(namespace string) *Metrics {
	once.Do(func() {
		defaultMetrics = New(namespace)
	})
	return defaultMetrics
}

// GetMetrics 获取默认指标收集器
func GetMetrics() *Metrics {
	return Init("")
}

// Middleware 返回 Gin 中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()

		c.Next()

		m.httpRequestsInFlight.Dec()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 Prometheus HTTP 处理器
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Registry 返回注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOrder 记录订单事件（created/cancelled/closed/completed）
func (m *Metrics) RecordOrder(event string) {
	m.ordersTotal.WithLabelValues(event).Inc()
}

// RecordSettlement 记录支付结算
func (m *Metrics) RecordSettlement(kind, result string) {
	m.settlementsTotal.WithLabelValues(kind, result).Inc()
}

// RecordRefund 记录售后状态变化
func (m *Metrics) RecordRefund(status string) {
	m.refundsTotal.WithLabelValues(status).Inc()
}

// RecordRecharge 记录充值到账
func (m *Metrics) RecordRecharge(level int) {
	m.rechargesTotal.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordRedemption 记录兑换事件（issued/consumed/busy）
func (m *Metrics) RecordRedemption(event string) {
	m.redemptionsTotal.WithLabelValues(event).Inc()
}

// RecordNotifyFailure 记录无人认领的回调
func (m *Metrics) RecordNotifyFailure(kind string) {
	m.notifyFailuresTotal.WithLabelValues(kind).Inc()
}
