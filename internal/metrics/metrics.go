// Package metrics 同步、Token 刷新与出站调用的 Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Token 刷新结果标签
const (
	RefreshSuccess      = "success"
	RefreshFailure      = "failure"
	RefreshRevoked      = "revoked"
	RefreshPersistError = "persist_error"
)

// Recorder 服务层与任务层使用的指标接口
type Recorder interface {
	RecordSync(kind string, success bool, duration time.Duration)
	RecordOrdersUpserted(count int)
	RecordOrderFailures(count int)
	RecordTokenRefresh(result string)
	ObserveRequest(endpoint string, status int, elapsed time.Duration)
	SetSSEClients(n int)
}

// Collector Prometheus 实现
type Collector struct {
	syncRuns       *prometheus.CounterVec
	syncDuration   *prometheus.HistogramVec
	ordersUpserted prometheus.Counter
	orderFailures  prometheus.Counter
	tokenRefresh   *prometheus.CounterVec
	apiRequests    *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
	sseClients     prometheus.Gauge
}

var _ Recorder = (*Collector)(nil)

// NewCollector 创建并注册到 reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopee_sync_runs_total",
			Help: "订单同步执行次数",
		}, []string{"kind", "result"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopee_sync_duration_seconds",
			Help:    "单店铺订单同步耗时（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		ordersUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopee_orders_upserted_total",
			Help: "写入成功的订单数",
		}),
		orderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopee_order_failures_total",
			Help: "详情获取或写入失败的订单数",
		}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopee_token_refresh_total",
			Help: "Token 刷新结果",
		}, []string{"result"}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopee_api_requests_total",
			Help: "Shopee 接口调用次数（按接口与 HTTP 状态码）",
		}, []string{"endpoint", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopee_api_latency_seconds",
			Help:    "Shopee 接口耗时（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		sseClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shopee_sse_clients",
			Help: "当前 SSE 订阅连接数",
		}),
	}

	reg.MustRegister(
		c.syncRuns,
		c.syncDuration,
		c.ordersUpserted,
		c.orderFailures,
		c.tokenRefresh,
		c.apiRequests,
		c.apiLatency,
		c.sseClients,
	)
	return c
}

func (c *Collector) RecordSync(kind string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.syncRuns.WithLabelValues(kind, result).Inc()
	c.syncDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (c *Collector) RecordOrdersUpserted(count int) {
	c.ordersUpserted.Add(float64(count))
}

func (c *Collector) RecordOrderFailures(count int) {
	c.orderFailures.Add(float64(count))
}

func (c *Collector) RecordTokenRefresh(result string) {
	c.tokenRefresh.WithLabelValues(result).Inc()
}

// ObserveRequest 同时实现 shopee.Observer；status 为 0 表示网络错误
func (c *Collector) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	c.apiRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	c.apiLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (c *Collector) SetSSEClients(n int) {
	c.sseClients.Set(float64(n))
}

// Handler Prometheus 抓取入口
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ==================== Nop ====================

// Nop 不记录任何指标，测试与未启用指标时使用
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordSync(string, bool, time.Duration)    {}
func (Nop) RecordOrdersUpserted(int)                  {}
func (Nop) RecordOrderFailures(int)                   {}
func (Nop) RecordTokenRefresh(string)                 {}
func (Nop) ObserveRequest(string, int, time.Duration) {}
func (Nop) SetSSEClients(int)                         {}
