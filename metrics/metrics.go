// Package metrics 提供排序链路的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 指标名
const (
	MetricRequestsTotal    = "outrank_requests_total"
	MetricRelaxationsTotal = "outrank_relaxations_total"
	MetricCandidates       = "outrank_candidates"
	MetricStageDuration    = "outrank_stage_duration_seconds"
)

// 请求结果
const (
	StatusOK          = "ok"
	StatusEmpty       = "empty"
	StatusConfigError = "config_error"
	StatusError       = "error"
)

// Metrics 是排序链路的指标集合，所有方法并发安全。
// nil *Metrics 的方法都是空操作，调用方不必判空。
type Metrics struct {
	requests      *prometheus.CounterVec
	relaxations   prometheus.Counter
	candidates    prometheus.Histogram
	stageDuration *prometheus.HistogramVec
}

// NewMetrics 创建指标，不注册；调用 Register 注册到 registry。
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequestsTotal,
			Help: "Total number of ranking requests by status",
		}, []string{"status"}),
		relaxations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRelaxationsTotal,
			Help: "Total number of similarity threshold relaxations",
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricCandidates,
			Help:    "Number of candidates entering pairwise comparison",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricStageDuration,
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// Register 注册所有指标。
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors 返回所有 collector。
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.relaxations,
		m.candidates,
		m.stageDuration,
	}
}

// IncRequest 按结果计数。
func (m *Metrics) IncRequest(status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status).Inc()
}

// IncRelaxation 阈值放宽计数。
func (m *Metrics) IncRelaxation() {
	if m == nil {
		return
	}
	m.relaxations.Inc()
}

// ObserveCandidates 记录进入两两比较的候选数。
func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

// ObserveStage 记录一个阶段的耗时。
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
