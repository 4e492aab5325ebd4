package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lonelycare"

// Metrics 指标管理器。所有方法对 nil 接收者安全，测试里可以直接传 nil
type Metrics struct {
	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 评估轮次
	passesTotal    *prometheus.CounterVec
	passDuration   prometheus.Histogram
	contactsByTier *prometheus.GaugeVec

	// 通知与升级
	dispatchesTotal      *prometheus.CounterVec
	channelOutcomesTotal *prometheus.CounterVec
	escalationsTotal     *prometheus.CounterVec
	cooldownSuppressed   *prometheus.CounterVec
	thresholdSource      *prometheus.CounterVec

	// 限流
	rateLimitTotal *prometheus.CounterVec
}

// NewMetrics 在给定 Registerer 上注册指标；reg 为 nil 时使用默认注册表
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		passesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluation_passes_total",
				Help:      "Evaluation passes by result",
			},
			[]string{"status"},
		),
		passDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_pass_duration_seconds",
				Help:      "Duration of a full evaluation pass",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		contactsByTier: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "contacts_by_tier",
				Help:      "Contacts per alert tier in the latest pass",
			},
			[]string{"tier"},
		),

		dispatchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Notification dispatches by tier and result",
			},
			[]string{"tier", "result"},
		),
		channelOutcomesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_outcomes_total",
				Help:      "Per-channel delivery outcomes",
			},
			[]string{"channel", "outcome"},
		),
		escalationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escalations_total",
				Help:      "Emergency escalations by outcome status",
			},
			[]string{"status"},
		),
		cooldownSuppressed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cooldown_suppressed_total",
				Help:      "Notifications suppressed by the cooldown gate",
			},
			[]string{"tier"},
		),
		thresholdSource: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "threshold_resolutions_total",
				Help:      "Threshold resolutions by source",
			},
			[]string{"source"},
		),
		rateLimitTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_requests_total",
				Help:      "API requests seen by the rate limiter",
			},
			[]string{"route", "decision"},
		),
	}
}

// RecordHTTPRequest 记录HTTP请求指标
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordPass(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.passesTotal.WithLabelValues(status).Inc()
	m.passDuration.Observe(duration.Seconds())
}

// SetContactsByTier 用本轮结果覆盖各等级人数；未出现的等级置 0
func (m *Metrics) SetContactsByTier(counts map[string]int, tiers []string) {
	if m == nil {
		return
	}
	for _, t := range tiers {
		m.contactsByTier.WithLabelValues(t).Set(float64(counts[t]))
	}
}

func (m *Metrics) RecordDispatch(tier string, delivered bool) {
	if m == nil {
		return
	}
	result := "failed"
	if delivered {
		result = "delivered"
	}
	m.dispatchesTotal.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) RecordChannelOutcome(channel, outcome string) {
	if m == nil {
		return
	}
	m.channelOutcomesTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) RecordEscalation(status string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCooldownSuppressed(tier string) {
	if m == nil {
		return
	}
	m.cooldownSuppressed.WithLabelValues(tier).Inc()
}

func (m *Metrics) RecordThresholdSource(source string) {
	if m == nil {
		return
	}
	m.thresholdSource.WithLabelValues(source).Inc()
}

// OnAllow / OnDeny 供限流中间件上报
func (m *Metrics) OnAllow(route string) {
	if m == nil {
		return
	}
	m.rateLimitTotal.WithLabelValues(route, "allow").Inc()
}

func (m *Metrics) OnDeny(route string) {
	if m == nil {
		return
	}
	m.rateLimitTotal.WithLabelValues(route, "deny").Inc()
}
