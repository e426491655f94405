// Package metrics exposes Prometheus instrumentation for Mizan.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	// Verdicts by status, tier and source
	Analyses *prometheus.CounterVec

	// Engine latency for one analysis
	AnalysisLatency prometheus.Histogram

	// Analysis cache lookups by result: "hit" or "miss"
	AnalysisCache *prometheus.CounterVec

	// Rule cache reloads by result: "ok" or "error"
	RuleCacheRefreshes *prometheus.CounterVec
	RulesCached        prometheus.Gauge
	RulesQuarantined   prometheus.Gauge

	// Additive codes answered by the legacy table
	AdditiveFallbacks prometheus.Counter

	AlertsTriggered *prometheus.CounterVec

	// Bus messages handled by topic and result
	BusMessages *prometheus.CounterVec

	RetentionDeleted prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates a registry with the Go runtime collectors and all Mizan metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers all Mizan metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Analyses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mizan_analyses_total",
			Help: "Total analyses by verdict status, tier and source",
		}, []string{"status", "tier", "source"}),

		AnalysisLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mizan_analysis_duration_seconds",
			Help:    "Duration of one engine analysis including repository reads",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),

		AnalysisCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mizan_analysis_cache_lookups_total",
			Help: "Analysis cache lookups by result",
		}, []string{"result"}),

		RuleCacheRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mizan_rule_cache_refreshes_total",
			Help: "Ingredient rule snapshot reloads by result",
		}, []string{"result"}),

		RulesCached: f.NewGauge(prometheus.GaugeOpts{
			Name: "mizan_rules_cached",
			Help: "Ingredient rules in the current snapshot",
		}),

		RulesQuarantined: f.NewGauge(prometheus.GaugeOpts{
			Name: "mizan_rules_quarantined",
			Help: "Ingredient rules excluded from the current snapshot because their pattern is invalid",
		}),

		AdditiveFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "mizan_additive_fallbacks_total",
			Help: "Additive codes resolved by the legacy table instead of the database",
		}),

		AlertsTriggered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mizan_alerts_triggered_total",
			Help: "Alert rule triggers by rule",
		}, []string{"rule_id"}),

		BusMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mizan_bus_messages_total",
			Help: "Event bus messages handled by topic and result",
		}, []string{"topic", "result"}),

		RetentionDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "mizan_retention_deleted_total",
			Help: "Stored analyses deleted by the retention job",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mizan_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),

		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mizan_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAnalysis records one finished analysis.
func (m *Metrics) ObserveAnalysis(status, tier, source string, d time.Duration) {
	if m != nil {
		m.Analyses.WithLabelValues(status, tier, source).Inc()
		m.AnalysisLatency.Observe(d.Seconds())
	}
}

// CacheLookup records an analysis cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.AnalysisCache.WithLabelValues(result).Inc()
}

// RuleCacheRefreshed records a snapshot reload.
func (m *Metrics) RuleCacheRefreshed(rules, quarantined int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RuleCacheRefreshes.WithLabelValues("error").Inc()
		return
	}
	m.RuleCacheRefreshes.WithLabelValues("ok").Inc()
	m.RulesCached.Set(float64(rules))
	m.RulesQuarantined.Set(float64(quarantined))
}

// AdditiveFallback records codes answered by the legacy table.
func (m *Metrics) AdditiveFallback(n int) {
	if m != nil && n > 0 {
		m.AdditiveFallbacks.Add(float64(n))
	}
}

// AlertTriggered records one alert rule trigger.
func (m *Metrics) AlertTriggered(ruleID string) {
	if m != nil {
		m.AlertsTriggered.WithLabelValues(ruleID).Inc()
	}
}

// BusMessage records a handled bus message.
func (m *Metrics) BusMessage(topic string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.BusMessages.WithLabelValues(topic, result).Inc()
}

// RetentionPruned records analyses deleted by one retention run.
func (m *Metrics) RetentionPruned(n int64) {
	if m != nil && n > 0 {
		m.RetentionDeleted.Add(float64(n))
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
		m.HTTPLatency.WithLabelValues(method, route).Observe(d.Seconds())
	}
}
