// Package monitoring provides Prometheus metrics and OpenTelemetry tracing for the API
package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

const namespace = "cookcard"

// MetricsCollector handles Prometheus metrics collection.
// It is also a telemetry emitter: pipeline events become counters.
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	extractionsTotal    *prometheus.CounterVec
	extractionDuration  *prometheus.HistogramVec
	extractionCostCents *prometheus.CounterVec
	cacheHitsTotal      prometheus.Counter
	rateLimitedTotal    *prometheus.CounterVec
	quotaExceededTotal  *prometheus.CounterVec
	stageOutcomesTotal  *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	evidenceRejected    *prometheus.CounterVec
	budgetDeniedTotal   *prometheus.CounterVec
	extractionsAborted  prometheus.Counter
	dbConnectionsOpen   prometheus.Gauge
	dbConnectionsInUse  prometheus.Gauge

	// Redis client metrics
	redisCommands        prometheus.Gauge
	redisFailedCommands  prometheus.Gauge
	redisAvgResponseTime prometheus.Gauge
	redisCircuitOpen     prometheus.Gauge
}

var _ outbound.TelemetryEmitter = (*MetricsCollector)(nil)

// NewMetricsCollector registers every metric on a fresh registry
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &MetricsCollector{
		logger:   logger.Named("metrics"),
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "route"},
		),

		extractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Completed ladder runs by method and winning source",
			},
			[]string{"method", "evidence_source", "platform"},
		),
		extractionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_duration_seconds",
				Help:      "Ladder run duration in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
			},
			[]string{"method"},
		),
		extractionCostCents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_cost_cents_total",
				Help:      "Model spend in cents",
			},
			[]string{"method"},
		),
		cacheHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Requests served from the card cache",
			},
		),
		rateLimitedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the hourly window",
			},
			[]string{"tier"},
		),
		quotaExceededTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_exceeded_total",
				Help:      "Requests answered with a link-only card because the monthly quota is spent",
			},
			[]string{"tier"},
		),
		stageOutcomesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_outcomes_total",
				Help:      "Ladder stage results",
			},
			[]string{"stage", "outcome", "reason"},
		),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Ladder stage duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		evidenceRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evidence_rejected_total",
				Help:      "Ingredient candidates dropped by the evidence validator",
			},
			[]string{"source_kind"},
		),
		budgetDeniedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vision_budget_denied_total",
				Help:      "Vision attempts refused by the video budget",
			},
			[]string{"reason"},
		),
		extractionsAborted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_aborted_total",
				Help:      "Ladder runs abandoned because the caller went away",
			},
		),
		dbConnectionsOpen: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_open",
				Help:      "Open database connections",
			},
		),
		dbConnectionsInUse: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_in_use",
				Help:      "Database connections in use",
			},
		),

		redisCommands: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "redis_commands",
				Help:      "Redis commands issued since the client started",
			},
		),
		redisFailedCommands: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "redis_failed_commands",
				Help:      "Redis commands that failed since the client started",
			},
		),
		redisAvgResponseTime: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "redis_avg_response_seconds",
				Help:      "Moving average of Redis command latency",
			},
		),
		redisCircuitOpen: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "redis_circuit_open",
				Help:      "1 while the Redis circuit breaker rejects commands",
			},
		),
	}
}

// Emit turns a pipeline event into counter updates. Unknown events are ignored.
func (m *MetricsCollector) Emit(_ context.Context, eventType string, fields map[string]any) {
	switch eventType {
	case cookcard.EventExtractionCompleted:
		method := str(fields, "method")
		m.extractionsTotal.WithLabelValues(method, str(fields, "evidence_source"), str(fields, "platform")).Inc()
		m.extractionDuration.WithLabelValues(method).Observe(float64(num(fields, "duration_ms")) / 1000)
		m.extractionCostCents.WithLabelValues(method).Add(float64(num(fields, "cost_cents")))
	case cookcard.EventCacheHit:
		m.cacheHitsTotal.Inc()
	case cookcard.EventRateLimited:
		m.rateLimitedTotal.WithLabelValues(str(fields, "tier")).Inc()
	case cookcard.EventQuotaExceeded:
		m.quotaExceededTotal.WithLabelValues(str(fields, "tier")).Inc()
	case cookcard.EventStageFinished:
		stage := str(fields, "stage")
		m.stageOutcomesTotal.WithLabelValues(stage, str(fields, "outcome"), str(fields, "reason")).Inc()
		m.stageDuration.WithLabelValues(stage).Observe(float64(num(fields, "duration_ms")) / 1000)
	case cookcard.EventEvidenceRejected:
		m.evidenceRejected.WithLabelValues(str(fields, "source_kind")).Add(float64(num(fields, "rejected")))
	case cookcard.EventBudgetDenied:
		m.budgetDeniedTotal.WithLabelValues(str(fields, "reason")).Inc()
	case cookcard.EventExtractionAborted:
		m.extractionsAborted.Inc()
	}
}

func str(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func num(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// HTTPMiddleware records request counts and latency by chi route pattern
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// UpdateDBConnections mirrors the connection pool stats
func (m *MetricsCollector) UpdateDBConnections(open, inUse int) {
	m.dbConnectionsOpen.Set(float64(open))
	m.dbConnectionsInUse.Set(float64(inUse))
}

// UpdateRedisStats mirrors the Redis client's command counters and breaker state
func (m *MetricsCollector) UpdateRedisStats(commands, failed int64, avgResponse time.Duration, circuitOpen bool) {
	m.redisCommands.Set(float64(commands))
	m.redisFailedCommands.Set(float64(failed))
	m.redisAvgResponseTime.Set(avgResponse.Seconds())
	open := 0.0
	if circuitOpen {
		open = 1
	}
	m.redisCircuitOpen.Set(open)
}

// Registry exposes the underlying registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
