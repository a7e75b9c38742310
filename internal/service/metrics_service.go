package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheLookups     *prometheus.CounterVec
	sourceDuration   *prometheus.HistogramVec
	engineOps        *prometheus.CounterVec
	planOutcomes     *prometheus.CounterVec
	staleSignals     *prometheus.CounterVec
	invalidatedUsers prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "availability_cache_lookups_total",
			Help: "Blocked-range cache lookups by result",
		}, []string{"result"}),
		sourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "availability_source_duration_seconds",
			Help:    "Latency of busy-range, lock and event source calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"source", "outcome"}),
		engineOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "availability_engine_operations_total",
			Help: "Engine computations by operation",
		}, []string{"operation"}),
		planOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "availability_plan_outcomes_total",
			Help: "Proposal validations by outcome reason",
		}, []string{"reason"}),
		staleSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "availability_stale_signals_total",
			Help: "Staleness signals received by type",
		}, []string{"type"}),
		invalidatedUsers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "availability_cache_invalidations_total",
			Help: "Cache invalidations performed",
		}),
	}

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache reads",
		Buckets: prometheus.DefBuckets,
	})
	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})
	m.cacheLatency = cacheLatency
	m.cacheWrite = cacheWrite

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, cacheLatency, cacheWrite, m.cacheLookups,
		m.sourceDuration, m.engineOps, m.planOutcomes, m.staleSignals, m.invalidatedUsers, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveSource records timing for a call to an external collaborator.
func (m *MetricsService) ObserveSource(source string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.sourceDuration.WithLabelValues(source, outcome).Observe(duration.Seconds())
}

// CountEngine records an engine computation.
func (m *MetricsService) CountEngine(operation string) {
	if m == nil {
		return
	}
	m.engineOps.WithLabelValues(operation).Inc()
}

// CountPlan records a validation outcome; an empty reason counts as accepted.
func (m *MetricsService) CountPlan(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "ACCEPTED"
	}
	m.planOutcomes.WithLabelValues(reason).Inc()
}

// CountSignal records a staleness signal.
func (m *MetricsService) CountSignal(signalType string) {
	if m == nil {
		return
	}
	m.staleSignals.WithLabelValues(signalType).Inc()
}

// CountInvalidation records a cache drop.
func (m *MetricsService) CountInvalidation() {
	if m == nil {
		return
	}
	m.invalidatedUsers.Inc()
}
