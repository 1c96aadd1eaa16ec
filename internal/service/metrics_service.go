package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, the
// progress cache and the licensure decision paths.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	transferDecisions    *prometheus.CounterVec
	eligibilityChecks    *prometheus.CounterVec
	timeclockTransitions *prometheus.CounterVec
	autoClockOuts        prometheus.Counter
	auditFailures        *prometheus.CounterVec
	progressDuration     prometheus.Observer

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	transferDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_evaluations_total",
		Help: "Transfer evaluations by jurisdiction and decision",
	}, []string{"jurisdiction", "decision"})

	eligibilityChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_eligibility_checks_total",
		Help: "Exam eligibility checks by outcome",
	}, []string{"eligible"})

	timeclockTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timeclock_events_total",
		Help: "Timeclock events by kind and result",
	}, []string{"event", "result"})

	autoClockOuts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timeclock_auto_clock_outs_total",
		Help: "Sessions closed automatically after the offsite grace window",
	})

	auditFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit records that could not be queued or persisted",
	}, []string{"stage"})

	progressDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "progress_summary_seconds",
		Help:    "Time spent computing progress summaries",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		transferDecisions, eligibilityChecks, timeclockTransitions, autoClockOuts, auditFailures, progressDuration, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheWrite:           cacheWrite,
		cacheHitRatio:        cacheHitRatio,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		transferDecisions:    transferDecisions,
		eligibilityChecks:    eligibilityChecks,
		timeclockTransitions: timeclockTransitions,
		autoClockOuts:        autoClockOuts,
		auditFailures:        auditFailures,
		progressDuration:     progressDuration,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordTransferDecision counts an evaluation outcome.
func (m *MetricsService) RecordTransferDecision(jurisdiction, decision string) {
	if m == nil {
		return
	}
	m.transferDecisions.WithLabelValues(jurisdiction, decision).Inc()
}

// RecordEligibilityCheck counts an eligibility decision.
func (m *MetricsService) RecordEligibilityCheck(eligible bool) {
	if m == nil {
		return
	}
	m.eligibilityChecks.WithLabelValues(strconv.FormatBool(eligible)).Inc()
}

// RecordTimeclockEvent counts a timeclock event; result is "ok" or an error code.
func (m *MetricsService) RecordTimeclockEvent(event, result string) {
	if m == nil {
		return
	}
	m.timeclockTransitions.WithLabelValues(event, result).Inc()
}

// RecordAutoClockOut counts an automatic clock-out.
func (m *MetricsService) RecordAutoClockOut() {
	if m == nil {
		return
	}
	m.autoClockOuts.Inc()
}

// RecordAuditFailure counts a dropped audit record at the given stage.
func (m *MetricsService) RecordAuditFailure(stage string) {
	if m == nil {
		return
	}
	m.auditFailures.WithLabelValues(stage).Inc()
}

// ObserveProgressSummary records how long a summary took to compute.
func (m *MetricsService) ObserveProgressSummary(duration time.Duration) {
	if m == nil {
		return
	}
	m.progressDuration.Observe(duration.Seconds())
}
